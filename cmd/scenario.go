package cmd

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ticktree/ticktree/kernel"
)

// Scenario is a YAML-loadable simulation setup: an initial world state plus
// a schedule of data-encoded operations. Operations are plain data, so a
// scenario file fully determines a run.
type Scenario struct {
	State  yaml.Node       `yaml:"state"`
	Events []ScenarioEvent `yaml:"events"`
}

// ScenarioEvent schedules a sequence of operations at one coordinate/path.
type ScenarioEvent struct {
	At   []int64          `yaml:"at"`
	Path []string         `yaml:"path"`
	Ops  []map[string]any `yaml:"ops"`
}

// LoadScenario reads and decodes a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return &sc, nil
}

// Build turns the scenario into an initial kernel context.
func (sc *Scenario) Build() (*kernel.Context, error) {
	ctx := kernel.NewContext()

	var err error
	if ctx, err = loadState(ctx, nil, &sc.State); err != nil {
		return nil, err
	}

	for i, ev := range sc.Events {
		if len(ev.At) == 0 {
			return nil, fmt.Errorf("event %d: missing coordinate", i)
		}
		units := make([]kernel.Unit, 0, len(ev.Ops))
		for _, raw := range ev.Ops {
			op, err := decodeOp(raw)
			if err != nil {
				return nil, fmt.Errorf("event %d: %w", i, err)
			}
			units = append(units, kernel.ValueUnit(op))
		}
		ctx, err = ctx.ScheduleUnit(kernel.TimeVec(ev.At), kernel.Path(ev.Path), kernel.SeqUnit(kernel.NewQueue(units...)))
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
	}
	return ctx, nil
}

// loadState walks the YAML mapping in document order, so the state tree's
// iteration order matches the file.
func loadState(ctx *kernel.Context, prefix kernel.Path, node *yaml.Node) (*kernel.Context, error) {
	if node.Kind == 0 || node.Kind == yaml.DocumentNode && len(node.Content) == 0 {
		return ctx, nil
	}
	if node.Kind != yaml.MappingNode {
		if len(prefix) == 0 {
			return ctx, fmt.Errorf("state: top level must be a mapping")
		}
		var v any
		if err := node.Decode(&v); err != nil {
			return ctx, fmt.Errorf("state %v: %w", prefix, err)
		}
		return ctx.StateSet(prefix, v), nil
	}
	var err error
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		ctx, err = loadState(ctx, append(prefix.Clone(), key), node.Content[i+1])
		if err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}

func decodeOp(raw map[string]any) (kernel.Operation, error) {
	key, ok := raw["op"].(string)
	if !ok {
		return kernel.Operation{}, fmt.Errorf("operation missing op key: %v", raw)
	}
	args, _ := raw["args"].([]any)
	return kernel.Operation{Key: key, Args: args}, nil
}

// RenderState flattens the world state into one line, leaves in the
// state tree's deterministic traversal order.
func RenderState(ctx *kernel.Context) string {
	var parts []string
	_ = ctx.State.Walk(func(path kernel.Path, v any) error {
		parts = append(parts, fmt.Sprintf("%s=%v", strings.Join(path, "."), v))
		return nil
	})
	return strings.Join(parts, " ")
}

// RenderTrace runs the scenario tick by tick and returns one line per
// completed ptime. until < 0 drains the whole schedule; otherwise no work
// past the cutoff is executed.
func RenderTrace(ctx *kernel.Context, opts *kernel.Options, until int64) (string, error) {
	var sb strings.Builder
	if pastCutoff(ctx, until) {
		return "", nil
	}
	hist := kernel.NewHistory(ctx, opts)
	for {
		snap, ok, err := hist.Next()
		if err != nil {
			return sb.String(), err
		}
		if !ok {
			break
		}
		pt := int64(0)
		if snap.LastPtime != nil {
			pt = *snap.LastPtime
		}
		fmt.Fprintf(&sb, "tick %04d | %s\n", pt, RenderState(snap))
		if pastCutoff(snap, until) {
			break
		}
	}
	return sb.String(), nil
}

// pastCutoff reports whether the next scheduled primary time lies beyond
// the until bound, so pulling another tick would overshoot it.
func pastCutoff(ctx *kernel.Context, until int64) bool {
	if until < 0 {
		return false
	}
	tvec, _, ok := ctx.Schedule.Min()
	return ok && tvec.Ptime() > until
}
