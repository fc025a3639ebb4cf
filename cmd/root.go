package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ticktree/ticktree/kernel"
)

var (
	scenarioPath string // Path to the YAML scenario file
	untilPtime   int64  // Last primary time to process (-1 = drain everything)
	logLevel     string // Log verbosity level
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "ticktree",
	Short: "Functional discrete-event simulation kernel",
}

// runCmd replays a scenario file tick by tick and prints the world state
// after each completed primary time.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if scenarioPath == "" {
			return fmt.Errorf("no scenario file provided")
		}

		sc, err := LoadScenario(scenarioPath)
		if err != nil {
			return err
		}
		ctx, err := sc.Build()
		if err != nil {
			return err
		}

		logrus.Infof("starting run: %d coordinates scheduled", ctx.Schedule.Len())

		opts := &kernel.Options{Handler: kernel.OpApplier(nil)}
		trace, err := RenderTrace(ctx, opts, untilPtime)
		fmt.Print(trace)
		if err != nil {
			return err
		}
		logrus.Info("run complete")
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Path to YAML scenario file")
	runCmd.Flags().Int64Var(&untilPtime, "until", -1, "Stop after this primary time (-1 = drain)")
	runCmd.Flags().StringVar(&logLevel, "loglevel", "warn", "Log level: panic, fatal, error, warn, info, debug, trace")
	rootCmd.AddCommand(runCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
