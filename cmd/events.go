package cmd

import (
	"fmt"

	"github.com/josephlewis42/pipesh/core/logger"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Explore the event log.",
}

type reporter interface {
	Update(le *logger.LogEntry)
}

// newReportCommand creates a command that feeds the whole event log to the
// report created by newReport and prints it as YAML.
func newReportCommand(use, short string, newReport func() reporter) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			config, err := loadConfig()
			if err != nil {
				return err
			}
			if config.EventLog == "" {
				return fmt.Errorf("event_log isn't set in the configuration")
			}

			fd, err := config.ReadEventLog()
			if err != nil {
				return err
			}
			defer fd.Close()

			report := newReport()
			if err := logger.ReadJSONLinesLog(fd, report.Update); err != nil {
				return err
			}

			out, err := yaml.Marshal(report)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(newReportCommand("report", "Show a report of events.", func() reporter {
		return &logger.Report{}
	}))
	eventsCmd.AddCommand(newReportCommand("bugs", "Show invalid invocations, unknown commands and panics.", func() reporter {
		return logger.NewBugReport()
	}))
	eventsCmd.AddCommand(newReportCommand("sessions", "Show the commands run by each session.", func() reporter {
		return &logger.InteractionReport{}
	}))
}
