package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"

	"github.com/josephlewis42/pipesh/commands"
	"github.com/josephlewis42/pipesh/core"
	"github.com/josephlewis42/pipesh/core/config"
	"github.com/josephlewis42/pipesh/core/logger"
	"github.com/josephlewis42/pipesh/core/pipeline"
	"github.com/josephlewis42/pipesh/core/ttylog"
	"github.com/josephlewis42/pipesh/core/vos"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	cfgPath     string
	commandLine string
	recordPath  string
)

// errReported is returned once the shell has already printed the failure.
var errReported = errors.New("command failed")

func loadConfig() (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)

	if errors.Is(err, fs.ErrNotExist) {
		log.Println("Couldn't load config: did you run init?")
	}

	return configuration, err
}

// loadShellConfig falls back to the built-in configuration so the shell works
// without running init first.
func loadShellConfig() (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return configuration, err
}

func openEventLog(configuration *config.Configuration) (*logger.Logger, io.Closer, error) {
	if configuration.EventLog == "" {
		return logger.NewNopLogger(), io.NopCloser(nil), nil
	}

	fd, err := configuration.OpenEventLog()
	if err != nil {
		return nil, nil, err
	}
	return logger.NewJSONLinesLogRecorder(fd), fd, nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pipesh",
	Short: "A small shell that runs pipelines of builtins and programs.",
	Long: `A small shell that runs pipelines of builtins and programs.

Without arguments an interactive shell is started, use -c to run a single
command line instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		configuration, err := loadShellConfig()
		if err != nil {
			return err
		}

		eventLog, closer, err := openEventLog(configuration)
		if err != nil {
			return err
		}
		defer closer.Close()
		session := eventLog.NewSession()

		var vio vos.VIO = vos.NewOSIO()
		if recordPath != "" {
			fd, err := os.Create(recordPath)
			if err != nil {
				return err
			}
			defer fd.Close()

			session.Record(&logger.OpenTTYLog{Name: recordPath})
			vio = ttylog.NewRecorder(vio, ttylog.NewAsciicastLogSink(fd))
		}

		runner := pipeline.NewRunner(commands.NewRuntime(core.NewEnvironment(configuration, os.Environ())))
		runner.Launcher.Stderr = vio.Stderr()
		runner.Events = session

		oneLine := cmd.Flags().Changed("command")
		interactive := !oneLine && isTerminal(os.Stdin)
		shell, err := core.NewShell(runner, vio, core.ShellOptions{
			Prompt:      configuration.Prompt,
			HistoryFile: configuration.HistoryPath(),
			Terminal:    interactive,
			Color:       configuration.UseColor(isTerminal(os.Stderr)),
			// Programs get the real terminal even while it's being recorded.
			CommandInput: os.Stdin,
		})
		if err != nil {
			return err
		}
		defer shell.Close()

		if oneLine {
			if err := shell.RunLine(commandLine); err != nil {
				shell.ReportError(err)
				return errReported
			}
			return nil
		}

		if err := shell.Run(); err != nil {
			return errReported
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if errors.Is(err, errReported) {
		os.Exit(1)
	}
	cobra.CheckErr(err)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".", "config path")
	rootCmd.Flags().StringVarP(&commandLine, "command", "c", "", "run the command line then exit")
	rootCmd.Flags().StringVar(&recordPath, "record", "", fmt.Sprintf("record the session to an asciicast file (e.g. session.%s)", ttylog.AsciicastFileExt))
}
