package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rohankatakam/filewatch/internal/config"
	"github.com/rohankatakam/filewatch/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile string
	verbose bool
	logger  *logrus.Logger
	cfg     *config.Config

	logCloser *logging.Logger
)

// errRunFailed signals a failed run whose result was already printed
var errRunFailed = errors.New("run failed")

func main() {
	err := rootCmd.Execute()
	if logCloser != nil {
		logCloser.Close()
	}
	if err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "filewatch",
	Short: "Watch a file in a GitHub repository and email when it changes",
	Long: `filewatch checks the commit history of one file on one branch,
compares it with the last commit it saw, and emails the new commits.

Each invocation is a single check. Schedule 'filewatch run' with cron or a
systemd timer, or run 'filewatch serve' and hit /api/watch from a scheduler.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		logCloser, err = logging.NewLogger(logging.Config{
			Level:      level,
			OutputFile: cfg.Log.File,
			JSONFormat: cfg.Log.Format == "json",
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = logCloser.Logger
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .filewatch/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`filewatch {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(configCmd)
}
