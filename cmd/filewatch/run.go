package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rohankatakam/filewatch/internal/watcher"
	"github.com/spf13/cobra"
)

var (
	dryRun bool
	pretty bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Check the watched file once",
	Long: `Check the watched file once and print the result as JSON.

The first run only records the latest commit. Later runs email the commits
added since the recorded one and move the checkpoint forward.

Exits with status 1 when the run fails.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log notifications instead of sending email and leave the stored checkpoint untouched")
	runCmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON result")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if dryRun {
		cfg.Notifier = "log"
	}

	if err := validateConfig(cfg, logger); err != nil {
		return printResult(watcher.Failed(cfg.Target, err))
	}

	w, store, err := newWatcher(ctx, cfg, logger, dryRun)
	if err != nil {
		return err
	}
	defer store.Close()

	return printResult(w.Run(ctx))
}

func printResult(res watcher.Result) error {
	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if !res.OK {
		return errRunFailed
	}
	return nil
}
