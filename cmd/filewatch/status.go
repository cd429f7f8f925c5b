package main

import (
	"fmt"

	"github.com/rohankatakam/filewatch/internal/models"
	"github.com/rohankatakam/filewatch/internal/storage"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored checkpoint for the watched file",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := storage.Open(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	key := cfg.ResolvedStateKey()
	cp, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}

	fmt.Printf("Watching:   %s\n", cfg.Target.FileURL())
	fmt.Printf("State key:  %s\n", key)
	fmt.Printf("Store:      %s\n", cfg.Store.Type)
	if !cp.Found {
		fmt.Println("Checkpoint: none (next run records the latest commit without notifying)")
		return nil
	}
	fmt.Printf("Checkpoint: %s\n", models.ShortSHA(cp.SHA))
	fmt.Printf("Commit:     %s/commit/%s\n", cfg.Target.RepoURL(), cp.SHA)
	return nil
}
