package main

import (
	"fmt"

	"github.com/rohankatakam/filewatch/internal/config"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the GitHub token from the OS keychain",
	RunE:  runLogout,
}

func runLogout(cmd *cobra.Command, args []string) error {
	if err := config.NewKeyringManager().DeleteGitHubToken(); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	fmt.Println("✓ GitHub token removed from the OS keychain")
	return nil
}
