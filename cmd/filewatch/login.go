package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/rohankatakam/filewatch/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginToken string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Save a GitHub token in the OS keychain",
	Long: `Save a GitHub token in the OS keychain.

The token is used when GH_TOKEN and GITHUB_TOKEN are unset. Unauthenticated
requests work but are limited to 60 per hour.

Examples:
  filewatch login
  echo "$TOKEN" | filewatch login
  filewatch login --token ghp_...`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginToken, "token", "", "token to save (prompted when omitted)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	km := config.NewKeyringManager()
	if !km.IsAvailable() {
		return fmt.Errorf("OS keychain not available, set GH_TOKEN instead")
	}

	token := loginToken
	if token == "" {
		fmt.Print("GitHub token: ")
		var err error
		token, err = readSecret()
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
	}
	if token == "" {
		return fmt.Errorf("github token cannot be empty")
	}

	if err := km.SetGitHubToken(token); err != nil {
		return err
	}

	fmt.Printf("✓ Saved %s to the OS keychain\n", config.MaskToken(token))
	return nil
}

// readSecret reads without echo from a terminal, or a line from piped stdin
func readSecret() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		bytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bytes)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
