package main

import (
	"fmt"
	"os"

	"github.com/rohankatakam/filewatch/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect filewatch configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration without contacting GitHub or SMTP",
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(masked(cfg))
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	fmt.Printf("# state key: %s\n", cfg.ResolvedStateKey())
	_, err = os.Stdout.Write(data)
	return err
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	result := cfg.Validate()
	for _, w := range result.Warnings {
		fmt.Printf("⚠️  %s\n", w)
	}
	for _, e := range result.Errors {
		fmt.Printf("✗ %s\n", e)
	}
	if result.HasErrors() {
		return fmt.Errorf("configuration invalid")
	}
	fmt.Println("✓ Configuration valid")
	return nil
}

// masked returns a copy safe to print
func masked(c *config.Config) config.Config {
	out := *c
	if out.GitHub.Token != "" {
		out.GitHub.Token = config.MaskToken(out.GitHub.Token)
	}
	if out.SMTP.Pass != "" {
		out.SMTP.Pass = config.MaskToken(out.SMTP.Pass)
	}
	if out.Store.URL != "" {
		out.Store.URL = maskURL(out.Store.URL)
	}
	if out.Store.DSN != "" {
		out.Store.DSN = maskURL(out.Store.DSN)
	}
	return out
}
