package main

import (
	"fmt"
	"strings"

	"github.com/danmuck/newswire/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or validate config files",
	}

	var kind, output string
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config template (server or client)",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(output)
			if target == "" {
				target = defaultConfigTarget(kind)
			}
			if err := config.WriteTemplate(target, kind, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s config template to %s\n", kind, target)
			return nil
		},
	}
	initCmd.Flags().StringVar(&kind, "kind", "server", "config kind: server|client")
	initCmd.Flags().StringVar(&output, "output", "", "output path for the template")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	var validateKind string
	validateCmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate an existing config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			switch strings.ToLower(strings.TrimSpace(validateKind)) {
			case "server":
				cfg, err := loadServerConfig(path)
				if err != nil {
					return err
				}
				applyEnvOverrides(&cfg)
				if err := cfg.Validate(); err != nil {
					return err
				}
			case "client":
				if _, err := config.LoadClientConfig(path); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown config kind: %s", validateKind)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Validated %s config at %s\n", validateKind, path)
			return nil
		},
	}
	validateCmd.Flags().StringVar(&validateKind, "kind", "server", "config kind: server|client")

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}

func defaultConfigTarget(kind string) string {
	if strings.EqualFold(strings.TrimSpace(kind), "client") {
		return "client.toml"
	}
	return "config.toml"
}
