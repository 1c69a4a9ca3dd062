package main

import (
	"fmt"

	"github.com/joeycumines/btcore/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change configuration settings",
	}

	var tree string
	get := &cobra.Command{
		Use:   "get KEY",
		Short: "Print the resolved value of an option",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			key := args[0]
			if a.schema.Lookup(key) == nil {
				return fmt.Errorf("unknown option: %s", key)
			}
			_, _ = fmt.Fprintf(a.stdout, "%s: %s\n", key, a.schema.Resolve(a.cfg, tree, key))
			return nil
		},
	}
	get.Flags().StringVar(&tree, "tree", "", "resolve for this tree")

	set := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Write a global option to the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if a.schema.Lookup(key) == nil {
				return fmt.Errorf("unknown option: %s", key)
			}
			path := a.configPath
			if path == "" {
				var err error
				if path, err = config.GetConfigPath(); err != nil {
					return err
				}
			}
			if err := config.SetKeyInFile(path, key, value); err != nil {
				return fmt.Errorf("failed to persist config: %w", err)
			}
			a.cfg.SetGlobalOption(key, value)
			_, _ = fmt.Fprintf(a.stdout, "Set configuration: %s = %s\n", key, value)
			return nil
		},
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check the config file against the schema",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			issues := config.ValidateConfig(a.cfg, a.schema)
			if len(issues) == 0 {
				_, _ = fmt.Fprintln(a.stdout, "Configuration is valid.")
				return
			}
			_, _ = fmt.Fprintf(a.stdout, "Configuration has %d issue(s):\n", len(issues))
			for _, issue := range issues {
				_, _ = fmt.Fprintf(a.stdout, "  - %s\n", issue)
			}
		},
	}

	schema := &cobra.Command{
		Use:   "schema",
		Short: "Describe every option",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			_, _ = fmt.Fprint(a.stdout, a.schema.FormatHelp())
		},
	}

	cmd.AddCommand(get, set, validate, schema)
	return cmd
}
