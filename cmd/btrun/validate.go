package main

import (
	"fmt"

	"github.com/joeycumines/btcore/internal/factory"
	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Build every tree of a document without running it",
		Long: `Parses the document and builds each of its trees once, reporting unknown node
types, malformed port bindings, missing required ports and recursive subtrees.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := factory.ParseFile(args[0])
			if err != nil {
				return err
			}
			f, err := factory.New(doc, nil, factory.WithContext(cmd.Context()), factory.WithLogger(a.logger))
			if err != nil {
				return err
			}
			if err := f.Validate(); err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			ids := f.TreeIDs()
			_, _ = fmt.Fprintf(a.stdout, "%s: %d tree(s) valid\n", args[0], len(ids))
			for _, id := range ids {
				_, _ = fmt.Fprintf(a.stdout, "  %s\n", id)
			}
			return nil
		},
	}
}
