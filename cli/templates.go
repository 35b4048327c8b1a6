package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/allfeat/massload/pkg/logger"
)

func TemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage cached transformation templates",
	}
	cmd.AddCommand(
		templatesListCmd(),
		templatesDeleteCmd(),
		templatesImportCmd(),
	)
	return cmd
}

func templatesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored templates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			stored := application.registry.List()
			if len(stored) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no templates stored")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCOLUMNS\tSUCCESS\tUSES\tLAST USED")
			for _, m := range stored {
				lastUsed := "never"
				if m.LastUsed != nil {
					lastUsed = m.LastUsed.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\t%d\t%s\n",
					m.ID, m.Name, strings.Join(m.CsvColumns, ","),
					m.SuccessRate*100, m.UseCount, lastUsed)
			}
			return w.Flush()
		},
	}
}

func templatesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := application.registry.Delete(args[0]); err != nil {
				return err
			}
			logger.FromContext(cmd.Context()).Info("template deleted", "id", args[0])
			return nil
		},
	}
}

func templatesImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <matrix.json>",
		Short: "Import a transformation matrix file as a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			id, err := application.registry.Import(args[0], name)
			if err != nil {
				return err
			}
			logger.FromContext(cmd.Context()).Info("template imported", "id", id, "name", name)
			return nil
		},
	}
	cmd.Flags().String("name", "", "Template name (defaults to the file name)")
	return cmd
}
