package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export --out DIR",
		Short: "Write every catalog table to DIR as JSONL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.backend.Export(cmd.Context(), dir); err != nil {
				return sysError(fmt.Errorf("export: %w", err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d tables to %s\n", len(s.backend.Tables()), dir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "out", "o", "", "output directory (required)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "import --in DIR",
		Short: "Load JSONL table files from DIR in one transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.close()

			stats, err := s.backend.Import(cmd.Context(), dir)
			if err != nil {
				return sysError(fmt.Errorf("import: %w", err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows, skipped %d\n", stats.Rows, stats.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "in", "i", "", "input directory (required)")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
