package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/DukeRupert/radai/internal/report"
	"github.com/DukeRupert/radai/internal/service"
)

func (c *cli) exportCmd() *cobra.Command {
	var variant, outDir string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Render a report as PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := report.ParseVariant(variant)
			if err != nil {
				return describe(err)
			}

			return c.withService(cmd, func(svc service.ReportService) error {
				export, err := svc.Export(cmd.Context(), args[0], v)
				if err != nil {
					return describe(err)
				}

				if err := os.MkdirAll(outDir, 0o750); err != nil {
					return fmt.Errorf("create output directory: %w", err)
				}
				path := filepath.Join(outDir, export.FileName)
				if err := os.WriteFile(path, export.Data, 0o640); err != nil {
					return fmt.Errorf("write pdf: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", path, len(export.Data))
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&variant, "variant", string(report.VariantFull), "Document variant (full or simple)")
	f.StringVar(&outDir, "out", ".", "Output directory")
	return cmd
}
