package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DukeRupert/radai/internal/ai"
	"github.com/DukeRupert/radai/internal/service"
	"github.com/DukeRupert/radai/internal/storage"
)

func (c *cli) analyzeCmd() *cobra.Command {
	var name, email string

	cmd := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Analyze a chest X-ray and store the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			if len(data) > ai.MaxImageSize {
				return fmt.Errorf("image exceeds the %d byte limit", ai.MaxImageSize)
			}

			contentType := storage.SniffContentType(data)
			if !storage.IsAllowedImageType(contentType) {
				return fmt.Errorf("unsupported image type %s (want JPEG, PNG, GIF or WebP)", contentType)
			}

			return c.withService(cmd, func(svc service.ReportService) error {
				record, err := svc.Analyze(cmd.Context(), service.AnalyzeParams{
					ImageDataURI: ai.NewImage(contentType, data).DataURI(),
					PatientName:  name,
					PatientEmail: email,
				})
				if err != nil {
					return describe(err)
				}
				return c.printRecord(cmd.OutOrStdout(), record)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&name, "name", "", "Patient name (required)")
	f.StringVar(&email, "email", "", "Patient email (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
