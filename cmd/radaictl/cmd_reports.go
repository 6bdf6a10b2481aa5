package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DukeRupert/radai/internal/domain"
	"github.com/DukeRupert/radai/internal/service"
)

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd, func(svc service.ReportService) error {
				record, err := svc.Get(cmd.Context(), args[0])
				if err != nil {
					return describe(err)
				}
				return c.printRecord(cmd.OutOrStdout(), record)
			})
		},
	}
}

func (c *cli) approveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id>",
		Short: "Mark an analyzed report as reviewed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd, func(svc service.ReportService) error {
				record, err := svc.Approve(cmd.Context(), args[0])
				if err != nil {
					return describe(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report %s is %s\n", record.ID, record.Status)
				return nil
			})
		},
	}
}

func (c *cli) notifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify <id>",
		Short: "Email the patient that an approved report is ready",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd, func(svc service.ReportService) error {
				record, err := svc.Notify(cmd.Context(), args[0])
				if err != nil {
					return describe(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report %s is %s\n", record.ID, record.Status)
				return nil
			})
		},
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a stored report and its X-ray",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd, func(svc service.ReportService) error {
				if err := svc.Delete(cmd.Context(), args[0]); err != nil {
					return describe(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report %s deleted\n", args[0])
				return nil
			})
		},
	}
}

func (c *cli) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <id>",
		Short: "Print the plain-text summary of a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd, func(svc service.ReportService) error {
				text, err := svc.Summary(cmd.Context(), args[0])
				if err != nil {
					return describe(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
}

// printRecord writes a record as JSON or as an aligned listing.
func (c *cli) printRecord(out io.Writer, r *domain.ReportRecord) error {
	if c.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	fmt.Fprintf(out, "Report:      %s\n", r.ID)
	fmt.Fprintf(out, "Status:      %s\n", r.Status)
	fmt.Fprintf(out, "Patient:     %s\n", r.PatientName)
	fmt.Fprintf(out, "Created:     %s\n", r.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "Confidence:  %s\n", r.AIConfidence)
	fmt.Fprintf(out, "Urgency:     %s\n", r.Urgency())
	if len(r.Findings) > 0 {
		fmt.Fprintf(out, "Findings:\n")
		findings := append([]domain.Finding(nil), r.Findings...)
		sort.SliceStable(findings, func(i, j int) bool { return findings[i].Confidence > findings[j].Confidence })
		for _, f := range findings {
			fmt.Fprintf(out, "  %-28s %3.0f%%  %s\n", f.Pathology, f.Confidence*100, f.Severity)
		}
	}
	fmt.Fprintf(out, "Impression:  %s\n", r.Impression)
	if len(r.Recommendations) > 0 {
		fmt.Fprintf(out, "Recommendations:\n  - %s\n", strings.Join(r.Recommendations, "\n  - "))
	}
	return nil
}

// describe turns a service error into the message shown to the operator.
func describe(err error) error {
	var de *domain.Error
	if errors.As(err, &de) && de.Code != domain.EINTERNAL {
		return fmt.Errorf("%s: %s", de.Code, domain.ErrorMessage(err))
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		keys := make([]string, 0, len(ve.Fields))
		for k := range ve.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+ve.Fields[k])
		}
		return fmt.Errorf("%s: %s", domain.EINVALID, strings.Join(parts, "; "))
	}
	return err
}
