// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/procomply/procomply/internal/api"
	"github.com/procomply/procomply/internal/cpd"
	"github.com/procomply/procomply/internal/xdg"
)

// NewCPDCmd creates the cpd subcommand tree.
func NewCPDCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cpd",
		Short: "Manage CPD activities and compliance reports",
	}

	cmd.AddCommand(newCPDListCmd())
	cmd.AddCommand(newCPDLogCmd())
	cmd.AddCommand(newCPDSummaryCmd())
	cmd.AddCommand(newCPDReportCmd())

	return cmd
}

// cpdListConfig holds configuration for cpd list.
type cpdListConfig struct {
	activityType string
	status       string
	search       string
	year         int
	jsonOutput   bool
}

func newCPDListCmd() *cobra.Command {
	cfg := &cpdListConfig{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List logged CPD activities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCPDListWithDeps(cmd, cfg, nil)
		},
	}

	cmd.Flags().StringVar(&cfg.activityType, "type", "", "filter by activity category")
	cmd.Flags().StringVar(&cfg.status, "status", "", "filter by status (APPROVED or REJECTED)")
	cmd.Flags().StringVar(&cfg.search, "search", "", "search title and description")
	cmd.Flags().IntVar(&cfg.year, "year", 0, "filter by completion year")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output as JSON")

	return cmd
}

func runCPDListWithDeps(cmd *cobra.Command, cfg *cpdListConfig, deps *AppDeps) error {
	a, err := buildApp(deps)
	if err != nil {
		return err
	}
	if err := a.requireSession(cmd.Context()); err != nil {
		return err
	}

	activities, err := a.activities.Fetch(cmd.Context())
	if err != nil {
		return fmt.Errorf("%s", api.UserMessage(err))
	}

	shown := cpd.Apply(activities, cpd.Filter{
		Type:   cpd.ActivityType(cfg.activityType),
		Status: cpd.Status(cfg.status),
		Search: cfg.search,
		Year:   cfg.year,
	})

	if cfg.jsonOutput {
		out, err := json.MarshalIndent(shown, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		cmd.Println(string(out))
		return nil
	}

	if len(shown) == 0 {
		cmd.Println("No activities match.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tTITLE\tCATEGORY\tHOURS\tPDUS\tSTATUS")
	for _, activity := range shown {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%s\n",
			activity.ID, activity.DateCompleted, activity.Title,
			activity.Type, activity.HoursSpent, activity.PDUUnitsAwarded, activity.Status)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing table: %w", err)
	}

	stats := cpd.ComputeStats(shown)
	cmd.Printf("\n%d activities, %d approved PDUs, %d hours\n", stats.Count, stats.ApprovedPDUs, stats.TotalHours)
	return nil
}

// cpdLogConfig holds configuration for cpd log.
type cpdLogConfig struct {
	title        string
	description  string
	activityType string
	date         string
	hours        int
	documentPath string
}

func newCPDLogCmd() *cobra.Command {
	cfg := &cpdLogConfig{}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Log a new CPD activity",
		Long: `Log a CPD activity. The backend reviews the submission against
EBK annual limits and awards PDUs, or rejects it with a reason.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCPDLogWithDeps(cmd, cfg, nil)
		},
	}

	cmd.Flags().StringVar(&cfg.title, "title", "", "activity title")
	cmd.Flags().StringVar(&cfg.description, "description", "", "activity description")
	cmd.Flags().StringVar(&cfg.activityType, "type", "", "activity category")
	cmd.Flags().StringVar(&cfg.date, "date", "", "completion date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&cfg.hours, "hours", 0, "hours spent")
	cmd.Flags().StringVar(&cfg.documentPath, "document", "", "path to a supporting document")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("hours")

	return cmd
}

func runCPDLogWithDeps(cmd *cobra.Command, cfg *cpdLogConfig, deps *AppDeps) error {
	if !cpd.ActivityType(cfg.activityType).Valid() {
		return fmt.Errorf("unknown activity type %q; one of: %v", cfg.activityType, cpd.ActivityTypes())
	}

	a, err := buildApp(deps)
	if err != nil {
		return err
	}
	if err := a.requireSession(cmd.Context()); err != nil {
		return err
	}

	// Preview the award against the cached activity list so a doomed
	// submission at least carries a warning. The backend stays authoritative.
	if existing, fetchErr := a.activities.Fetch(cmd.Context()); fetchErr == nil {
		year := time.Now().Year()
		if d, parseErr := time.Parse("2006-01-02", cfg.date); parseErr == nil {
			year = d.Year()
		}
		preview := cpd.PreviewAward(existing, cpd.ActivityType(cfg.activityType), cfg.hours, year)
		if preview.Rejected {
			cmd.PrintErrf("warning: this submission is likely to be rejected: %s\n", preview.RejectionReason)
		}
	}

	var document *api.FileAttachment
	if cfg.documentPath != "" {
		file, err := os.Open(cfg.documentPath)
		if err != nil {
			return fmt.Errorf("opening document: %w", err)
		}
		defer file.Close()
		document = &api.FileAttachment{
			Field:    "supporting_document",
			Filename: filepath.Base(cfg.documentPath),
			Content:  file,
		}
	}

	created, err := a.activities.Create(cmd.Context(), cpd.NewActivity{
		Title:         cfg.title,
		Description:   cfg.description,
		Type:          cpd.ActivityType(cfg.activityType),
		DateCompleted: cfg.date,
		HoursSpent:    cfg.hours,
	}, document)
	if err != nil {
		if fields := api.FieldErrors(err); len(fields) > 0 {
			return fmt.Errorf("submission rejected:\n%s", formatFieldErrors(fields))
		}
		return fmt.Errorf("%s", api.UserMessage(err))
	}

	switch created.Status {
	case cpd.StatusApproved:
		cmd.Printf("Activity #%d approved: %d PDUs awarded\n", created.ID, created.PDUUnitsAwarded)
	case cpd.StatusRejected:
		cmd.Printf("Activity #%d rejected: %s\n", created.ID, created.RejectionReason)
	default:
		cmd.Printf("Activity #%d logged\n", created.ID)
	}
	return nil
}

// cpdSummaryConfig holds configuration for cpd summary.
type cpdSummaryConfig struct {
	year       int
	jsonOutput bool
}

func newCPDSummaryCmd() *cobra.Command {
	cfg := &cpdSummaryConfig{}

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the annual PDU summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCPDSummaryWithDeps(cmd, cfg, nil)
		},
	}

	cmd.Flags().IntVar(&cfg.year, "year", time.Now().Year(), "summary year")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output as JSON")

	return cmd
}

func runCPDSummaryWithDeps(cmd *cobra.Command, cfg *cpdSummaryConfig, deps *AppDeps) error {
	a, err := buildApp(deps)
	if err != nil {
		return err
	}
	if err := a.requireSession(cmd.Context()); err != nil {
		return err
	}

	summary, err := a.activities.FetchSummary(cmd.Context(), cfg.year)
	if err != nil {
		return fmt.Errorf("%s", api.UserMessage(err))
	}

	if cfg.jsonOutput {
		out, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		cmd.Println(string(out))
		return nil
	}

	cmd.Printf("PDU summary for %d: %d earned of %d required (%d%%), %d remaining\n",
		int(summary.Year), summary.TotalPDUsEarned, summary.TotalPDUsRequired,
		summary.ProgressPercent(), summary.TotalPDUsRemaining)

	if len(summary.BreakdownByCategory) == 0 {
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tEARNED\tREMAINING\tLIMIT")
	for _, activityType := range cpd.ActivityTypes() {
		breakdown, ok := summary.BreakdownByCategory[activityType]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", activityType, breakdown.Earned, breakdown.Remaining, breakdown.Limit)
	}
	return w.Flush()
}

// cpdReportConfig holds configuration for cpd report.
type cpdReportConfig struct {
	year   int
	output string
}

func newCPDReportCmd() *cobra.Command {
	cfg := &cpdReportConfig{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Download the annual compliance report PDF",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCPDReportWithDeps(cmd, cfg, nil)
		},
	}

	cmd.Flags().IntVar(&cfg.year, "year", time.Now().Year(), "report year")
	cmd.Flags().StringVarP(&cfg.output, "output", "o", "", "output file (default: XDG data dir)")

	return cmd
}

func runCPDReportWithDeps(cmd *cobra.Command, cfg *cpdReportConfig, deps *AppDeps) error {
	a, err := buildApp(deps)
	if err != nil {
		return err
	}
	if err := a.requireSession(cmd.Context()); err != nil {
		return err
	}

	path := cfg.output
	if path == "" {
		dir := xdg.ReportsDir()
		if err := xdg.EnsureDir(dir); err != nil {
			return err
		}
		path = filepath.Join(dir, fmt.Sprintf("cpd-report-%d.pdf", cfg.year))
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer out.Close()

	if err := a.activities.DownloadReport(cmd.Context(), cfg.year, out); err != nil {
		os.Remove(path)
		return fmt.Errorf("%s", api.UserMessage(err))
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("writing report file: %w", err)
	}

	cmd.Printf("Report saved to %s\n", path)
	return nil
}
