package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mobigaurav/ai-release-guardian/internal/config"
	"github.com/mobigaurav/ai-release-guardian/internal/format"
	"github.com/mobigaurav/ai-release-guardian/internal/logging"
	"github.com/mobigaurav/ai-release-guardian/internal/report"
	"github.com/mobigaurav/ai-release-guardian/internal/rollback"
	"github.com/mobigaurav/ai-release-guardian/internal/store"
)

func outputMode(markdown bool) format.Mode {
	if markdown {
		return format.Markdown
	}
	return format.ASCII
}

var rollbackFlags struct {
	releaseID  string
	files      []string
	riskFlags  []string
	markdown   bool
	checklists bool
}

func newRollbackPlanCmd() *cobra.Command {
	f := &rollbackFlags
	cmd := &cobra.Command{
		Use:   "rollback-plan",
		Short: "Print a rollback plan for a set of changed files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan := rollback.New(logging.New("rollback")).Plan(rollback.Input{
				ReleaseID:    f.releaseID,
				ChangedFiles: f.files,
				RiskFlags:    f.riskFlags,
			})
			cmd.Print(report.RollbackTable(plan, outputMode(f.markdown)))
			if !f.checklists {
				return nil
			}
			cmd.Println("\nBefore deploying:")
			for _, item := range rollback.PreDeploymentChecklist(plan) {
				cmd.Printf("  [ ] %s\n", item)
			}
			cmd.Println("\nAfter deploying:")
			for _, item := range rollback.PostDeploymentChecklist() {
				cmd.Printf("  [ ] %s\n", item)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&f.releaseID, "release-id", "", "release identifier (required)")
	cmd.Flags().StringSliceVar(&f.files, "files", nil, "changed file paths, comma separated")
	cmd.Flags().StringSliceVar(&f.riskFlags, "risk-flag", nil, "risk flags to raise alerts for (repeatable)")
	cmd.Flags().BoolVar(&f.markdown, "markdown", false, "render as Markdown")
	cmd.Flags().BoolVar(&f.checklists, "checklists", false, "also print pre- and post-deployment checklists")
	_ = cmd.MarkFlagRequired("release-id")
	return cmd
}

var historyFlags struct {
	owner    string
	repo     string
	number   int
	limit    int
	markdown bool
}

func newHistoryCmd() *cobra.Command {
	f := &historyFlags
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded deployment decisions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			s, err := store.Open(cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("open decision history: %w", err)
			}
			defer s.Close()

			records, err := s.ListDecisions(cmd.Context(), store.Filter{
				Owner:    f.owner,
				Repo:     f.repo,
				PRNumber: f.number,
				Limit:    f.limit,
			})
			if err != nil {
				return err
			}
			cmd.Print(report.HistoryTable(records, outputMode(f.markdown)))
			return nil
		},
	}
	cmd.Flags().StringVar(&f.owner, "repo-owner", "", "filter by repository owner")
	cmd.Flags().StringVar(&f.repo, "repo-name", "", "filter by repository name")
	cmd.Flags().IntVar(&f.number, "pr-number", 0, "filter by pull request number")
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 20, "maximum records to show")
	cmd.Flags().BoolVar(&f.markdown, "markdown", false, "render as Markdown")
	return cmd
}
