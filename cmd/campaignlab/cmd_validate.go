package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"campaignlab.ai/internal/logcheck"
)

var validateMaxIssues int

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check decisions.jsonl and outcomes.jsonl against the log schemas",
	Long: `Validates every line of the decision and outcome logs in the log directory
(plain or .zst), checks that decision ids are unique and that every outcome
refers to a logged decision. Exits non-zero when errors are found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := logcheck.New()
		if err != nil {
			return err
		}
		rep, err := c.CheckDir(cmd.Context(), cfg.LogDir)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "decisions: %d (%s)\n", rep.Decisions, rep.DecisionsPath)
		fmt.Fprintf(out, "outcomes:  %d (%s)\n", rep.Outcomes, rep.OutcomesPath)
		printIssues(cmd, "warning", rep.Warnings)
		printIssues(cmd, "error", rep.Errors)
		if !rep.OK() {
			return fmt.Errorf("%d errors", len(rep.Errors))
		}
		fmt.Fprintln(out, "OK")
		return nil
	},
}

func init() {
	validateCmd.Flags().IntVar(&validateMaxIssues, "max-issues", 50, "issues to print per severity")
}

func printIssues(cmd *cobra.Command, sev string, issues []logcheck.Issue) {
	for i, is := range issues {
		if i == validateMaxIssues {
			fmt.Fprintf(cmd.OutOrStdout(), "... %d more %ss\n", len(issues)-i, sev)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", sev, is)
	}
}
