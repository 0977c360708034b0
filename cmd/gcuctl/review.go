package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reviewReason string

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Act on a run waiting for human review",
}

var reviewApproveCmd = &cobra.Command{
	Use:   "approve <run-id>",
	Short: "Approve a run in needs_review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReview(args[0], "approve")
	},
}

var reviewRejectCmd = &cobra.Command{
	Use:   "reject <run-id>",
	Short: "Reject a run in needs_review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReview(args[0], "reject")
	},
}

func init() {
	reviewCmd.PersistentFlags().StringVar(&reviewReason, "reason", "", "Reason recorded in the audit trail")
	reviewCmd.AddCommand(reviewApproveCmd)
	reviewCmd.AddCommand(reviewRejectCmd)
}

func runReview(runID, action string) error {
	client := newClient()
	var resp map[string]any
	err := client.postJSON("/review/"+runID, map[string]any{
		"action":    action,
		"actor":     actor,
		"role":      role,
		"auth_type": authType,
		"reason":    reviewReason,
	}, &resp)
	if err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}

	status, _ := resp["status"].(string)
	fmt.Printf("Review %s applied to run %s: status is now %s\n", action, runID, status)
	return nil
}
