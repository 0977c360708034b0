package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var overrideReason string

var overrideCmd = &cobra.Command{
	Use:   "override <run-id> <approved|rejected>",
	Short: "Force a run to a terminal status (admin only)",
	Long: `Applies an admin override via POST /admin/override/{run_id}. The
server accepts only the admin role and only approved or rejected as
targets; every override lands in the audit trail with its reason.`,
	Args: cobra.ExactArgs(2),
	RunE: runOverride,
}

func init() {
	overrideCmd.Flags().StringVar(&overrideReason, "reason", "", "Reason recorded in the audit trail (required)")
	_ = overrideCmd.MarkFlagRequired("reason")
}

func runOverride(cmd *cobra.Command, args []string) error {
	runID, target := args[0], args[1]

	client := newClient()
	var resp map[string]any
	err := client.postJSON("/admin/override/"+runID, map[string]any{
		"target_status": target,
		"actor":         actor,
		"role":          role,
		"auth_type":     authType,
		"reason":        overrideReason,
	}, &resp)
	if err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}

	status, _ := resp["status"].(string)
	fmt.Printf("Run %s overridden to %s by %s\n", runID, status, actor)
	return nil
}
