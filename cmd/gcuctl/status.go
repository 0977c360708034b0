package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show the current status of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var auditCmd = &cobra.Command{
	Use:   "audit <run-id>",
	Short: "Show the merged audit trail for a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runAudit,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := newClient()
	var resp map[string]any
	if err := client.getJSON("/debug/status/"+args[0], &resp); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}

	status, _ := resp["status"].(string)
	exists, _ := resp["exists"].(bool)
	printTable(
		[]string{"Run ID", "Status", "Exists"},
		[][]string{{args[0], status, fmt.Sprintf("%t", exists)}},
	)
	return nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	client := newClient()
	var resp map[string]any
	if err := client.getJSON("/debug/audit/"+args[0], &resp); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}

	trail, _ := resp["audit_trail"].([]any)
	rows := make([][]string, 0, len(trail))
	for _, raw := range trail {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		ts, _ := entry["ts"].(string)
		event, _ := entry["event"].(string)
		if event == "" {
			// In-memory transition records have from/to instead.
			from, _ := entry["from"].(string)
			to, _ := entry["to"].(string)
			event = fmt.Sprintf("TRANSITION %s -> %s", from, to)
		}
		rows = append(rows, []string{ts, truncate(event, 60)})
	}

	fmt.Printf("Audit trail for %s (%v entries):\n\n", args[0], resp["count"])
	printTable([]string{"Timestamp", "Event"}, rows)
	return nil
}
