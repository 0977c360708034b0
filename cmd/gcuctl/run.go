package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	runCapability string
	runText       string
	runTextFile   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit a document through the governance gate",
	Long: `Submits document text to POST /run. The server classifies the
document and governance decides the final status; needs_review runs
wait for a manual review or an admin override.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runCapability, "capability", "np_document_triage", "Capability name expected by the server")
	runCmd.Flags().StringVar(&runText, "text", "", "Document text to classify")
	runCmd.Flags().StringVar(&runTextFile, "file", "", "Read document text from a file (- for stdin)")
}

func runRun(cmd *cobra.Command, args []string) error {
	text := runText
	if runTextFile != "" {
		var data []byte
		var err error
		if runTextFile == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(runTextFile)
		}
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}
		text = string(data)
	}
	if text == "" {
		return fmt.Errorf("provide document text with --text or --file")
	}

	client := newClient()
	var resp map[string]any
	err := client.postJSON("/run", map[string]any{
		"capability": runCapability,
		"payload":    map[string]any{"text": text},
		"actor":      actor,
		"role":       role,
		"auth_type":  authType,
	}, &resp)
	if err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}

	runID, _ := resp["run_id"].(string)
	status, _ := resp["status"].(string)
	classification, _ := resp["classification"].(string)
	confidence, _ := resp["confidence"].(float64)
	audit, _ := resp["governance_audit"].(string)

	printTable(
		[]string{"Run ID", "Status", "Classification", "Confidence", "Audit"},
		[][]string{{
			runID,
			status,
			classification,
			fmt.Sprintf("%.2f", confidence),
			truncate(audit, 60),
		}},
	)

	if strings.EqualFold(status, "needs_review") {
		fmt.Printf("\nRun is waiting for review: gcuctl review approve %s\n", runID)
	}
	return nil
}
