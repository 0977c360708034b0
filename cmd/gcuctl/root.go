package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	outputFmt string
	actor     string
	role      string
	authType  string
)

var rootCmd = &cobra.Command{
	Use:   "gcuctl",
	Short: "CLI for the governance control unit server",
	Long: `gcuctl talks to a running gcu-server: submit documents through the
governance gate, act on pending reviews, apply admin overrides, and
inspect run status and audit trails.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer(), "GCU server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", "gcuctl", "Actor recorded in governance events")
	rootCmd.PersistentFlags().StringVar(&role, "role", "operator", "Role recorded in governance events")
	rootCmd.PersistentFlags().StringVar(&authType, "auth-type", "cli", "Auth type recorded in governance events")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(overrideCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(healthCmd)
}

func defaultServer() string {
	if v := os.Getenv("GCU_SERVER"); v != "" {
		return v
	}
	return "http://localhost:8000"
}
