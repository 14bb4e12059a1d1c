// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/searchhub/internal/engine"
	"github.com/pdiddy/searchhub/internal/logging"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend health, engine statistics, and redacted configuration",
	Long: `Status prints the engine's introspection snapshot: per-backend health
state and latency, request and error counters, and the effective
configuration with credentials redacted.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().Bool("json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	log := logging.New(level)
	defer log.Sync()

	eng, err := engine.New(loadConfig(), log)
	if err != nil {
		return err
	}
	defer eng.Close()

	st := eng.Status()

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	out, err := yaml.Marshal(st)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}
