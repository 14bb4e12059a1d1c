// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/searchhub/internal/engine"
	"github.com/pdiddy/searchhub/internal/logging"
	"github.com/pdiddy/searchhub/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run an aggregated search across the configured backends",
	Long: `Search dispatches the query to every backend routed for the search type
(general, academic, patent, company), merges and deduplicates the results,
scores them for quality, and reranks them semantically. Partial backend
failures are absorbed; the list that arrives is what gets printed.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("keywords", "", "search keywords (comma-separated, required)")
	searchCmd.Flags().String("type", "general", "search type: general, academic, patent, company")
	searchCmd.Flags().Int("limit", types.DefaultResultLimit, "maximum number of results to return")
	searchCmd.Flags().String("from", "", "publication date range start (YYYY-MM-DD)")
	searchCmd.Flags().String("to", "", "publication date range end (YYYY-MM-DD)")
	searchCmd.Flags().String("assignee", "", "patent assignee filter")
	searchCmd.Flags().String("source", "", "restrict results to one site, e.g. arxiv.org")
	searchCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	req, err := requestFromFlags(cmd)
	if err != nil {
		return err
	}

	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	log := logging.New(level)
	defer log.Sync()

	eng, err := engine.New(loadConfig(), log)
	if err != nil {
		return err
	}
	defer eng.Close()

	results, err := eng.Search(context.Background(), req)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatSearchOutput(results, jsonOutput)
}

func requestFromFlags(cmd *cobra.Command) (types.SearchRequest, error) {
	var req types.SearchRequest

	raw, _ := cmd.Flags().GetString("keywords")
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			req.Keywords = append(req.Keywords, k)
		}
	}
	if len(req.Keywords) == 0 {
		return req, fmt.Errorf("--keywords is required")
	}

	searchType, _ := cmd.Flags().GetString("type")
	req.Type = types.SearchType(searchType)
	if !req.Type.Valid() {
		return req, fmt.Errorf("unknown search type %q (want general, academic, patent, or company)", searchType)
	}

	req.Limit, _ = cmd.Flags().GetInt("limit")
	req.Assignee, _ = cmd.Flags().GetString("assignee")
	req.Source, _ = cmd.Flags().GetString("source")

	if from, _ := cmd.Flags().GetString("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return req, fmt.Errorf("invalid --from date %q: want YYYY-MM-DD", from)
		}
		req.DateFrom = t
	}
	if to, _ := cmd.Flags().GetString("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return req, fmt.Errorf("invalid --to date %q: want YYYY-MM-DD", to)
		}
		req.DateTo = t
	}

	return req, nil
}

func formatSearchOutput(results []types.SearchResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-7s  %-50s  %-12s  %s\n",
		"Rank", "Score", "Title", "Sources", "URL")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))

	for i, r := range results {
		title := r.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-7.3f  %-50s  %-12s  %s\n",
			i+1, r.QualityScore, title, r.Sources, r.URL)
	}
	fmt.Fprintf(os.Stdout, "\n%d result(s)\n", len(results))
	return nil
}
