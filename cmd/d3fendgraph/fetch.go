package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pauloribeiro16/D3fendGraph/internal/ontology"
)

var fetchOut string

var fetchCWECmd = &cobra.Command{
	Use:   "fetch-cwe",
	Short: "Fetch weakness records from the CWE REST API",
	Long: `Walks the CWE software-development view, fetches every member
category and weakness plus the Top-25 list, and writes the records as
JSON files that an ingest source of kind 'cwe' or 'cwe-categories' can
load.`,
	RunE: runFetchCWE,
}

func runFetchCWE(cmd *cobra.Command, args []string) error {
	fetcher := ontology.NewFetcher(cfg.Fetcher, logger)
	result, err := fetcher.FetchAll(cmd.Context())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(fetchOut, 0o755); err != nil {
		return fmt.Errorf("cannot create output directory: %w", err)
	}
	if err := writeJSON(filepath.Join(fetchOut, "weaknesses.json"), result.Weaknesses); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(fetchOut, "categories.json"), result.Categories); err != nil {
		return err
	}

	cmd.Printf("wrote %d weaknesses and %d categories to %s\n",
		len(result.Weaknesses), len(result.Categories), fetchOut)
	for _, failure := range result.Failures {
		cmd.PrintErrf("failed: %s: %s\n", failure.Item, failure.Err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func init() {
	fetchCWECmd.Flags().StringVarP(&fetchOut, "out", "o",
		"data/cwe", "Directory the fetched records are written to")
}
