package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanmcp/internal/config"
	"github.com/Aman-CERP/amanmcp/internal/freshness"
)

// newFreshnessCmd reports the project's current freshness state the same
// way the query-path gate (section 4.14) computes it, without running a
// search: useful for CI checks ("is the index stale before we commit?") and
// for debugging a search that returned unexpected stale_reasons.
func newFreshnessCmd() *cobra.Command {
	var policy string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "freshness",
		Short: "Report whether the index is stale relative to the project",
		Long: `Compute the project's current watermark and compare it against the
persisted index watermark, the same comparison search/search_code/search_docs
make before answering a query.

Use --policy to preview how a given stale_policy would react:
  auto  - report hints only, would trigger a budgeted reindex on a real query
  warn  - report hints only, never blocks
  fail  - exits non-zero if the index is missing or stale`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFreshness(cmd.Context(), cmd, policy, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&policy, "policy", "warn", "Policy to preview: auto, warn, or fail")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runFreshness(ctx context.Context, cmd *cobra.Command, policy string, jsonOutput bool) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		cwd, _ := os.Getwd()
		root = cwd
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dataDir := filepath.Join(root, ".amanmcp")
	vectorPath := filepath.Join(dataDir, "vectors.hnsw")

	gateCfg := freshness.Config{
		ProjectRoot:  root,
		StorePath:    vectorPath,
		ModelID:      cfg.Embeddings.Model,
		Profile:      cfg.Freshness.Profile,
		MaxReindexMS: cfg.Freshness.MaxReindexMS,
		// No Indexer: "auto" degrades to reporting hints rather than
		// reindexing, since a one-shot CLI check shouldn't mutate the index.
	}

	result, checkErr := freshness.Check(ctx, gateCfg, freshness.Policy(policy))

	if jsonOutput {
		payload := struct {
			State  any      `json:"state,omitempty"`
			Hints  []string `json:"hints,omitempty"`
			Blocked bool    `json:"blocked"`
			Error  string   `json:"error,omitempty"`
		}{
			State:   result.IndexState,
			Hints:   result.Hints,
			Blocked: checkErr != nil,
		}
		if checkErr != nil {
			payload.Error = checkErr.Error()
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(payload); err != nil {
			return err
		}
		if checkErr != nil && freshness.Policy(policy) == freshness.PolicyFail {
			return checkErr
		}
		return nil
	}

	if result.IndexState.Stale {
		fmt.Fprintln(cmd.OutOrStdout(), "index: stale")
		for _, reason := range result.IndexState.StaleReasons {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", reason)
		}
	} else if result.IndexState.Index.Exists {
		fmt.Fprintln(cmd.OutOrStdout(), "index: fresh")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "index: missing")
	}
	for _, hint := range result.Hints {
		fmt.Fprintf(cmd.OutOrStdout(), "hint: %s\n", hint)
	}

	if checkErr != nil {
		if freshness.Policy(policy) == freshness.PolicyFail {
			return checkErr
		}
		fmt.Fprintf(cmd.OutOrStdout(), "note: %s\n", checkErr.Error())
	}

	return nil
}
