package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanmcp/internal/readpack"
)

// newContextCmd is a thin onboarding-flavored entry point over read-pack:
// `amanmcp context` with no flags renders the repo onboarding overview
// (the read_pack onboarding intent), the same summary a fresh MCP client
// session would pull before its first real query.
func newContextCmd() *cobra.Command {
	var opts readPackOptions

	cmd := &cobra.Command{
		Use:   "context",
		Short: "Show a repo onboarding overview via read_pack",
		Long: `context renders the onboarding .context document: a summary of the
project's layout and recent activity, the same thing an MCP client sees
when it calls read_pack with intent=onboarding on a fresh session.

Pass --query to instead resolve a semantic query through the same renderer.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.intent == "" && opts.query == "" && opts.question == "" {
				opts.intent = string(readpack.IntentOnboarding)
			}
			return runReadPack(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.intent, "intent", "", "Explicit intent override (default: onboarding)")
	cmd.Flags().StringVar(&opts.path, "path", "", "Project root hint")
	cmd.Flags().StringVar(&opts.query, "query", "", "Resolve a semantic query instead of the onboarding summary")
	cmd.Flags().StringVar(&opts.question, "question", "", "Resolve a recall question instead of the onboarding summary")
	cmd.Flags().IntVar(&opts.maxChars, "max-chars", 0, "Output budget in characters (default from config)")
	cmd.Flags().StringVar(&opts.responseMode, "response-mode", "", "facts or narrative rendering")

	return cmd
}
