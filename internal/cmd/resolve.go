package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/reugn/github-pin/internal/actions"
	"github.com/reugn/github-pin/internal/config"
	"github.com/reugn/github-pin/internal/logging"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	configFlag      string
	metricsFileFlag string
	statsFlag       bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <owner/repo[/path]@version>...",
	Short: "Resolve action versions to commit hashes",
	Long: `Resolve each action reference to the commit hash its version points at.

The version is tried as a tag, then as a branch, then as a commit hash.
Set GITHUB_TOKEN to resolve actions in private repositories and to raise
the API rate limit.`,
	Args:         cobra.MinimumNArgs(1),
	RunE:         runResolve,
	SilenceUsage: true,
}

func init() {
	resolveCmd.Flags().StringVar(&metricsFileFlag, "metrics-file", "",
		"Write lookup and cache metrics to this file in Prometheus text format")
	resolveCmd.Flags().BoolVar(&statsFlag, "stats", false, "Print cache statistics")
}

func runResolve(cmd *cobra.Command, args []string) error {
	refs := make([]actions.ActionReference, 0, len(args))
	for _, arg := range args {
		ref, err := actions.ParseActionUses(arg)
		if err != nil {
			return err
		}
		refs = append(refs, ref)
	}

	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return err
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.GetLogLevel())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client, err := actions.NewGitHubClient(cmd.Context(), actions.ClientOptions{
		Token:   os.Getenv(actions.GitHubTokenEnvVar),
		BaseURL: cfg.GetBaseURL(),
		Timeout: cfg.GetTimeout(),
	})
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	resolver := actions.NewResolver(client,
		actions.WithFormatter(cfg.GetFormatter()),
		actions.WithMetrics(actions.NewMetrics(registry)),
		actions.WithLogger(logger),
	)

	pinned, resolveErr := resolveAll(cmd.Context(), resolver, refs)
	if resolveErr == nil {
		printPinned(cmd.OutOrStdout(), refs, pinned)
	}

	if statsFlag {
		stats := resolver.CacheStats()
		printCacheStats(cmd.ErrOrStderr(), stats.Hits, stats.Misses)
	}
	if metricsFileFlag != "" {
		if err := prometheus.WriteToTextfile(metricsFileFlag, registry); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return resolveErr
}

// resolveAll resolves refs concurrently and returns the hashes in input order.
func resolveAll(ctx context.Context, resolver *actions.Resolver, refs []actions.ActionReference) ([]string, error) {
	pinned := make([]string, len(refs))
	g, ctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		g.Go(func() error {
			sha, err := resolver.Resolve(ctx, ref)
			if err != nil {
				return err
			}
			pinned[i] = sha
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pinned, nil
}

// formatPinned renders a pinned reference, keeping the original version as a comment.
func formatPinned(ref actions.ActionReference, sha string) string {
	if actions.IsCommitHash(ref.CurrentVersion) {
		return ref.Name() + "@" + sha
	}
	return fmt.Sprintf("%s@%s # %s", ref.Name(), sha, ref.CurrentVersion)
}

func printPinned(w io.Writer, refs []actions.ActionReference, pinned []string) {
	for i, ref := range refs {
		fmt.Fprintln(w, formatPinned(ref, pinned[i]))
	}
}

// printCacheStats prints lookup cache usage.
func printCacheStats(w io.Writer, hits, misses int64) {
	fmt.Fprintf(w, "\nCache: %d hit(s), %d lookup chain(s)\n", hits, misses)
}
