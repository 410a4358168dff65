package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"issuepatch/internal/app"
	"issuepatch/internal/config"
	"issuepatch/internal/contextutil"
	"issuepatch/internal/hosting"
	"issuepatch/internal/issue"
	"issuepatch/internal/patch"
)

// globals shared by every subcommand
var (
	repoFlag    string
	scrapeFiles bool
	rebuild     bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "issuepatch",
		Short:        "rank repository files by relevance to an issue and propose patches",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&repoFlag, "repo", "", "repository as owner/name (overrides REPO)")
	root.PersistentFlags().BoolVar(&rebuild, "rebuild", false, "discard cached snapshots and re-embed the repository")
	root.PersistentFlags().BoolVar(&scrapeFiles, "scrape-files", false, "read pull request changed files from the web page instead of the API")

	root.AddCommand(rankCmd(), patchCmd(), issuesCmd(), linksCmd(), evalCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if repoFlag != "" {
		cfg.Repo = repoFlag
	}
	return cfg, nil
}

// setup loads config, installs a stderr logger carrying a run ID and builds the App.
// The caller closes the App.
func setup() (context.Context, *config.Config, *app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler).With("run_id", uuid.NewString())
	slog.SetDefault(logger)
	ctx := contextutil.WithLogger(context.Background(), logger)

	ov := app.Overrides{Rebuild: rebuild}
	if scrapeFiles {
		ov.SourceOptions = append(ov.SourceOptions, hosting.WithFileLister(hosting.NewHTMLScraper(http.DefaultClient)))
	}
	a, err := app.New(ctx, cfg, ov)
	if err != nil {
		return nil, nil, nil, err
	}
	return ctx, cfg, a, nil
}

func fetchIssue(ctx context.Context, a *app.App, number int) (*issue.Issue, error) {
	h, err := a.Source.Issue(ctx, number)
	if err != nil {
		return nil, err
	}
	return issue.FromHosting(h), nil
}

func rankCmd() *cobra.Command {
	var (
		number int
		k      int
		pr     int
		check  bool
	)
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "print the files nearest to an issue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, a, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			if k <= 0 {
				k = cfg.NumHits
			}

			iss, err := fetchIssue(ctx, a, number)
			if err != nil {
				return err
			}
			results, err := a.Engine.NearestFiles(ctx, iss, k)
			if err != nil {
				return err
			}

			out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(out, "#%d %s\n", iss.Number, iss.Title)
			if len(iss.AllowedExtensions) > 0 {
				fmt.Fprintf(out, "extensions: %v\n", iss.AllowedExtensions)
			}
			for i, res := range results {
				fmt.Fprintf(out, "%d\t%.4f\t%s\n", i+1, res.Score, res.Path)
				if d, ok := a.Engine.Description(res.Path); ok {
					fmt.Fprintf(out, "\t\t%s\n", d)
				}
			}
			if err := out.Flush(); err != nil {
				return err
			}

			if check {
				agree, err := a.Engine.CrossValidate(ctx, iss.Embedding, k)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "index agrees with brute force: %t\n", agree)
			}

			if pr > 0 {
				p, err := a.Source.PullRequest(ctx, pr)
				if err != nil {
					return err
				}
				score, err := a.Engine.Evaluate(ctx, iss, p, k)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pull request #%d: %d of %d changed files retrieved\n",
					p.Number, score.Hits, score.Hits+score.Misses)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&number, "issue", 0, "issue number")
	cmd.Flags().IntVar(&k, "k", 0, "number of files to retrieve (default NUM_HITS)")
	cmd.Flags().IntVar(&pr, "pr", 0, "pull request that fixed the issue, to score retrieval against")
	cmd.Flags().BoolVar(&check, "check", true, "cross-check the index against a brute-force scan")
	_ = cmd.MarkFlagRequired("issue")
	return cmd
}

func patchCmd() *cobra.Command {
	var (
		number  int
		k       int
		outFile string
	)
	cmd := &cobra.Command{
		Use:   "patch",
		Short: "propose whole-file patches for the files nearest to an issue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, a, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			if k <= 0 {
				k = cfg.NumHits
			}

			iss, err := fetchIssue(ctx, a, number)
			if err != nil {
				return err
			}
			patches, attempts, err := a.Engine.Patches(ctx, iss, k)
			if err != nil {
				return err
			}

			for _, at := range attempts {
				line := fmt.Sprintf("%-10s %s", at.State, at.Path)
				if at.Err != nil {
					line += ": " + at.Err.Error()
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			counts := patch.Counts(attempts)
			fmt.Fprintf(cmd.OutOrStdout(), "patched %d, skipped %d, malformed %d, not found %d, failed %d\n",
				counts[patch.StatePatched], counts[patch.StateSkipped], counts[patch.StateMalformed],
				counts[patch.StateNotFound], counts[patch.StateFailed])

			if outFile == "" {
				return nil
			}
			buf, err := json.MarshalIndent(patches, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(outFile, buf, 0644); err != nil {
				return fmt.Errorf("failed to write patches: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d patches to %s\n", len(patches), outFile)
			return nil
		},
	}
	cmd.Flags().IntVar(&number, "issue", 0, "issue number")
	cmd.Flags().IntVar(&k, "k", 0, "number of files to consider (default NUM_HITS)")
	cmd.Flags().StringVar(&outFile, "out", "", "write patches as JSON to this file")
	_ = cmd.MarkFlagRequired("issue")
	return cmd
}

func issuesCmd() *cobra.Command {
	var state string
	cmd := &cobra.Command{
		Use:   "issues",
		Short: "list issues on the repository (pull requests excluded)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			owner, name, err := hosting.ParseRepo(cfg.Repo)
			if err != nil {
				return err
			}
			ctx := context.Background()
			src, err := hosting.NewGitHubSource(ctx, owner, name, cfg.GitHubToken)
			if err != nil {
				return err
			}

			issues, err := src.ListIssues(ctx, state)
			if err != nil {
				return err
			}
			for _, iss := range issues {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", iss.Number, iss.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&state, "state", "open", "issue state: open, closed or all")
	return cmd
}

func linksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "links",
		Short: "print closed issues that link exactly one pull request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			owner, name, err := hosting.ParseRepo(cfg.Repo)
			if err != nil {
				return err
			}

			links, err := hosting.NewLinkScraper(http.DefaultClient, "").IssuePRMap(context.Background(), owner, name)
			if err != nil {
				return err
			}
			for _, n := range sortedKeys(links) {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%d\n", n, links[n])
			}
			return nil
		},
	}
}

func evalCmd() *cobra.Command {
	var (
		k     int
		limit int
	)
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "score retrieval against the pull requests linked from closed issues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, a, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			if k <= 0 {
				k = cfg.NumHits
			}
			logger := contextutil.LoggerFromContext(ctx)

			links, err := hosting.NewLinkScraper(http.DefaultClient, "").IssuePRMap(ctx, a.Owner, a.Name)
			if err != nil {
				return err
			}

			var hits, misses, evaluated int
			for _, number := range sortedKeys(links) {
				if limit > 0 && evaluated >= limit {
					break
				}
				h, err := a.Source.Issue(ctx, number)
				if err != nil {
					logger.WarnContext(ctx, "skipping issue", "issue", number, "error", err)
					continue
				}
				pr, err := a.Source.PullRequest(ctx, links[number])
				if err != nil {
					logger.WarnContext(ctx, "skipping issue", "issue", number, "pr", links[number], "error", err)
					continue
				}
				score, err := a.Engine.Evaluate(ctx, issue.FromHosting(h), pr, k)
				if err != nil {
					return err
				}
				hits += score.Hits
				misses += score.Misses
				evaluated++
				fmt.Fprintf(cmd.OutOrStdout(), "#%d -> #%d\t%d/%d\n", number, pr.Number, score.Hits, score.Hits+score.Misses)
			}

			recall := 0.0
			if hits+misses > 0 {
				recall = float64(hits) / float64(hits+misses)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "issues %d, files retrieved %d of %d (recall@%d %.3f)\n",
				evaluated, hits, hits+misses, k, recall)
			return nil
		},
	}
	cmd.Flags().IntVar(&k, "k", 0, "number of files to retrieve (default NUM_HITS)")
	cmd.Flags().IntVar(&limit, "limit", 0, "evaluate at most this many issues (0 means all)")
	return cmd
}

func sortedKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for n := range m {
		keys = append(keys, n)
	}
	sort.Ints(keys)
	return keys
}
