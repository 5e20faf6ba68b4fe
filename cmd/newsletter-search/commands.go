package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aryannaik/newsletter-search/internal/search"
	"github.com/aryannaik/newsletter-search/internal/substack"
)

func newSearchCmd() *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search posts from the command line",
		Long: `Search newsletter posts with the same ranking the server uses.

Examples:
  newsletter-search search "ai agents"
  newsletter-search search --limit 3 --format json "future of work"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must be non-negative, got %d", limit)
			}
			if err := validateFormat(format); err != nil {
				return err
			}

			a := newApp(loadConfig())
			posts, err := a.feed.FetchPosts(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetching posts: %w", err)
			}

			results := a.ranker.Search(cmd.Context(), args[0], posts, limit)
			return printResults(cmd.OutOrStdout(), results, format)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", search.DefaultLimit, "Maximum results to return")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")
	return cmd
}

func newPostsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List posts in the feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}

			a := newApp(loadConfig())
			posts, err := a.feed.FetchPosts(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetching posts: %w", err)
			}
			return printPosts(cmd.OutOrStdout(), posts, format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")
	return cmd
}

func validateFormat(format string) error {
	if format != "table" && format != "json" {
		return fmt.Errorf("--format must be table or json, got %q", format)
	}
	return nil
}

func printResults(out io.Writer, results []search.Result, format string) error {
	if format == "json" {
		return writeIndentedJSON(out, results)
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "No results.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SCORE\tTITLE\tLINK\n")
	for _, r := range results {
		fmt.Fprintf(w, "%.3f\t%s\t%s\n", r.Score, r.Post.Title, r.Post.Link)
	}
	return w.Flush()
}

func printPosts(out io.Writer, posts []substack.Post, format string) error {
	if format == "json" {
		return writeIndentedJSON(out, posts)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "DATE\tTITLE\tID\n")
	for _, p := range posts {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.PubDate, p.Title, p.ID)
	}
	return w.Flush()
}

func writeIndentedJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintf(out, "%s\n", data)
	return err
}
