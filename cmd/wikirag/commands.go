package main

import (
	"fmt"
	"os"

	"github.com/fyrsmithlabs/wikirag/internal/chunker"
	"github.com/fyrsmithlabs/wikirag/internal/config"
	"github.com/fyrsmithlabs/wikirag/internal/logging"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch an article and rebuild the index from it",
		Long: `Fetch an article, chunk and embed it, and replace the configured
collection with the result.

Examples:
  # Index the default article
  wikirag ingest

  # Index another article into a local Qdrant
  WIKIRAG_VECTORSTORE_PROVIDER=qdrant wikirag ingest --title "Arrival (film)"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if title == "" {
				title = cfg.Source.Title
			}

			ctx := logging.WithRunID(cmd.Context(), uuid.NewString())
			a, err := newApp(ctx, cfg, appNeeds{ingest: true})
			if err != nil {
				return err
			}
			defer a.close(ctx)

			report, err := a.pipeline.Ingest(ctx, title)
			a.pushMetrics(ctx, logging.RunIDFromContext(ctx))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderReport(report))
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "article title (default source.title)")
	return cmd
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Answer a question against the existing index",
		Long: `Answer a question using the chunks already stored in the configured
collection. Run "wikirag ingest" first.

Examples:
  wikirag query "Who directed the film?"
  wikirag query --top-k 5 "Who composed the score?"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			applyQueryFlags(cfg, args, topK)

			ctx := logging.WithRunID(cmd.Context(), uuid.NewString())
			a, err := newApp(ctx, cfg, appNeeds{generate: true})
			if err != nil {
				return err
			}
			defer a.close(ctx)

			ans, err := a.query.Answer(ctx, cfg.Query.Text)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderAnswer(ans))
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 0, "chunks to retrieve (default query.top_k)")
	return cmd
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		title string
		query string
		topK  int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest an article and answer a question about it",
		Long: `Run the whole pipeline: fetch, chunk, embed, index, retrieve and answer.
Without flags this indexes "Dune Part Two" and asks who wrote, directed
and produced it.

Examples:
  wikirag run
  wikirag run --title "Blade Runner 2049" --query "Who composed the score?"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if title == "" {
				title = cfg.Source.Title
			}
			var qargs []string
			if query != "" {
				qargs = []string{query}
			}
			applyQueryFlags(cfg, qargs, topK)

			ctx := logging.WithRunID(cmd.Context(), uuid.NewString())
			a, err := newApp(ctx, cfg, appNeeds{ingest: true, generate: true})
			if err != nil {
				return err
			}
			defer a.close(ctx)

			report, ans, err := a.pipeline.Run(ctx, title, cfg.Query.Text)
			a.pushMetrics(ctx, logging.RunIDFromContext(ctx))
			if report != nil {
				fmt.Fprint(cmd.OutOrStdout(), renderReport(report))
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderAnswer(ans))
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "article title (default source.title)")
	cmd.Flags().StringVar(&query, "query", "", "question to ask (default query.text)")
	cmd.Flags().IntVar(&topK, "top-k", 0, "chunks to retrieve (default query.top_k)")
	return cmd
}

func newChunkCmd(opts *rootOptions) *cobra.Command {
	var (
		file    string
		size    int
		overlap int
	)

	cmd := &cobra.Command{
		Use:   "chunk",
		Short: "Chunk a local text file and print statistics",
		Long: `Split a local text file with the configured chunker and print chunk
statistics. Nothing is embedded or stored; no network access is needed.

Examples:
  wikirag chunk --file article.txt
  wikirag chunk --file article.txt --size 256 --overlap 32`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			cc := chunker.Config{Size: cfg.Chunking.Size, Overlap: cfg.Chunking.Overlap}
			if cmd.Flags().Changed("size") {
				cc.Size = size
			}
			if cmd.Flags().Changed("overlap") {
				cc.Overlap = overlap
			}
			ch, err := chunker.New(cc)
			if err != nil {
				return err
			}

			text, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read file %s: %w", file, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderChunkStats(file, cc, chunker.Summarize(ch.Split(string(text)))))
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "text file to chunk")
	cmd.Flags().IntVar(&size, "size", config.DefaultChunkSize, "chunk size in runes (default chunking.size)")
	cmd.Flags().IntVar(&overlap, "overlap", config.DefaultChunkOverlap, "overlap in runes (default chunking.overlap)")
	return cmd
}

// applyQueryFlags overrides the configured question and top k.
func applyQueryFlags(cfg *config.Config, args []string, topK int) {
	if len(args) > 0 && args[0] != "" {
		cfg.Query.Text = args[0]
	}
	if topK > 0 {
		cfg.Query.TopK = topK
	}
}
