// Package main implements the wikirag CLI: ingest a Wikipedia article into a
// vector index and answer questions about it with cited responses.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time.
var version = "dev"

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
	envFile    string
	collection string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := runCLI(ctx, newRootCmd()); err != nil {
		os.Exit(1)
	}
}

// runCLI executes root and prints any error once, in a consistent style.
// Flag and argument errors come back from cobra before any RunE runs, so
// printing happens here rather than in the commands.
func runCLI(ctx context.Context, root *cobra.Command) error {
	cmd, err := root.ExecuteContextC(ctx)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("error: ")+err.Error())
	}
	return err
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "wikirag",
		Short: "Retrieval-augmented answers over a Wikipedia article",
		Long: `wikirag fetches a Wikipedia article, splits it into overlapping chunks,
embeds them, stores them in a vector index and answers questions with
citations pointing back at the retrieved chunks.

Configuration is read from ~/.config/wikirag/config.yaml (or --config) and
WIKIRAG_* environment variables. COHERE_API_KEY and OPENAI_API_KEY are
honoured as fallbacks.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(opts.envFile)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/wikirag/config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.collection, "collection", "", "collection to use; any label, normalized to a valid name (default vectorstore.collection)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config; missing is fine")

	root.AddCommand(
		newIngestCmd(opts),
		newQueryCmd(opts),
		newRunCmd(opts),
		newChunkCmd(opts),
	)

	return root
}

// loadEnvFile loads path into the process environment without overriding
// variables that are already set.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
