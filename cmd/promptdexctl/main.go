package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reach-cloud/promptdex"
	openaiEmb "github.com/reach-cloud/promptdex/internal/transport/openai"
	ingestuc "github.com/reach-cloud/promptdex/internal/usecase/ingest"
	"github.com/reach-cloud/promptdex/internal/version"
)

var (
	dbPath        string
	redisAddr     string
	redisPassword string
	dimensions    int
	embedModel    string
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "promptdexctl",
	Short: "CLI for a promptdex prompt store",
	Long: `Manage a promptdex hybrid vector store from the command line:
load seed files, run similarity searches and inspect store state.

The store is opened per invocation. --sqlite points at a database file
(the default), --redis at a search-enabled Redis; with neither the run
is memory-only and nothing survives the process.

Text queries and vectorless seed records need an embedding provider:
set OPENAI_API_KEY (and optionally OPENAI_BASE_URL).`,
}

var loadCmd = &cobra.Command{
	Use:   "load <seed-file>",
	Short: "Load prompts from a seed file into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := ingestuc.ReadFile(args[0])
		if err != nil {
			return err
		}

		docs := make([]promptdex.Document, 0, len(records))
		skipped := 0
		for _, rec := range records {
			if strings.TrimSpace(rec.Content) == "" {
				skipped++
				continue
			}
			meta := make(map[string]string)
			if rec.Title != "" {
				meta["title"] = rec.Title
			}
			if len(rec.Tags) > 0 {
				meta["tags"] = strings.Join(rec.Tags, ",")
			}
			docs = append(docs, promptdex.Document{
				ID:       rec.ID,
				Content:  rec.Content,
				Vector:   rec.Vector,
				Metadata: meta,
			})
		}

		ctx := context.Background()
		client, err := openClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		n, err := client.Upsert(ctx, docs)
		if err != nil {
			return fmt.Errorf("load failed: %w", err)
		}

		fmt.Printf("Loaded %d of %d prompts from %s\n", n, len(records), args[0])
		if skipped > 0 {
			fmt.Printf("Skipped %d prompts without content\n", skipped)
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the store for similar prompts",
	RunE: func(cmd *cobra.Command, args []string) error {
		query, _ := cmd.Flags().GetString("query")
		vectorStr, _ := cmd.Flags().GetString("vector")
		topK, _ := cmd.Flags().GetInt("top-k")

		if query == "" && vectorStr == "" {
			return fmt.Errorf("either --query or --vector is required")
		}

		ctx := context.Background()
		client, err := openClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		var results []promptdex.SearchResult
		if query != "" {
			results, err = client.Search(ctx, query, topK)
		} else {
			var vector []float32
			vector, err = parseVector(vectorStr)
			if err != nil {
				return err
			}
			results, err = client.SearchVector(ctx, vector, topK)
		}
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		outputJSON, _ := cmd.Flags().GetBool("json")
		if outputJSON {
			data, _ := json.MarshalIndent(results, "", "  ")
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("Found %d results:\n", len(results))
		for i, result := range results {
			fmt.Printf("%d. %s (score: %.4f)\n", i+1, result.ID, result.Score)
			if title := result.Metadata["title"]; title != "" {
				fmt.Printf("   Title: %s\n", title)
			}
			if verbose && result.Content != "" {
				fmt.Printf("   Content: %s\n", result.Content)
			}
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		client, err := openClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		stats := client.Stats(ctx)

		outputJSON, _ := cmd.Flags().GetBool("json")
		if outputJSON {
			data, _ := json.MarshalIndent(stats, "", "  ")
			fmt.Println(string(data))
			return nil
		}

		fmt.Println("Store Statistics:")
		fmt.Printf("  Active Backend: %s\n", stats.Backend)
		fmt.Printf("  Primary Active: %t\n", stats.PrimaryActive)
		fmt.Printf("  Documents: %d\n", stats.Documents)
		fmt.Printf("  Query Cache: %d/%d entries (TTL %s)\n",
			stats.Cache.Size, stats.Cache.MaxEntries, stats.Cache.TTL)
		return nil
	},
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the document count of the active backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		client, err := openClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		fmt.Println(client.Count(ctx))
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check store component health",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		client, err := openClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		h := client.Health(ctx)

		outputJSON, _ := cmd.Flags().GetBool("json")
		if outputJSON {
			data, _ := json.MarshalIndent(h, "", "  ")
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("Status: %s\n", h.Status)
		fmt.Printf("Active Backend: %s\n", h.ActiveBackend)
		for name, check := range h.Checks {
			fmt.Printf("  %s: %s\n", name, check)
		}
		if h.Status == "error" {
			os.Exit(1)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("promptdexctl %s (commit %s, built %s)\n",
			version.Version, version.Commit, version.Date)
	},
}

// openClient builds a facade client from the persistent flags. The embedding
// provider comes from the environment so keys stay out of shell history.
func openClient(ctx context.Context) (*promptdex.Client, error) {
	opts := []promptdex.Option{
		promptdex.WithVectorDimensions(dimensions),
	}

	switch {
	case redisAddr != "":
		opts = append(opts, promptdex.WithRedis(redisAddr, redisPassword))
	case dbPath != "":
		opts = append(opts, promptdex.WithSQLite(dbPath))
	}

	if verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		opts = append(opts, promptdex.WithLogger(logger))
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		inner := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     key,
			BaseURL:    os.Getenv("OPENAI_BASE_URL"),
			Model:      embedModel,
			Dimensions: dimensions,
		})
		opts = append(opts, promptdex.WithEmbedder(cliEmbedder{inner}))
	}

	client, err := promptdex.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return client, nil
}

// cliEmbedder adapts the provider client to the facade's embedder types.
type cliEmbedder struct {
	inner *openaiEmb.Embedder
}

func (e cliEmbedder) Embed(ctx context.Context, text string) (promptdex.EmbeddingResult, error) {
	res, err := e.inner.Embed(ctx, text)
	if err != nil {
		return promptdex.EmbeddingResult{}, err
	}
	return promptdex.EmbeddingResult{
		Embedding:    res.Embedding,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

func (e cliEmbedder) BatchEmbed(ctx context.Context, texts []string) (promptdex.BatchEmbeddingResult, error) {
	res, err := e.inner.BatchEmbed(ctx, texts)
	if err != nil {
		return promptdex.BatchEmbeddingResult{}, err
	}
	return promptdex.BatchEmbeddingResult{
		Embeddings:   res.Embeddings,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

func parseVector(str string) ([]float32, error) {
	parts := strings.Split(str, ",")
	vector := make([]float32, 0, len(parts))
	for _, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", part, err)
		}
		vector = append(vector, float32(val))
	}
	return vector, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "sqlite", "d", "promptdex.db", "SQLite database file (empty for memory-only)")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "", "Redis address (takes precedence over --sqlite)")
	rootCmd.PersistentFlags().StringVar(&redisPassword, "redis-password", "", "Redis password")
	rootCmd.PersistentFlags().IntVarP(&dimensions, "dim", "n", 1536, "Vector dimensions")
	rootCmd.PersistentFlags().StringVar(&embedModel, "model", "text-embedding-3-small", "Embedding model for text queries")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	searchCmd.Flags().StringP("query", "q", "", "Query text (requires OPENAI_API_KEY)")
	searchCmd.Flags().String("vector", "", "Query vector (comma-separated)")
	searchCmd.Flags().Int("top-k", 5, "Number of results")
	searchCmd.Flags().Bool("json", false, "Output as JSON")

	statsCmd.Flags().Bool("json", false, "Output as JSON")
	healthCmd.Flags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		loadCmd,
		searchCmd,
		statsCmd,
		countCmd,
		healthCmd,
		versionCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
