package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-rag/internal/chromemdb"
	"pdf-rag/internal/config"
	"pdf-rag/internal/db"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/pipeline"
	"pdf-rag/internal/rag"
	"pdf-rag/internal/splitter"
	"pdf-rag/internal/store"
)

const configFilePath = "./configs/config.yaml"

var (
	flagConfig         string
	flagOutput         string
	flagChunkSize      int
	flagChunkOverlap   int
	flagEmbeddingModel string
	flagTags           []string
	flagFilters        []string
	flagTopK           int
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	// API keys may live in a .env next to the binary
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "pdf-rag",
		Short:         "Index PDF documents into a vector store and answer questions against them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", configFilePath, "Path to the yaml config file")
	root.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "Directory of the persisted vector store")
	root.PersistentFlags().StringVar(&flagEmbeddingModel, "embedding-model", "", "Embedding model identifier")

	indexCmd := &cobra.Command{
		Use:   "index <pdf_directory>",
		Short: "Index every PDF in a directory into the vector store",
		Args:  cobra.ExactArgs(1),
		RunE:  runIndex,
	}
	indexCmd.Flags().IntVar(&flagChunkSize, "chunk-size", 0, "Max characters per fragment")
	indexCmd.Flags().IntVar(&flagChunkOverlap, "chunk-overlap", -1, "Characters shared by consecutive fragments")
	indexCmd.Flags().StringArrayVar(&flagTags, "tag", nil, "Document-level tag applied to the whole run, key=value (repeatable)")

	queryCmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Answer a question from the indexed collection",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuery,
	}
	queryCmd.Flags().IntVarP(&flagTopK, "top-k", "k", 0, "Number of fragments to retrieve")
	queryCmd.Flags().StringArrayVar(&flagFilters, "filter", nil, "Metadata filter, key=value (repeatable)")

	root.AddCommand(indexCmd, queryCmd)

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if flagOutput != "" {
		cfg.Store.Path = flagOutput
	}
	if flagEmbeddingModel != "" {
		cfg.EmbedLLM.Model = flagEmbeddingModel
	}
	if flagChunkSize > 0 {
		cfg.RAG.ChunkSize = flagChunkSize
	}
	if flagChunkOverlap >= 0 {
		cfg.RAG.ChunkOverlap = flagChunkOverlap
	}
	if flagTopK > 0 {
		cfg.RAG.TopK = flagTopK
	}
	if cfg.EmbedLLM.Key == "" {
		cfg.EmbedLLM.Key = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.ChatLLM.Key == "" {
		cfg.ChatLLM.Key = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore builds the configured vector store backend. The chromem store
// is pinned to the embedding model it was created with and refuses any
// other configuration. Indexing creates the collection when absent; the
// query path only opens an existing one, so a wrong path surfaces as
// models.ErrNotFound instead of an empty collection.
func openStore(ctx context.Context, cfg *config.Config, create bool) (store.VectorStore, error) {
	switch cfg.Store.Backend {
	case "postgres":
		dbClient, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		dbInstance := db.NewDB(dbClient, cfg.Database.Debug)
		if err := db.InitDB(ctx, dbInstance, cfg.Database.VectorSize); err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return db.NewPGStore(dbInstance, cfg.Database.VectorSize), nil
	default:
		if !create {
			return chromemdb.Open(cfg.Store.Path, cfg.Store.Collection, cfg.EmbedLLM.Model)
		}
		if err := helper.CreateFolder(cfg.Store.Path); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		return chromemdb.OpenOrCreate(cfg.Store.Path, cfg.Store.Collection, cfg.EmbedLLM.Model)
	}
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tags, err := parseKeyValues(flagTags)
	if err != nil {
		return err
	}
	for k, v := range cfg.RAG.Tags {
		if _, ok := tags[k]; !ok {
			tags[k] = v
		}
	}

	dir := args[0]
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("directory %s does not exist", dir)
	}

	split, err := splitter.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return err
	}
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg, true)
	if err != nil {
		return err
	}

	summary, err := pipeline.New(st, embedder, split, cfg, tags).IndexDirectory(ctx, dir)
	if err != nil {
		return err
	}
	helper.PrettyPrint(summary)
	if summary.Processed == 0 {
		return fmt.Errorf("no documents were indexed (%d skipped)", summary.Skipped)
	}
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	filter, err := parseKeyValues(flagFilters)
	if err != nil {
		return err
	}
	if len(filter) == 0 {
		filter = nil
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg, false)
	if err != nil {
		return err
	}
	llm, err := llmservice.NewChatModel(&cfg.ChatLLM)
	if err != nil {
		return err
	}

	response, err := rag.NewRAG(st, embedder, llm, cfg).Query(ctx, args[0], filter)
	if err != nil {
		return err
	}

	fmt.Printf("Query:\n%s\n\n", response.Query)
	fmt.Printf("Source:\n%s\n\n", response.Source)
	fmt.Printf("Assistant:\n%s\n", response.Content)
	return nil
}

func parseKeyValues(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid key=value pair: %q", pair)
		}
		out[key] = value
	}
	return out, nil
}
