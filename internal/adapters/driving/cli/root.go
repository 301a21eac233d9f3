// Package cli implements the cobra command surface for parley.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/parley-cli/internal/adapters/driven/ai"
	"github.com/custodia-labs/parley-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/parley-cli/internal/adapters/driven/index/memindex"
	"github.com/custodia-labs/parley-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driving"
	"github.com/custodia-labs/parley-cli/internal/core/services"
	"github.com/custodia-labs/parley-cli/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

var verbose bool

// Package-level services, wired lazily by the commands that need them.
// Tests inject mocks here directly.
var (
	configStore   driven.ConfigStore
	turnStore     driven.TurnStore
	askService    driving.AskService
	sessionSvc    driving.SessionService
	ingestService driving.IngestService
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Ask questions about your documents",
	Long: `Parley answers natural-language questions over a corpus of ingested
documents. Answers cite the passages they were drawn from, and
follow-up questions see the conversation so far.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ensureConfig wires the config store if it is not already set.
func ensureConfig() error {
	if configStore != nil {
		return nil
	}
	store, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	configStore = store
	return nil
}

// ensurePipeline wires the full question-answering pipeline: storage,
// providers, index, and core services. The vector index is rebuilt
// from persisted embeddings for the configured model.
func ensurePipeline(ctx context.Context) error {
	if ingestService != nil {
		return nil
	}
	if err := ensureConfig(); err != nil {
		return err
	}

	settings := loadSettings(configStore)

	store, err := sqlite.NewStore(configStore.GetString("storage.data_dir"))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	docStore := store.DocumentStore()
	turnStore = store.TurnStore()
	embedStore := store.EmbeddingStore()

	prompts, err := file.NewPromptStore("")
	if err != nil {
		return fmt.Errorf("open prompts: %w", err)
	}

	embedder, err := ai.CreateAndValidateEmbeddingService(&settings.Embedding)
	if err != nil {
		return err
	}
	if embedder == nil {
		return errors.New("no embedding provider configured; run 'parley config set embedding.provider ollama' (or openai)")
	}

	// Generation is optional for ingest-only invocations; the ask
	// command checks for it separately.
	gen, err := ai.CreateAndValidateGenerationService(&settings.Generation)
	if err != nil {
		return err
	}

	index, err := memindex.New(embedder.Dimensions())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	// Rebuild the index from persisted embeddings.
	entries, err := embedStore.LoadEmbeddings(ctx, embedder.ModelName())
	if err != nil {
		return fmt.Errorf("load embeddings: %w", err)
	}
	if len(entries) > 0 {
		if err := index.Upsert(ctx, entries); err != nil {
			return fmt.Errorf("warm index: %w", err)
		}
		logger.Debug("Restored %d index entries for model %s", len(entries), embedder.ModelName())
	}

	chunker := services.NewChunker(services.ChunkerConfig{
		MaxTokens:     settings.Chunker.MaxTokens,
		OverlapTokens: settings.Chunker.OverlapTokens,
		Splitter:      services.Splitter(settings.Chunker.Splitter),
	})

	ingestService = services.NewIngestService(
		chunker, embedder, index, docStore, turnStore, embedStore,
		services.IngestConfig{},
	)

	if gen != nil {
		retriever := services.NewRetriever(embedder, index, docStore, services.RetrieverConfig{
			MinScore:  settings.Retriever.MinScore,
			Diversify: settings.Retriever.Diversify,
		})
		synthesizer := services.NewSynthesizer(gen, docStore, prompts, services.SynthesizerConfig{
			MaxTokens:   settings.Generation.MaxTokens,
			Temperature: settings.Generation.Temperature,
		})
		memory := services.NewMemory(turnStore, gen, prompts, services.MemoryConfig{
			MaxTurns:  settings.Memory.MaxTurns,
			MaxTokens: settings.Memory.MaxTokens,
			Window:    settings.Memory.Window,
		})
		svc := services.NewAskService(retriever, synthesizer, memory, turnStore, settings.Retriever.TopK)
		askService = svc
		sessionSvc = svc
	}

	return nil
}

// loadSettings reads application settings from the config store,
// falling back to defaults for unset keys.
func loadSettings(cfg driven.ConfigStore) domain.AppSettings {
	settings := domain.DefaultAppSettings()

	settings.Embedding.Provider = domain.AIProvider(cfg.GetString("embedding.provider"))
	settings.Embedding.Model = cfg.GetString("embedding.model")
	settings.Embedding.BaseURL = cfg.GetString("embedding.base_url")
	settings.Embedding.APIKey = cfg.GetString("embedding.api_key")
	if settings.Embedding.Model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[settings.Embedding.Provider]
	}

	settings.Generation.Provider = domain.AIProvider(cfg.GetString("generation.provider"))
	settings.Generation.Model = cfg.GetString("generation.model")
	settings.Generation.BaseURL = cfg.GetString("generation.base_url")
	settings.Generation.APIKey = cfg.GetString("generation.api_key")
	if settings.Generation.Model == "" {
		settings.Generation.Model = domain.DefaultGenerationModels()[settings.Generation.Provider]
	}
	if v := cfg.GetInt("generation.max_tokens"); v > 0 {
		settings.Generation.MaxTokens = v
	}
	if v := cfg.GetFloat("generation.temperature"); v > 0 {
		settings.Generation.Temperature = v
	}

	if v := cfg.GetInt("chunker.max_tokens"); v > 0 {
		settings.Chunker.MaxTokens = v
	}
	if v := cfg.GetInt("chunker.overlap_tokens"); v > 0 {
		settings.Chunker.OverlapTokens = v
	}
	if v := cfg.GetString("chunker.splitter"); v != "" {
		settings.Chunker.Splitter = v
	}

	if v := cfg.GetInt("retriever.top_k"); v > 0 {
		settings.Retriever.TopK = v
	}
	if v := cfg.GetFloat("retriever.min_score"); v > 0 {
		settings.Retriever.MinScore = v
	}
	if _, ok := cfg.Get("retriever.diversify"); ok {
		settings.Retriever.Diversify = cfg.GetBool("retriever.diversify")
	}

	if v := cfg.GetInt("memory.max_turns"); v > 0 {
		settings.Memory.MaxTurns = v
	}
	if v := cfg.GetInt("memory.max_tokens"); v > 0 {
		settings.Memory.MaxTokens = v
	}
	if v := cfg.GetInt("memory.window"); v > 0 {
		settings.Memory.Window = v
	}

	return settings
}
