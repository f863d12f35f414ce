// Command indexer loads insurance document fragments from a JSON file,
// embeds them and upserts them into the vector store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	embeddingadapter "github.com/zatekoja/insurance-qa/internal/adapters/providers/embedding"
	"github.com/zatekoja/insurance-qa/internal/adapters/search"
	"github.com/zatekoja/insurance-qa/internal/domain/entities"
	"github.com/zatekoja/insurance-qa/internal/domain/providers"
	tsclient "github.com/zatekoja/insurance-qa/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/insurance-qa/internal/infrastructure/observability"
	"github.com/zatekoja/insurance-qa/pkg/config"
)

func main() {
	inputPath := flag.String("input", "fragments.json", "path to a JSON array of fragments")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger("insurance-qa-indexer", cfg.Server.Env)

	data, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *inputPath).Msg("failed to read input file")
	}

	var fragments []entities.Fragment
	if err := json.Unmarshal(data, &fragments); err != nil {
		log.Fatal().Err(err).Msg("failed to parse fragments")
	}

	typesenseClient, err := tsclient.NewClient(&cfg.Typesense)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Typesense client")
	}
	store := search.NewTypesenseAdapter(typesenseClient, cfg.Typesense.Collection, cfg.OpenAI.EmbeddingDimensions)

	ctx := context.Background()
	if err := store.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure fragment collection")
	}

	var embedder providers.EmbeddingProvider
	if cfg.OpenAI.EmbeddingEnabled && cfg.OpenAI.APIKey != "" {
		embedder, err = embeddingadapter.NewOpenAIAdapter(&cfg.OpenAI)
		if err != nil {
			log.Fatal().Err(err).Msg("embedding provider misconfigured")
		}
	} else {
		log.Warn().Msg("embedding provider disabled, indexing with hash embeddings")
		embedder = embeddingadapter.NewHashAdapter(cfg.OpenAI.EmbeddingDimensions)
	}

	indexed := 0
	for i := range fragments {
		fragment := &fragments[i]
		if fragment.ID == "" {
			fragment.ID = uuid.NewString()
		}
		if len(fragment.Embedding) == 0 {
			vector, err := embedder.Embed(ctx, fragment.Text)
			if err != nil {
				log.Error().Err(err).Str("fragment_id", fragment.ID).Msg("embedding failed, skipping")
				continue
			}
			fragment.Embedding = vector
		}
		if err := store.Index(ctx, fragment); err != nil {
			log.Error().Err(err).Str("fragment_id", fragment.ID).Msg("index failed, skipping")
			continue
		}
		indexed++
	}

	log.Info().Int("indexed", indexed).Int("total", len(fragments)).Msg("indexing complete")
}
