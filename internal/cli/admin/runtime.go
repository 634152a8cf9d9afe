package admin

import (
	"context"
	"fmt"
	"io"

	"github.com/cloo-solutions/amm/internal/config"
	"github.com/cloo-solutions/amm/internal/database"
	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/cloo-solutions/amm/internal/extract"
	"github.com/cloo-solutions/amm/internal/gemini"
	"github.com/cloo-solutions/amm/internal/logging"
	"github.com/cloo-solutions/amm/internal/memory"
	"github.com/cloo-solutions/amm/internal/openai"
	"github.com/cloo-solutions/amm/internal/repository"
	"github.com/cloo-solutions/amm/internal/service"
	"github.com/cloo-solutions/amm/internal/sqlite"
	"github.com/cloo-solutions/amm/internal/storage"
	"github.com/cloo-solutions/amm/internal/vectorstore"
	goopenai "github.com/sashabaranov/go-openai"
)

// RuntimeOptions adjusts how a Runtime is assembled.
type RuntimeOptions struct {
	// Migrate applies database migrations before the stores are opened.
	Migrate bool
	// MigrationsSource overrides database.DefaultMigrationsSource.
	MigrationsSource string
}

// Runtime is a design loaded with every backend its configuration asks for.
type Runtime struct {
	Config    *config.Config
	Design    *domain.Design
	Engine    *service.Engine
	Ingestion *service.IngestionService

	closers []io.Closer
	cleanup []func()
}

// Close releases stores and provider clients in reverse order.
func (r *Runtime) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	for i := len(r.cleanup) - 1; i >= 0; i-- {
		r.cleanup[i]()
	}
	return first
}

type providers struct {
	embedder  service.Embedder
	generator service.Generator
	closer    io.Closer
}

func newProviders(ctx context.Context, cfg *config.Config) (providers, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		if !cfg.HasOpenAI() {
			logging.From(ctx).Warn("no OpenAI API key configured, embedding and generation disabled")
			return providers{}, nil
		}
		oc := openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			EmbeddingModel:      goopenai.EmbeddingModel(cfg.OpenAIEmbedModel),
			EmbeddingDimensions: cfg.EmbeddingDimensions,
			ChatModel:           cfg.OpenAIChatModel,
		}
		if oc.EmbeddingDimensions == 0 {
			oc.EmbeddingDimensions = -1
		}
		return providers{
			embedder:  openai.NewClientWithConfig(oc),
			generator: openai.NewChatGenerator(oc),
		}, nil
	default:
		if !cfg.HasGemini() {
			logging.From(ctx).Warn("no Gemini API key configured, embedding and generation disabled")
			return providers{}, nil
		}
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:         cfg.GeminiAPIKey,
			EmbeddingModel: cfg.GeminiEmbedModel,
		})
		if err != nil {
			return providers{}, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return providers{embedder: client, generator: client, closer: client}, nil
	}
}

// NewIngestion builds the ingestion pipeline alone, for commands that never
// embed or store anything.
func NewIngestion(ctx context.Context, cfg *config.Config) (*service.IngestionService, error) {
	var fetcher service.ObjectFetcher
	if cfg.HasS3() {
		client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    cfg.S3PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		fetcher = client
	}

	extractor := extract.New(ctx, extract.DefaultRegistry(cfg.OCRLanguage))
	logging.From(ctx).Debug("text extraction ready", "capabilities", extractor.Capabilities())

	return service.NewIngestionService(extractor, fetcher, service.IngestionConfig{
		Chunking: cfg.Chunking(),
		OCR:      cfg.OCR,
		BaseDir:  config.DesignDir(cfg.DesignPath),
	})
}

// NewRuntime loads the design at cfg.DesignPath and indexes its knowledge.
// With a database URL knowledge and interactions live in Postgres; otherwise
// knowledge is held in memory and interactions go to a per-design SQLite file.
func NewRuntime(ctx context.Context, cfg *config.Config, opts RuntimeOptions) (*Runtime, error) {
	design, err := config.LoadDesign(cfg.DesignPath)
	if err != nil {
		return nil, err
	}
	ctx = logging.With(ctx, logging.From(ctx).With("design_id", design.ID))

	rt := &Runtime{Config: cfg, Design: design}
	ok := false
	defer func() {
		if !ok {
			_ = rt.Close()
		}
	}()

	var (
		opener vectorstore.Opener
		log    service.InteractionLog
	)
	if cfg.HasDatabase() {
		if opts.Migrate {
			source := opts.MigrationsSource
			if source == "" {
				source = database.DefaultMigrationsSource
			}
			if err := database.Migrate(ctx, cfg.DatabaseURL, source); err != nil {
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: cfg.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		rt.cleanup = append(rt.cleanup, pool.Close)
		logging.From(ctx).Info("connected to database")

		opener = repository.NewVectorOpener(pool)
		log = repository.NewInteractionRepository(pool, design.ID)
	} else {
		opener = memory.NewOpener()
		if design.AdaptiveMemory.Enabled {
			path := sqlite.Path(cfg.DataDir, design)
			sl, err := sqlite.Open(ctx, path)
			if err != nil {
				return nil, err
			}
			rt.closers = append(rt.closers, sl)
			log = sl
			logging.From(ctx).Info("interaction log opened", "path", path)
		}
	}

	p, err := newProviders(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if p.closer != nil {
		rt.closers = append(rt.closers, p.closer)
	}

	ingestion, err := NewIngestion(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt.Ingestion = ingestion

	engine, err := service.NewEngine(ctx, design, service.EngineDeps{
		Ingestion:       ingestion,
		Indexer:         service.NewKnowledgeIndexer(p.embedder, opener, cfg.EmbedTimeout),
		Embedder:        p.embedder,
		Generator:       p.generator,
		Log:             log,
		EmbedTimeout:    cfg.EmbedTimeout,
		SearchTimeout:   cfg.SearchTimeout,
		GenerateTimeout: cfg.GenerateTimeout,
	})
	if err != nil {
		return nil, err
	}
	rt.Engine = engine

	ok = true
	return rt, nil
}
