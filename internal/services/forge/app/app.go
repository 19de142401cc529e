// Package app wires the forge service: storage, the generation client, the
// session manager, and the MCP server that exposes them.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ashgrove/canonforge/internal/canon"
	"github.com/ashgrove/canonforge/internal/forge/pipeline"
	"github.com/ashgrove/canonforge/internal/llm"
	"github.com/ashgrove/canonforge/internal/platform/config"
	"github.com/ashgrove/canonforge/internal/services/forge/domain"
	"github.com/ashgrove/canonforge/internal/services/forge/session"
	"github.com/ashgrove/canonforge/internal/storage/sqlite"
	"github.com/ashgrove/canonforge/internal/telemetry"
)

const (
	serverName    = "canonforge"
	serverVersion = "0.1.0"
)

// Config holds the environment configuration for the forge service.
type Config struct {
	DBPath string `env:"CANONFORGE_DB_PATH" envDefault:"canonforge.db"`

	OpenAIAPIKey       string `env:"CANONFORGE_OPENAI_API_KEY"`
	OpenAIModel        string `env:"CANONFORGE_OPENAI_MODEL" envDefault:"gpt-4.1-mini"`
	OpenAIResponsesURL string `env:"CANONFORGE_OPENAI_RESPONSES_URL" envDefault:"https://api.openai.com/v1/responses"`

	MaxFacts     int `env:"CANONFORGE_MAX_FACTS" envDefault:"80"`
	MaxFactChars int `env:"CANONFORGE_MAX_FACT_CHARS" envDefault:"0"`

	ChunkWindow   int `env:"CANONFORGE_CHUNK_WINDOW" envDefault:"5"`
	ParseRetryCap int `env:"CANONFORGE_PARSE_RETRY_CAP" envDefault:"3"`

	ScaleSimple   int `env:"CANONFORGE_SCALE_SIMPLE" envDefault:"5"`
	ScaleModerate int `env:"CANONFORGE_SCALE_MODERATE" envDefault:"15"`
	ScaleComplex  int `env:"CANONFORGE_SCALE_COMPLEX" envDefault:"30"`
}

// LoadConfig reads the service configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// App is the assembled forge service.
type App struct {
	store  *sqlite.Store
	server *mcp.Server
}

// New builds the service from configuration. The caller owns Close.
func New(cfg Config) (*App, error) {
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", cfg.DBPath, err)
	}

	client := llm.NewOpenAIClient(llm.OpenAIConfig{
		ResponsesURL: cfg.OpenAIResponsesURL,
		APIKey:       cfg.OpenAIAPIKey,
		Model:        cfg.OpenAIModel,
	})
	retriever := canon.NewRetriever(store, canon.Budget{
		MaxFacts: cfg.MaxFacts,
		MaxChars: cfg.MaxFactChars,
	})
	emitter := telemetry.NewEmitter(store)

	executor, err := pipeline.NewExecutor(client, retriever, emitter, pipeline.Config{
		ChunkWindow:   cfg.ChunkWindow,
		ParseRetryCap: cfg.ParseRetryCap,
		Scales: pipeline.ScaleDefaults{
			"simple":   cfg.ScaleSimple,
			"moderate": cfg.ScaleModerate,
			"complex":  cfg.ScaleComplex,
		},
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	executor.SetProgressFunc(func(progress pipeline.Progress) {
		log.Printf("session %s stage %s %d/%d", progress.SessionID, progress.Stage, progress.Current, progress.Total)
	})

	manager, err := session.NewManager(executor, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	registerTools(server, manager, store)

	return &App{store: store, server: server}, nil
}

func registerTools(server *mcp.Server, manager *session.Manager, store *sqlite.Store) {
	mcp.AddTool(server, domain.GenerationStartTool(), domain.GenerationStartHandler(manager))
	mcp.AddTool(server, domain.GenerationStatusTool(), domain.GenerationStatusHandler(manager))
	mcp.AddTool(server, domain.GenerationResumeTool(), domain.GenerationResumeHandler(manager))
	mcp.AddTool(server, domain.NarrowingGetTool(), domain.NarrowingGetHandler(manager))
	mcp.AddTool(server, domain.NarrowingResolveTool(), domain.NarrowingResolveHandler(manager))
	mcp.AddTool(server, domain.ReviewGetTool(), domain.ReviewGetHandler(manager))
	mcp.AddTool(server, domain.ProposalSelectTool(), domain.ProposalSelectHandler(manager))
	mcp.AddTool(server, domain.ConflictResolveTool(), domain.ConflictResolveHandler(manager))
	mcp.AddTool(server, domain.IssueResolveTool(), domain.IssueResolveHandler(manager))
	mcp.AddTool(server, domain.ReviewApproveTool(), domain.ReviewApproveHandler(manager))
	mcp.AddTool(server, domain.ArtifactGetTool(), domain.ArtifactGetHandler(manager))

	mcp.AddTool(server, domain.EntityPutTool(), domain.EntityPutHandler(store))
	mcp.AddTool(server, domain.EntityGetTool(), domain.EntityGetHandler(store))
	mcp.AddTool(server, domain.EntityListTool(), domain.EntityListHandler(store))
	mcp.AddTool(server, domain.EntityDeleteTool(), domain.EntityDeleteHandler(store))
	mcp.AddTool(server, domain.FactAddTool(), domain.FactAddHandler(store))
	mcp.AddTool(server, domain.FactDeleteTool(), domain.FactDeleteHandler(store))
	mcp.AddTool(server, domain.CanonSearchTool(), domain.CanonSearchHandler(store))
	mcp.AddTool(server, domain.CollectionCreateTool(), domain.CollectionCreateHandler(store))
	mcp.AddTool(server, domain.CollectionUpdateTool(), domain.CollectionUpdateHandler(store))
	mcp.AddTool(server, domain.CollectionListTool(), domain.CollectionListHandler(store))
	mcp.AddTool(server, domain.CollectionDeleteTool(), domain.CollectionDeleteHandler(store))
}

// Serve runs the MCP server on stdio until the context ends.
func (a *App) Serve(ctx context.Context) error {
	if a == nil || a.server == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if err := a.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// Close releases the store.
func (a *App) Close() error {
	if a == nil || a.store == nil {
		return nil
	}
	return a.store.Close()
}
