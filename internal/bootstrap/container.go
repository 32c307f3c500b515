package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"rag-chat-be/internal/config"
	"rag-chat-be/internal/constant"
	"rag-chat-be/internal/controller"
	"rag-chat-be/internal/handler"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/repository/contract"
	"rag-chat-be/internal/repository/implementation"
	"rag-chat-be/internal/repository/memory"
	"rag-chat-be/internal/service"
	"rag-chat-be/pkg/database"
	"rag-chat-be/pkg/embedding"
	"rag-chat-be/pkg/events"
	"rag-chat-be/pkg/llm/factory"
	"rag-chat-be/pkg/rag/ingest"
	"rag-chat-be/pkg/rag/message"
	"rag-chat-be/pkg/rag/response"
	"rag-chat-be/pkg/rag/search"
	"rag-chat-be/pkg/rag/session"

	pktNats "rag-chat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"
)

const queryCacheTTL = 10 * time.Minute

type Container struct {
	Logger logger.ILogger

	// Controllers
	SessionController controller.ISessionController
	ChatController    controller.IChatController
	StreamHandler     *handler.StreamHandler

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	Sweeper         *session.Sweeper

	// Used directly by the admin CLI
	IngestionService service.IIngestionService
	Pipeline         *ingest.Pipeline
	SessionManager   *session.Manager
	Store            contract.SessionStore

	db      *gorm.DB
	natsPub *pktNats.Publisher
	pubSub  *gochannel.GoChannel
}

func NewContainer(cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	rdb := implementation.NewRedisClient(cfg.Redis.URL)
	store := implementation.NewRedisSessionStore(rdb)
	if err := store.Ping(context.Background()); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// 2. Vector Index
	var db *gorm.DB
	var index contract.VectorIndex
	switch cfg.Rag.VectorStore {
	case "memory":
		index = memory.NewVectorIndex()
		log.Printf("[INFO] Using Vector Store: MEMORY (data is lost on restart)")
	case "pgvector", "":
		if cfg.Database.Connection == "" {
			return nil, fmt.Errorf("pgvector store requires DB_CONNECTION_STRING")
		}
		var err error
		db, err = database.NewGormDBFromDSN(cfg.Database.Connection, cfg.App.Environment != "production")
		if err != nil {
			return nil, fmt.Errorf("connect to vector database: %w", err)
		}
		index = implementation.NewPgVectorIndex(db)
		log.Printf("[INFO] Using Vector Store: PGVECTOR")
	default:
		return nil, fmt.Errorf("unsupported vector store: %s", cfg.Rag.VectorStore)
	}

	indexSpec := contract.IndexSpec{
		Name:      cfg.Rag.IndexName,
		Dimension: cfg.Ai.EmbeddingDimensions,
		Metric:    contract.Metric(constant.DefaultVectorMetric),
	}

	// 3. Model Providers
	embeddingProvider, err := embedding.NewEmbeddingProvider(
		cfg.Ai.EmbeddingProvider,
		cfg.Keys.GoogleGemini,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.OllamaModel,
	)
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] Using Embedding Provider: %s", cfg.Ai.EmbeddingProvider)

	llmProvider, err := factory.NewLLMProvider(factory.ProviderConfig{
		Provider:       cfg.Ai.LLMProvider,
		Model:          cfg.Ai.LLMModel,
		OllamaBaseURL:  cfg.Ai.OllamaBaseURL,
		GeminiKey:      cfg.Keys.GoogleGemini,
		HuggingFaceKey: cfg.Keys.HuggingFace,
		HuggingFaceURL: cfg.Ai.HuggingFaceBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize LLM provider: %w", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Event Bus
	var publisher events.Publisher = events.NopPublisher{}
	var natsPub *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			publisher = natsPub
		}
	}

	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 5. RAG Components
	searchConfig, err := search.ConfigFor(cfg.Rag.SearchType)
	if err != nil {
		return nil, err
	}
	policy, err := response.ParsePartialPolicy(cfg.Rag.StreamPartialPolicy)
	if err != nil {
		return nil, err
	}

	ledger := message.NewLedger(store, cfg.Redis.SessionTTL, sysLogger)
	manager := session.NewManager(store, ledger, cfg.Redis.SessionTTL, publisher, sysLogger)
	orchestrator := search.NewOrchestrator(
		embeddingProvider,
		index,
		indexSpec.Name,
		searchConfig,
		memory.NewEmbeddingCache(queryCacheTTL),
		sysLogger,
	)
	generator := response.NewGenerator(ledger, orchestrator, llmProvider, policy, sysLogger)
	loader := ingest.NewExtensionLoader()
	pipeline := ingest.NewPipeline(loader, embeddingProvider, index, indexSpec, sysLogger)

	// 6. Services
	publisherService := service.NewPublisherService(pubSub, constant.SessionSweepTopic)
	consumerService := service.NewConsumerService(pubSub, constant.SessionSweepTopic, manager, sysLogger)
	sweeper := session.NewSweeper(store, publisherService, cfg.Redis.SweepInterval, sysLogger)

	sessionService := service.NewSessionService(manager, ledger)
	chatService := service.NewChatService(manager, generator)
	ingestionService := service.NewIngestionService(manager, loader, pipeline, cfg.App.UploadDir, publisher, sysLogger)

	// 7. Controllers
	return &Container{
		Logger:            sysLogger,
		SessionController: controller.NewSessionController(sessionService),
		ChatController:    controller.NewChatController(sessionService, chatService, ingestionService, sysLogger),
		StreamHandler:     handler.NewStreamHandler(sessionService, chatService, sysLogger),
		ConsumerService:   consumerService,
		Sweeper:           sweeper,
		IngestionService:  ingestionService,
		Pipeline:          pipeline,
		SessionManager:    manager,
		Store:             store,
		db:                db,
		natsPub:           natsPub,
		pubSub:            pubSub,
	}, nil
}

// Close releases every connection the container opened.
func (c *Container) Close() {
	if err := c.pubSub.Close(); err != nil {
		log.Printf("[WARN] Failed to close event bus: %v", err)
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.db != nil {
		if err := database.Close(c.db); err != nil {
			log.Printf("[WARN] Failed to close database: %v", err)
		}
	}
	if err := c.Store.Close(); err != nil {
		log.Printf("[WARN] Failed to close Redis: %v", err)
	}
	_ = c.Logger.Sync()
}
