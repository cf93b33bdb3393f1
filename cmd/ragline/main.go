// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command ragline runs the retrieval-augmented response engine server.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/lanternworks/ragline/pkg/logging"
	"github.com/lanternworks/ragline/services/embedding"
	"github.com/lanternworks/ragline/services/engine/evaluation"
	"github.com/lanternworks/ragline/services/engine/handlers"
	"github.com/lanternworks/ragline/services/engine/intent"
	"github.com/lanternworks/ragline/services/engine/observability"
	"github.com/lanternworks/ragline/services/engine/orchestrator"
	"github.com/lanternworks/ragline/services/engine/prompt"
	"github.com/lanternworks/ragline/services/engine/retrieval"
	"github.com/lanternworks/ragline/services/engine/routes"
	"github.com/lanternworks/ragline/services/engine/tenant"
	"github.com/lanternworks/ragline/services/llm"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "localhost:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("ragline-engine")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("Failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// newWeaviateClient builds the vector search client. A bad or missing
// URL still yields a client pointed at the default local address; the
// retrieval tool soft-fails on unreachable backends, so startup never
// blocks on Weaviate.
func newWeaviateClient() *weaviate.Client {
	conf := weaviate.Config{Host: "localhost:8080", Scheme: "http"}

	raw := strings.Trim(os.Getenv("WEAVIATE_SERVICE_URL"), "\"' ")
	if raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			slog.Warn("WEAVIATE_SERVICE_URL is invalid, using default", "url", raw, "error", err)
		} else {
			conf.Host = parsed.Host
			conf.Scheme = parsed.Scheme
		}
	}

	client, err := weaviate.NewClient(conf)
	if err != nil {
		log.Fatalf("Failed to create Weaviate client: %v", err)
	}
	slog.Info("Weaviate client configured", "host", conf.Host, "scheme", conf.Scheme)
	return client
}

// newClientFactory picks the LLM backend from LLM_BACKEND_TYPE. The
// factory receives the model name from the tenant profile via the
// client cache key.
func newClientFactory() llm.ClientFactory {
	backend := os.Getenv("LLM_BACKEND_TYPE")
	switch backend {
	case "openai":
		slog.Info("Using OpenAI LLM backend")
		return func(model string) (llm.LLMClient, error) {
			return llm.NewOpenAIClient(os.Getenv("OPENAI_API_KEY"), os.Getenv("OPENAI_BASE_URL"), model)
		}
	case "ollama", "":
		if backend == "" {
			slog.Warn("LLM_BACKEND_TYPE not set, defaulting to ollama")
		} else {
			slog.Info("Using Ollama LLM backend")
		}
		return func(model string) (llm.LLMClient, error) {
			baseURL := os.Getenv("OLLAMA_BASE_URL")
			if baseURL == "" {
				baseURL = "http://localhost:11434"
			}
			return llm.NewOllamaClient(baseURL, model)
		}
	default:
		log.Fatalf("Unknown LLM_BACKEND_TYPE %q (want ollama or openai)", backend)
		return nil
	}
}

// newRouterProvider maps the configured intent strategy onto a
// per-tenant router constructor.
func newRouterProvider() orchestrator.RouterProvider {
	strategy, err := intent.ParseStrategy(os.Getenv("RAGLINE_INTENT_STRATEGY"))
	if err != nil {
		log.Fatalf("Invalid intent strategy: %v", err)
	}
	slog.Info("Intent routing configured", "strategy", strategy)

	switch strategy {
	case intent.StrategyKeyword:
		return func(keywords []string) intent.Router {
			return intent.NewKeywordRouter(keywords)
		}
	case intent.StrategyClassifier:
		classifierURL := os.Getenv("CLASSIFIER_SERVICE_URL")
		classifier, err := intent.NewHTTPClassifier(classifierURL)
		if err != nil {
			log.Fatalf("Classifier strategy needs CLASSIFIER_SERVICE_URL: %v", err)
		}
		router := intent.NewClassifierRouter(classifier)
		return func([]string) intent.Router { return router }
	default:
		router := intent.NewLexicalRouter()
		return func([]string) intent.Router { return router }
	}
}

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	logger := logging.Setup(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("RAGLINE_LOG_LEVEL")),
		Service: "ragline-engine",
		JSON:    true,
		LogDir:  os.Getenv("RAGLINE_LOG_DIR"),
	})
	defer logger.Close()

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("Failed to set up the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	// --- Retrieval stack ---
	weaviateClient := newWeaviateClient()
	embedder := embedding.NewLazyEmbedder(func() (embedding.Embedder, error) {
		return embedding.NewHTTPEmbedderFromEnv()
	})
	retriever := retrieval.NewTool(retrieval.NewWeaviateSearcher(weaviateClient), embedder)

	// --- Tenant profiles ---
	tenantDir := os.Getenv("RAGLINE_TENANT_DIR")
	if tenantDir == "" {
		tenantDir = "./tenants"
	}
	tenants, err := tenant.NewFileStore(tenantDir)
	if err != nil {
		log.Fatalf("Failed to load tenant profiles from %s: %v", tenantDir, err)
	}
	slog.Info("Tenant profiles loaded", "dir", tenantDir, "count", tenants.Len())

	promptCache := prompt.NewCache()
	watcher, err := tenant.NewWatcher(tenants, func() {
		// Edited profiles mean stale cached prompts.
		promptCache.InvalidateAll()
	})
	if err != nil {
		log.Fatalf("Failed to watch tenant directory: %v", err)
	}
	watcherCtx, stopWatcher := context.WithCancel(context.Background())
	defer stopWatcher()
	watcher.Start(watcherCtx)
	defer watcher.Stop()

	// --- Turn pipeline ---
	clients := llm.NewClientCache(newClientFactory())
	orch := orchestrator.New(tenants, newRouterProvider(), retriever, promptCache, clients)

	// --- Evaluation ---
	var resultStore evaluation.ResultStore = evaluation.NopResultStore{}
	if os.Getenv("INFLUXDB_TOKEN") != "" {
		influxStore := evaluation.NewInfluxResultStore()
		defer influxStore.Close()
		resultStore = influxStore
		slog.Info("Evaluation reports will be persisted to InfluxDB")
	}
	evalEngine := evaluation.NewEngine(embedder)

	// --- HTTP surface ---
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("ragline-engine"))
	routes.SetupRoutes(router, routes.Handlers{
		Chat:      handlers.NewChatHandler(orch, tenants),
		Streaming: handlers.NewStreamingChatHandler(orch, tenants),
		Eval:      handlers.NewEvalHandler(evalEngine, resultStore),
	})

	port := os.Getenv("RAGLINE_PORT")
	if port == "" {
		port = "12300"
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Starting the response engine", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}
