package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/corridorhq/copilot/api"
	"github.com/corridorhq/copilot/chat"
	"github.com/corridorhq/copilot/config"
	"github.com/corridorhq/copilot/corridor"
	"github.com/corridorhq/copilot/database"
	"github.com/corridorhq/copilot/embeddings"
	"github.com/corridorhq/copilot/ingestion"
	"github.com/corridorhq/copilot/intent"
	"github.com/corridorhq/copilot/llm"
	"github.com/corridorhq/copilot/retrieval"
	"github.com/corridorhq/copilot/store"
	"github.com/corridorhq/copilot/validation"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	switch os.Args[1] {
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	case "ingest":
		ingestCmd(cfg, logger, os.Args[2:])
	case "ask":
		askCmd(cfg, logger, os.Args[2:])
	case "clear":
		clearCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func serveCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", cfg.HTTPAddr, "address to listen on")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pgPool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pgPool.Close()

	neo4jDriver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		logger.Fatalf("neo4j connection: %v", err)
	}
	defer neo4jDriver.Close(ctx)

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}
	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		logger.Fatalf("llm setup: %v", err)
	}

	registry := corridor.NewRegistry(cfg.SchemaDir)
	validator := validation.New(registry)
	router := intent.NewRouter(registry, validator, cfg.DocsBaseURL)
	conversations := store.New(cfg.MaxConversationsPerClient)

	retriever := retrieval.NewRetriever(
		embedder,
		retrieval.NewPostgresVectorStore(pgPool),
		retrieval.NewPostgresLexicalStore(pgPool),
		logger,
	)
	synthesizer := chat.NewLLMSynthesizer(llmClient, logger)
	graphStore := chat.NewNeo4jGraphStore(neo4jDriver)
	chatService := chat.NewService(router, retriever, synthesizer, graphStore, conversations, chat.Config{
		RetrievalLimit: cfg.RetrievalK,
	}, logger)

	ingestService := ingestion.NewService(pgPool, neo4jDriver, embedder, registry, logger, cfg.Embeddings.Dimension, cfg.DocsBaseURL)

	server := api.New(api.Dependencies{
		Chat:          chatService,
		Validator:     validator,
		Conversations: conversations,
		Ingestion:     ingestService,
		CorpusDir:     cfg.CorpusDir,
	}, logger)

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("http shutdown: %v", err)
		}
	}()

	logger.Printf("listening on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("http server: %v", err)
	}
}

func ingestCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	corpusDir := flags.String("dir", cfg.CorpusDir, "path to the documentation corpus")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ingest flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pgPool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pgPool.Close()

	neo4jDriver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		logger.Fatalf("neo4j connection: %v", err)
	}
	defer neo4jDriver.Close(ctx)

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}

	registry := corridor.NewRegistry(cfg.SchemaDir)
	svc := ingestion.NewService(pgPool, neo4jDriver, embedder, registry, logger, cfg.Embeddings.Dimension, cfg.DocsBaseURL)
	logger.Printf("ingesting corpus from %s using %s/%s embeddings", *corpusDir, strings.ToUpper(cfg.Embeddings.Provider), cfg.Embeddings.Model)

	if err := svc.IngestDirectory(ctx, *corpusDir); err != nil {
		logger.Fatalf("ingestion failed: %v", err)
	}
}

func askCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ask", flag.ExitOnError)
	message := flags.String("message", "", "question to ask the copilot")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ask flags: %v", err)
	}
	if strings.TrimSpace(*message) == "" {
		logger.Fatal("ask requires --message")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pgPool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pgPool.Close()

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}
	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		logger.Fatalf("llm setup: %v", err)
	}

	registry := corridor.NewRegistry(cfg.SchemaDir)
	validator := validation.New(registry)
	router := intent.NewRouter(registry, validator, cfg.DocsBaseURL)

	retriever := retrieval.NewRetriever(
		embedder,
		retrieval.NewPostgresVectorStore(pgPool),
		retrieval.NewPostgresLexicalStore(pgPool),
		logger,
	)
	synthesizer := chat.NewLLMSynthesizer(llmClient, logger)
	svc := chat.NewService(router, retriever, synthesizer, nil, nil, chat.Config{RetrievalLimit: cfg.RetrievalK}, logger)

	resp, err := svc.Chat(ctx, chat.Request{Message: *message})
	if err != nil {
		logger.Fatalf("chat failed: %v", err)
	}

	fmt.Println(resp.Answer)
	if len(resp.Citations) > 0 {
		fmt.Println()
		fmt.Println("Citations:")
		for idx, citation := range resp.Citations {
			fmt.Printf("%d. %s (%s)\n", idx+1, citation.Title, citation.URL)
		}
	}
}

func clearCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse clear flags: %v", err)
	}

	if !*confirmed {
		fmt.Print("This will permanently delete the ingested corpus from Postgres and Neo4j. Continue? [y/N]: ")
		var answer string
		if _, err := fmt.Scanln(&answer); err != nil && !errors.Is(err, context.Canceled) {
			answer = ""
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			logger.Println("clear aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pgPool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pgPool.Close()

	neo4jDriver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		logger.Fatalf("neo4j connection: %v", err)
	}
	defer neo4jDriver.Close(ctx)

	svc := ingestion.NewService(pgPool, neo4jDriver, nil, nil, logger, cfg.Embeddings.Dimension, cfg.DocsBaseURL)
	if err := svc.Clear(ctx); err != nil {
		logger.Fatalf("clear failed: %v", err)
	}
	logger.Println("corpus data removed")
}

func printUsage() {
	fmt.Println("Usage: copilot <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  serve    Run the HTTP API")
	fmt.Println("  ingest   Ingest documentation into Postgres/Neo4j (use --dir to override the corpus directory)")
	fmt.Println("  ask      Ask a one-off question from the command line")
	fmt.Println("  clear    Remove ingested corpus data from Postgres/Neo4j")
}
