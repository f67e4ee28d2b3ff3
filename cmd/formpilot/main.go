// ABOUTME: Server entrypoint: wires the LLM client, orchestrator, session store, and HTTP adapter.
// ABOUTME: Loads .env, starts the expiry sweeper, and shuts down gracefully on SIGINT/SIGTERM.
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
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/formpilot-ai/formpilot/agent"
	"github.com/formpilot-ai/formpilot/llm"
	"github.com/formpilot-ai/formpilot/session"
	"github.com/formpilot-ai/formpilot/web"
)

var version = "dev"

const sweepInterval = time.Minute

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("component=main action=dotenv_load_failed error=%v", err)
	}

	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Printf("formpilot %s\n", version)
		return
	}

	os.Exit(run())
}

func run() int {
	cfg := web.ConfigFromEnv()

	completer := llm.NewClient(cfg.LLMAPIKey, cfg.LLMEndpoint,
		llm.WithModel(cfg.LLMModel),
		llm.WithTimeout(cfg.LLMTimeout),
	)
	orchestrator := agent.New(completer)
	store := session.NewStore(session.WithTTL(cfg.SessionTTL))
	server := web.NewServer(cfg, orchestrator, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.StartSweeper(ctx, sweepInterval)

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			httpServer.Close()
		}
	}()

	log.Printf("component=main action=listen addr=%s model=%s", cfg.Addr(), cfg.LLMModel)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("component=main action=serve_failed error=%v", err)
		return 1
	}
	return 0
}
