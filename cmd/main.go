package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vitormoschetta/agent-engine-proxy/internal/auth"
	"github.com/vitormoschetta/agent-engine-proxy/internal/config"
	"github.com/vitormoschetta/agent-engine-proxy/internal/engine"
	"github.com/vitormoschetta/agent-engine-proxy/internal/handler"
	"github.com/vitormoschetta/agent-engine-proxy/internal/server"
)

var (
	envFile    string
	listenAddr string
)

var rootCmd = &cobra.Command{
	Use:   "agent-engine-proxy",
	Short: "Session-aware streaming proxy for a Vertex AI Agent Engine",
	Long: `Accepts chat turns over HTTP, binds each conversation to an Agent Engine
session and relays the agent's server-sent events back to the caller as they
arrive.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&envFile, "env-file", ".env", "environment file loaded before reading configuration")
	rootCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address (default from HOST and PORT)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Agent Engine proxy stopped")
	}
}

func run(cmd *cobra.Command, _ []string) error {
	if err := config.LoadEnvFile(envFile); err != nil {
		log.Warn().Err(err).Msg(".env file could not be loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.Log.ConfigureZerolog()

	// Recurso inválido é erro fatal de inicialização, nunca um erro por requisição
	ep, err := engine.ParseResource(cfg.EngineResource, cfg.APIEndpoint)
	if err != nil {
		return fmt.Errorf("AGENT_ENGINE_RESOURCE env var is required and must be a full resource path: %w", err)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	authenticator, err := auth.New(ctx, cfg.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to set up credentials: %w", err)
	}

	if !cfg.GuardEnabled() {
		log.Warn().Msg("⚠️  PUBLIC_API_KEY is not set - the proxy accepts unauthenticated requests; do not run this in production")
	}

	log.Info().
		Str("project", ep.Project).
		Str("location", ep.Location).
		Str("engine_id", ep.EngineID).
		Msg("🔌 Agent Engine endpoint resolved")

	srv := server.NewServer(cfg, ep, authenticator)
	h := handler.NewHandler(srv)
	srv.SetupRouter(h.HandleRoot, h.HandleHealth, h.HandleSession, h.HandleChatStream)

	addr := listenAddr
	if addr == "" {
		addr = cfg.ListenAddress()
	}
	return srv.Start(ctx, addr)
}
