package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/chiron/internal/auth"
	"github.com/freeeve/chiron/internal/config"
	"github.com/freeeve/chiron/internal/handler"
	"github.com/freeeve/chiron/internal/logger"
	"github.com/freeeve/chiron/internal/metrics"
	"github.com/freeeve/chiron/internal/middleware"
	"github.com/freeeve/chiron/internal/repository/postgres"
	redisrepo "github.com/freeeve/chiron/internal/repository/redis"
	"github.com/freeeve/chiron/internal/repository/sqlite"
	"github.com/freeeve/chiron/internal/ruleset"
	"github.com/freeeve/chiron/internal/service"
)

func main() {
	logger.Init()
	cfg, err := config.Load(os.Getenv("CONFIG_DIR"))
	if err != nil {
		log.Fatal().Err(err).Msg("Config load failed")
	}
	log.Info().Str("port", cfg.Port).Dur("tick", cfg.TickInterval).Bool("dev", cfg.DevMode).Msg("Config loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := postgres.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()

	// Redis
	redisClient, err := redisrepo.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClient.Close()

	// Repos
	userRepo := postgres.NewUserRepo(db)
	gameRepo := postgres.NewGameRepo(db)
	turnRepo := postgres.NewTurnRepo(db)

	// Auth
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret)

	// WebSocket hub
	wsHub := handler.NewHub()

	// Services
	gameSvc := service.NewGameService(gameRepo, turnRepo, redisClient, wsHub, service.Settings{
		MapWidth:   cfg.MapWidth,
		MapHeight:  cfg.MapHeight,
		AIFactions: cfg.AIFactions,
	})
	if cfg.RulesetPath != "" {
		rules, err := ruleset.Load(cfg.RulesetPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.RulesetPath).Msg("Ruleset load failed")
		}
		gameSvc.SetRules(rules)
	}
	if cfg.SavePath != "" {
		saves, err := sqlite.Open(cfg.SavePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.SavePath).Msg("Save store open failed")
		}
		defer saves.Close()
		gameSvc.SetSaveStore(saves)
	}
	if recorder, err := metrics.New(gameSvc.ActiveCount); err != nil {
		log.Warn().Err(err).Msg("Metrics disabled")
	} else {
		gameSvc.SetMetrics(recorder)
	}

	// Handlers
	authHandler := handler.NewAuthHandler(jwtMgr, userRepo, cfg.DevMode)
	gameHandler := handler.NewGameHandler(gameSvc)
	unitHandler := handler.NewUnitHandler(gameSvc)
	wsHandler := handler.NewWSHandler(wsHub, jwtMgr, gameSvc)

	// Router
	mux := http.NewServeMux()
	authMw := auth.Middleware(jwtMgr)

	// Health
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth (public)
	mux.HandleFunc("POST /auth/dev", authHandler.DevLogin)
	mux.HandleFunc("POST /auth/refresh", authHandler.RefreshToken)

	// Protected API routes
	api := http.NewServeMux()
	api.HandleFunc("GET /users/me", authHandler.Me)
	api.HandleFunc("POST /games", gameHandler.CreateGame)
	api.HandleFunc("GET /games", gameHandler.ListGames)
	api.HandleFunc("GET /games/{id}", gameHandler.GetGame)
	api.HandleFunc("DELETE /games/{id}", gameHandler.DeleteGame)
	api.HandleFunc("POST /games/{id}/end-turn", gameHandler.EndTurn)
	api.HandleFunc("POST /games/{id}/decisions/{kind}/clear", gameHandler.ClearDecision)
	api.HandleFunc("POST /games/{id}/treaty/confirm", gameHandler.ConfirmTreatyBreak)
	api.HandleFunc("POST /games/{id}/saves", gameHandler.Save)
	api.HandleFunc("GET /games/{id}/saves", gameHandler.ListSaves)
	api.HandleFunc("POST /games/{id}/saves/{saveId}/load", gameHandler.LoadSave)
	api.HandleFunc("POST /games/{id}/units/{unitId}/move", unitHandler.Move)
	api.HandleFunc("POST /games/{id}/units/{unitId}/hold", unitHandler.Hold)
	api.HandleFunc("POST /games/{id}/units/{unitId}/bombard", unitHandler.Bombard)
	api.HandleFunc("POST /games/{id}/units/{unitId}/probe", unitHandler.Probe)
	api.HandleFunc("POST /games/{id}/units/{unitId}/airdrop", unitHandler.Airdrop)
	api.HandleFunc("POST /games/{id}/units/{unitId}/found", unitHandler.FoundBase)
	api.HandleFunc("POST /games/{id}/units/{unitId}/terraform", unitHandler.Terraform)

	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", authMw(api)))

	// WebSocket (auth via query param, not middleware)
	mux.HandleFunc("GET /api/v1/ws", wsHandler.ServeWS)

	// Apply global middleware
	root := middleware.Chain(mux, middleware.Recover, middleware.Logger, middleware.CORS("*"), middleware.JSON)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Reload games that were running before a restart.
	gameSvc.RecoverActiveGames(ctx)

	runner := service.NewRunner(gameSvc, cfg.TickInterval)
	go runner.Start(ctx)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	cancel()
	wsHub.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}
