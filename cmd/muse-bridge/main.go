package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/musekit/muse-bridge/internal/assistant"
	"github.com/musekit/muse-bridge/internal/bootstrap"
	"github.com/musekit/muse-bridge/internal/config"
	"github.com/musekit/muse-bridge/internal/gateway"
	"github.com/musekit/muse-bridge/internal/session"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	// --- bootstrap handoff store ---
	var handoffs bootstrap.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("db open error")
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("db ping error")
		}
		if err := bootstrap.EnsureSchema(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("db schema error")
		}
		handoffs = bootstrap.NewPostgresStore(db)
	} else {
		log.Warn().Msg("DATABASE_URL not set, handoffs kept in memory")
		handoffs = bootstrap.NewMemoryStore(time.Minute)
	}

	// --- assistant backend ---
	var responder assistant.Responder
	var history assistant.HistoryProvider
	switch {
	case cfg.AssistantBaseURL != "":
		client := assistant.NewHTTPClient(cfg.AssistantBaseURL, cfg.AssistantTimeout)
		responder = client
		history = client
	case cfg.OpenAIAPIKey != "":
		log.Warn().Msg("ASSISTANT_BASE_URL not set, answering through OpenAI directly")
		responder = assistant.NewOpenAIResponder(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		history = assistant.NoHistory{}
	default:
		log.Fatal().Msg("set ASSISTANT_BASE_URL or OPENAI_API_KEY")
	}

	mgr := session.NewManager(responder, history, handoffs, session.Options{
		RevealInterval: time.Duration(cfg.TypingIntervalMS) * time.Millisecond,
		DedupeWindow:   cfg.SendDedupeWindow,
		AskTimeout:     cfg.AssistantTimeout,
	}, cfg.SessionIdleTimeout)
	defer mgr.CloseAll()

	// --- router ---
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
	}))

	gateway.RegisterRoutes(r, gateway.NewHandler(mgr, handoffs))

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	log.Info().Str("port", cfg.Port).Msg("listening")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
