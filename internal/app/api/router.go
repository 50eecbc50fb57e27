package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vitstts/internal/app/history"
	"vitstts/internal/app/notifications"
	"vitstts/internal/app/processor"
	"vitstts/internal/app/roster"
	"vitstts/internal/app/settings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogchi "github.com/samber/slog-chi"
)

type Config struct {
	Port int `yaml:"port"`
	// Timeout bounds host hook calls, synthesis included.
	Timeout time.Duration `yaml:"timeout"`
}

// Extension is the hook implementation plus the extra operations driven by panel controls.
type Extension interface {
	processor.Hooks

	RefreshVoices(ctx context.Context) roster.Roster
	Settings() *settings.Store
}

type HistoryStore interface {
	GetHistory(ctx context.Context, chatID string) (*history.History, error)
	SaveHistory(ctx context.Context, chatID string, h *history.History) error
}

type API struct {
	logger *slog.Logger

	cfg *Config

	ext           Extension
	history       HistoryStore
	notifications *notifications.Client

	audioDir string
	gatherer prometheus.Gatherer

	stripLock     sync.Mutex
	pendingStrips map[string]string // chat id -> confirmation token
}

func NewAPI(cfg *Config, logger *slog.Logger, ext Extension, historyStore HistoryStore,
	notifications *notifications.Client, audioDir string, gatherer prometheus.Gatherer) *API {
	return &API{
		cfg: cfg,

		logger: logger,

		ext:           ext,
		history:       historyStore,
		notifications: notifications,

		audioDir: audioDir,
		gatherer: gatherer,

		pendingStrips: make(map[string]string),
	}
}

func (api *API) NewRouter() *chi.Mux {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(slogchi.New(api.logger))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(middleware.StripSlashes)

	router.Use(middleware.Recoverer)

	router.Handle("/metrics", promhttp.HandlerFor(api.gatherer, promhttp.HandlerOpts{}))

	// settings panel
	router.Get("/", api.panelPage)
	router.Get("/settings", api.getSettings)
	router.Post("/settings/{key}", api.updateSetting)
	router.Post("/voices/refresh", api.refreshVoices)

	router.Route("/chats/{chat_id}", func(router chi.Router) {
		router.Get("/history", api.getHistory)

		router.Post("/strip", api.stripRequest)
		router.Post("/strip/confirm", api.stripConfirm)
		router.Post("/strip/cancel", api.stripCancel)
	})

	router.Get("/ws", api.wsHandler)

	// host extension points
	router.Route("/hooks", func(router chi.Router) {
		if api.cfg.Timeout > 0 {
			router.Use(middleware.Timeout(api.cfg.Timeout))
		}

		router.Get("/ui", api.uiHook)
		router.Post("/state", api.stateHook)
		router.Post("/input", api.inputHook)
		router.Post("/history", api.historyHook)
		router.Post("/output", api.outputHook)
	})

	router.Get("/file/*", api.audioFile)

	return router
}
