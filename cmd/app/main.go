package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"time"

	"vitstts/cfg"
	"vitstts/db"
	"vitstts/internal/app/api"
	"vitstts/internal/app/audio"
	"vitstts/internal/app/notifications"
	"vitstts/internal/app/processor"
	"vitstts/internal/app/roster"
	"vitstts/internal/app/settings"
	"vitstts/pkg/vits"
	"vitstts/pkg/ws"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gopkg.in/yaml.v3"
)

func main() {
	var cfgPath, envPath string
	flag.StringVar(&cfgPath, "cfg-path", "cfg/cfg.yaml", "path to config file")
	flag.StringVar(&envPath, "env-path", ".env", "path to env file, optional")
	flag.Parse()

	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("can't load %s file: %v", envPath, err)
	}

	cfg := &cfg.Config{
		Params:      settings.DefaultParams(),
		HTTPTimeout: 30 * time.Second,
	}
	if cfgFile, err := os.ReadFile(cfgPath); err != nil {
		log.Fatalf("can't open %s file: %v", cfgPath, err)
	} else if err = yaml.Unmarshal([]byte(os.ExpandEnv(string(cfgFile))), cfg); err != nil {
		log.Fatal("can't unmarshal cfg.yaml file", err)
	}

	if cfg.Params.BaseURL == "" {
		cfg.Params.BaseURL = settings.DefaultParams().BaseURL
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	vits.RegisterMetrics(reg)
	roster.RegisterMetrics(reg)
	ws.RegisterMetrics(reg)

	createDbCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := db.New(createDbCtx, &cfg.DB)
	if err != nil {
		log.Fatal("failed to init history db: ", err)
	}
	defer db.Close()

	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	vitsClient := vits.New(httpClient, &cfg.Vits)

	audioStore, err := audio.New(&cfg.Audio, vitsClient.Format())
	if err != nil {
		log.Fatal("failed to init audio store: ", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	processor := processor.NewProcessor(
		logger.WithGroup("processor"),
		settings.New(cfg.Params),
		vitsClient,
		audioStore,
		roster.NewFetcher(logger.WithGroup("roster"), vitsClient),
	)

	panelNotifications := notifications.New()

	api := api.NewAPI(&cfg.Api, logger.WithGroup("api"), processor, db, panelNotifications, audioStore.Dir(), reg)

	router := api.NewRouter()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Api.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()

		logger.Info("Starting server", "port", cfg.Api.Port, "audio_dir", audioStore.Dir())

		if err := srv.ListenAndServe(); err != nil {
			logger.Error("ListenAndServe finished", "err", err)
		}
	}()

	select {
	case <-ctx.Done():
	case <-stop:
		logger.Info("Interrupt triggerred")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "err", err)
	}

	wg.Wait()
}
