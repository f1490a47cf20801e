package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"shortcut-panel/api"
	"shortcut-panel/config"
	"shortcut-panel/session"
	"shortcut-panel/shortcut"
	"shortcut-panel/storage"
	"shortcut-panel/view"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	data := newDataManager(cfg)
	defer data.Destroy()

	viewOpts, closeStores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer closeStores()
	viewOpts.InputSelector = cfg.UI.Input
	viewOpts.Translator = view.MapTranslator(cfg.UI.Strings)
	viewOpts.Logger = logger.Named("view")

	page, err := fs.ReadFile(staticFiles, "static/index.html")
	if err != nil {
		return fmt.Errorf("read widget page: %w", err)
	}
	sessions := session.NewManager(data, session.Options{
		Page:              page,
		ContainerSelector: cfg.UI.Container,
		View:              viewOpts,
		Logger:            logger.Named("session"),
	})
	defer sessions.Close()

	router := api.RegisterRoutes(data, sessions, staticFiles, api.Options{
		Logger:           logger.Named("http"),
		RefreshPerMinute: cfg.Server.RefreshPerMin,
		RefreshBurst:     cfg.Server.RefreshBurst,
	})
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("shortcut-panel listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout))
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Warm the cache so the first page renders without waiting.
	g.Go(func() error {
		if _, err := data.Load(ctx, false); err != nil && !errors.Is(err, shortcut.ErrBusy) {
			logger.Warn("initial shortcut load failed", zap.Error(err))
		}
		return nil
	})

	if idle := time.Duration(cfg.Server.SessionIdle); idle > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(idle / 2)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					sessions.Prune(idle)
				}
			}
		})
	}

	return g.Wait()
}

func newDataManager(cfg *config.Config) *shortcut.Manager {
	configErr := cfg.Validate()
	if configErr != nil {
		logger.Warn("shortcut API not configured", zap.Error(configErr))
	}
	locale, err := language.Parse(cfg.UI.Locale)
	if err != nil {
		logger.Warn("invalid locale, using en", zap.String("locale", cfg.UI.Locale), zap.Error(err))
		locale = language.English
	}
	cache := shortcut.CachePolicy{
		Enabled: cfg.Cache.Enabled,
		TTL:     time.Duration(cfg.Cache.TTL),
	}
	return shortcut.New(shortcut.Options{
		URL:       cfg.API.Server,
		APIKey:    cfg.API.Key,
		Timeout:   time.Duration(cfg.API.Timeout),
		Cache:     &cache,
		Locale:    locale,
		Logger:    logger.Named("shortcuts"),
		ConfigErr: configErr,
	})
}

// openStores opens the tab state stores. The SQLite settings store is only
// used when configured and then takes precedence over the state file.
func openStores(cfg *config.Config) (view.Options, func(), error) {
	var opts view.Options
	closers := []func(){}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	local, err := storage.NewLocal(cfg.Storage.StateFile)
	if err != nil {
		return opts, closeAll, fmt.Errorf("open state file: %w", err)
	}
	opts.Local = local

	if cfg.Storage.SettingsDB != "" {
		settings, err := storage.OpenSettings(cfg.Storage.SettingsDB)
		if err != nil {
			return opts, closeAll, fmt.Errorf("open settings db: %w", err)
		}
		opts.Settings = settings
		closers = append(closers, func() {
			if err := settings.Close(); err != nil {
				logger.Warn("close settings db", zap.Error(err))
			}
		})
	}
	return opts, closeAll, nil
}
