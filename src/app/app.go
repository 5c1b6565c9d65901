// Package app wires the application's services together: Gemini client,
// catalog index, cart automation, session storage and the dialogue engine.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/hembot/hembot/src/cart"
	"github.com/hembot/hembot/src/catalog"
	"github.com/hembot/hembot/src/config"
	"github.com/hembot/hembot/src/dialog"
	"github.com/hembot/hembot/src/gemini"
	"github.com/hembot/hembot/src/intent"
	"github.com/hembot/hembot/src/resolve"
	"github.com/hembot/hembot/src/storage"
)

// App represents the main application with all services
type App struct {
	Gemini       *gemini.Client
	Catalog      *catalog.Index
	CartService  *cart.Service
	Store        *storage.DB
	Orchestrator *dialog.Orchestrator
	Logger       *slog.Logger
	Config       *config.Config
}

// New creates a new App instance with all services initialized.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is not configured (set %s)", cfg.Gemini.APIKeyEnvVar)
	}

	client := gemini.NewClient(gemini.Config{
		APIKey:     cfg.Gemini.APIKey,
		BaseURL:    cfg.Gemini.BaseURL,
		Model:      cfg.Gemini.Model,
		EmbedModel: cfg.Gemini.EmbedModel,
		Timeout:    cfg.Gemini.Timeout,
		RetryCount: cfg.Gemini.MaxRetries,
		RetryDelay: cfg.Gemini.RetryDelay,
		Logger:     logger,
	})

	if err := os.MkdirAll(filepath.Dir(cfg.Catalog.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	catalogStore, err := catalog.OpenStore(cfg.Catalog.Path, cfg.Catalog.Dimensions, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	index := catalog.NewIndex(catalogStore, client, logger)

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		catalogStore.Close()
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}

	fs := afero.NewOsFs()
	browser := cart.NewBrowser(cart.BrowserConfig{
		Headless:  cfg.Cart.HeadlessEnabled(),
		StateFile: cfg.Cart.StateFile,
		ClipsDir:  cfg.Cart.ClipsDir,
	}, fs, logger)
	cartService := cart.NewService(browser, cart.ServiceConfig{
		BaseURL: cfg.Cart.BaseURL,
		Timeout: cfg.Cart.Timeout,
	}, logger)

	orch := dialog.New(dialog.Config{
		Classifier: intent.NewClassifier(client, logger),
		Matcher:    resolve.NewMatcher(client, logger),
		Search:     index,
		Cart:       cartService,
		Model:      client,
		Logger:     logger,
	})

	return &App{
		Gemini:       client,
		Catalog:      index,
		CartService:  cartService,
		Store:        store,
		Orchestrator: orch,
		Logger:       logger,
		Config:       cfg,
	}, nil
}

// Close closes all resources held by the app
func (a *App) Close() error {
	var firstErr error
	if a.CartService != nil {
		if err := a.CartService.Close(); err != nil {
			firstErr = err
		}
	}
	if a.Catalog != nil {
		if err := a.Catalog.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
