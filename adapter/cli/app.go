package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/felixgeelhaar/caravan/internal/client/api"
	"github.com/felixgeelhaar/caravan/internal/client/session"
	"github.com/felixgeelhaar/caravan/pkg/config"
)

// App holds the CLI application dependencies.
type App struct {
	Config  *config.ClientConfig
	Client  *api.Client
	Session *session.Context
	Logger  *slog.Logger

	// In feeds prompts and the chat composer.
	In io.Reader
}

// NewApp builds the API client over the persisted session.
func NewApp(cfg *config.ClientConfig, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store, err := session.NewFileStore(cfg.SessionFile, cfg.SessionKey)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	sess := session.New(store, logger)

	apiCfg := api.DefaultConfig(cfg.APIURL)
	apiCfg.Timeout = cfg.HTTPTimeout
	apiCfg.ReadAttempts = cfg.ReadAttempts
	apiCfg.Logger = logger
	client, err := api.New(apiCfg, sess)
	if err != nil {
		return nil, err
	}
	return &App{
		Config:  cfg,
		Client:  client,
		Session: sess,
		Logger:  logger,
		In:      os.Stdin,
	}, nil
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}
