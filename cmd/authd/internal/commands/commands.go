package commands

import (
	"net/http"
	"time"

	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/internal/logger"
	"github.com/rs/zerolog"
)

type Globals struct {
	Dev     bool
	Config  string
	Version string
}

// load reads process configuration and builds the logger for it.
func (g *Globals) load() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(g.Config, g.Dev)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logger.Setup(cfg.Dev).With().Str("version", g.Version).Logger()
	return cfg, log, nil
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    16 * 1024,
	}
}
