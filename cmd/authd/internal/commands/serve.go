package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/handler"
	otelexport "github.com/MrEthical07/authcore/metrics/export/otel"
	promexport "github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/MrEthical07/authcore"

type ServeCmd struct {
	Listen string `help:"Override AUTHCORE_HTTP_ADDR." default:""`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	cfg, log, err := globals.load()
	if err != nil {
		return err
	}
	addr := cfg.HTTPAddr
	if c.Listen != "" {
		addr = c.Listen
	}
	log.Info().Bool("dev", cfg.Dev).Str("addr", addr).Msg("starting authd")

	s, err := buildStack(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownWait)
		defer cancel()
		s.close(closeCtx, log)
	}()

	if cfg.OTLPEndpoint != "" {
		shutdown, err := startOTLP(ctx, cfg.OTLPEndpoint, s.engine)
		if err != nil {
			log.Warn().Err(err).Msg("failed to start otlp metrics, continuing without")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("otlp shutdown")
				}
			}()
			log.Info().Str("endpoint", cfg.OTLPEndpoint).Msg("pushing metrics over otlp")
		}
	}

	srv := configureHTTPServer(addr, newRouter(s.engine, cfg.RateLimitPrefix, cfg.CORSOrigins, log))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownWait)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// newRouter wires the API behind the middleware chain, with /metrics
// served outside it.
func newRouter(engine *authcore.Engine, ratePrefix string, origins []string, log zerolog.Logger) http.Handler {
	var api http.Handler = handler.New(engine).Routes()
	api = middleware.Authenticate(engine)(api)
	api = middleware.RateLimit(engine, ratePrefix)(api)

	if len(origins) > 0 {
		api = cors.New(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
			ExposedHeaders: []string{"Retry-After", middleware.RequestIDHeader},
			MaxAge:         600,
		}).Handler(api)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promexport.NewPrometheusExporter(engine).Handler())
	mux.Handle("/", api)
	return middleware.RequestContext(log)(mux)
}

func startOTLP(ctx context.Context, endpoint string, engine *authcore.Engine) (func(context.Context) error, error) {
	exp, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(15*time.Second))),
	)
	instruments, err := otelexport.NewOTelExporter(mp.Meter(meterName), engine)
	if err != nil {
		_ = mp.Shutdown(ctx)
		return nil, err
	}

	return func(ctx context.Context) error {
		return errors.Join(instruments.Close(), mp.Shutdown(ctx))
	}, nil
}
