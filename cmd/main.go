package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/lrgtech/peopleanalytics/internal/adapters/auth"
	"github.com/lrgtech/peopleanalytics/internal/adapters/http/api"
	"github.com/lrgtech/peopleanalytics/internal/adapters/http/swagger"
	"github.com/lrgtech/peopleanalytics/internal/adapters/remote"
	"github.com/lrgtech/peopleanalytics/internal/adapters/workbook"
	service "github.com/lrgtech/peopleanalytics/internal/app"
	"github.com/lrgtech/peopleanalytics/internal/config"
	"github.com/lrgtech/peopleanalytics/internal/domain/comparison"
	"github.com/lrgtech/peopleanalytics/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("invalid log_format: " + err.Error() + "\n")
		_ = logger.Init()
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	sess := newSession(cfg, log)
	if err := sess.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := sess.Stop(context.Background()); err != nil {
			log.Warn(ctx, "session stop failed", logger.Error(err))
		}
	}()

	datasets := sess.LoadDatasets(ctx)
	log.Info(ctx, "datasets loaded", logger.Int("count", len(datasets)), logger.String("api_base_url", cfg.APIBaseURL))

	handler, err := newHandler(ctx, cfg, sess)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newSession wires the remote client, token store and workbook preflight
// into a dashboard session.
func newSession(cfg *config.Config, log logger.Logger) *service.Session {
	var tokens remote.TokenSource = auth.NewMemoryStore("")
	if cfg.TokenFile != "" {
		tokens = auth.NewFileStore(cfg.TokenFile)
	}

	client := remote.New(cfg.APIBaseURL,
		remote.WithPrefix(cfg.APIPrefix),
		remote.WithTimeout(cfg.RequestTimeout()),
		remote.WithTokenSource(tokens),
		remote.WithLogger(log.Named("remote")),
	)

	inspector := workbook.NewInspector(
		workbook.WithRequiredSheets(cfg.RequiredSheets...),
		workbook.WithLogger(log.Named("workbook")),
	)

	return service.New(client,
		service.WithLogger(log.Named("session")),
		service.WithLocale(comparison.ParseLocale(cfg.Locale)),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithRegistryOptions(
			service.WithAllowedExtensions(cfg.AllowedExtensions...),
			service.WithMaxUploadBytes(cfg.MaxUploadBytes),
			service.WithPreflighter(inspector),
			service.WithRegistryLogger(log.Named("registry")),
		),
	)
}

// newHandler builds the routed handler chain: recovery, CORS, access log.
func newHandler(ctx context.Context, cfg *config.Config, deps api.Dependencies) (http.Handler, error) {
	r := mux.NewRouter()
	if err := swagger.Register(ctx, r); err != nil {
		return nil, err
	}
	api.NewServer(deps, api.WithMaxUploadBytes(cfg.MaxUploadBytes)).Register(ctx, r)

	var h http.Handler = r
	h = handlers.LoggingHandler(os.Stdout, h)
	h = handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(h)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
	return h, nil
}
