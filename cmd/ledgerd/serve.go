package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/physioledger/internal/auth"
	"github.com/mmynk/physioledger/internal/config"
	"github.com/mmynk/physioledger/internal/middleware"
	"github.com/mmynk/physioledger/internal/service"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger over Connect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	st, err := openStack(cfg, logger, reg)
	if err != nil {
		return err
	}

	syncer, closeReplica, err := openReplica(ctx, cfg, logger)
	if err != nil {
		st.Close(context.Background())
		return err
	}
	defer closeReplica()

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(logger))
	r.Use(cors(cfg.Server.AllowedOrigin))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if st.db != nil {
			if err := st.db.Ping(req.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		if st.dual.Degraded() {
			w.Write([]byte("degraded\n"))
			return
		}
		w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	interceptors := []connect.Interceptor{middleware.LoggingInterceptor(logger)}
	if st.db != nil && cfg.Auth.JWTSecret != "" {
		jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.TokenTTL())
		authSvc := service.NewAuthService(auth.NewPasswordAuthenticator(st.db), st.db, jwtManager, logger)
		path, handler := authSvc.Handler(connect.WithInterceptors(middleware.LoggingInterceptor(logger)))
		r.Handle(path+"*", handler)
		interceptors = append([]connect.Interceptor{middleware.OptionalAuth(jwtManager)}, interceptors...)
	} else {
		logger.Warn("Accounts disabled, every request uses the guest ledger")
	}

	ledgerSvc := service.NewLedgerService(st.registry, logger)
	path, handler := ledgerSvc.Handler(connect.WithInterceptors(interceptors...))
	r.Handle(path+"*", handler)

	if syncer != nil {
		go syncer.Run(ctx, st)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(r, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("Connect server starting", "address", cfg.Server.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err = <-errc:
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		err = srv.Shutdown(shutdownCtx)
		if syncer != nil {
			if perr := syncer.PushAll(shutdownCtx, st); perr != nil {
				logger.Warn("Final replica push failed", "error", perr)
			}
		}
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	return errors.Join(err, st.Close(flushCtx))
}

// requestLogger logs every HTTP request once it completes.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("Request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"remote_addr", r.RemoteAddr,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// cors adds CORS headers for browser access.
func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
				w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
