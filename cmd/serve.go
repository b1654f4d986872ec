package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civicsignal/billscan-cli/internal/pipeline"
	"github.com/civicsignal/billscan-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the status and run-trigger server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, pipeline.RunnerOptions{})
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/bills", func(w http.ResponseWriter, req *http.Request) {
			bills, err := env.Store.ListBills(req.Context())
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, bills)
		})

		r.Get("/bills/{id}/status", func(w http.ResponseWriter, req *http.Request) {
			bill, err := env.Store.LoadBill(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				if eris.Is(err, store.ErrNotFound) {
					writeJSON(w, http.StatusNotFound, map[string]string{"error": "bill not found"})
					return
				}
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, buildStatus(bill))
		})

		inflight := newRunGuard()

		r.Post("/bills/{id}/run", func(w http.ResponseWriter, req *http.Request) {
			billID := chi.URLParam(req, "id")
			if _, err := env.Store.LoadBill(req.Context(), billID); err != nil {
				if eris.Is(err, store.ErrNotFound) {
					writeJSON(w, http.StatusNotFound, map[string]string{"error": "bill not found"})
					return
				}
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}

			// One run per bill at a time; concurrent runs would race on the
			// same document.
			if !inflight.acquire(billID) {
				writeJSON(w, http.StatusConflict, map[string]string{
					"error": "run already in progress",
					"bill":  billID,
				})
				return
			}

			// Run asynchronously against the server's lifetime, not the
			// request's.
			go func() {
				defer inflight.release(billID)
				result, err := env.Pipeline.Run(ctx, billID)
				if err != nil {
					zap.L().Error("triggered run failed", zap.String("bill", billID), zap.Error(err))
					return
				}
				zap.L().Info("triggered run complete",
					zap.String("bill", billID),
					zap.String("outcome", string(result.Outcome)),
				)
			}()

			writeJSON(w, http.StatusAccepted, map[string]string{
				"status": "accepted",
				"bill":   billID,
			})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// runGuard tracks bills with a triggered run in flight.
type runGuard struct {
	mu    sync.Mutex
	bills map[string]struct{}
}

func newRunGuard() *runGuard {
	return &runGuard{bills: make(map[string]struct{})}
}

func (g *runGuard) acquire(billID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.bills[billID]; ok {
		return false
	}
	g.bills[billID] = struct{}{}
	return true
}

func (g *runGuard) release(billID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.bills, billID)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
