package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/TripWatch/internal/integrations/liveactivity/wshub"
	"github.com/BearBump/TripWatch/internal/models"
	"github.com/BearBump/TripWatch/internal/services/activity"
	"github.com/BearBump/TripWatch/internal/services/monitor"
	"github.com/BearBump/TripWatch/internal/services/reclassify"
	"github.com/BearBump/TripWatch/internal/services/statusfeed"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type monitorHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	scheduler *monitor.Scheduler
	board     *reclassify.Board
	bridge    *activity.Bridge
	relay     *statusfeed.Relay
	hub       *wshub.Hub
}

type loadBoardRequest struct {
	Upcoming []models.Trip `json:"upcoming"`
	Past     []models.Trip `json:"past"`
}

func runMonitorHTTPServer(ctx context.Context, opts monitorHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	srv := &http.Server{Handler: newMonitorRouter(opts), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("monitor HTTP listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newMonitorRouter(opts monitorHTTPOpts) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		out := map[string]any{"scheduler": opts.scheduler.Stats()}
		if opts.bridge != nil {
			out["activities"] = opts.bridge.Active()
		}
		if opts.relay != nil {
			out["relay"] = map[string]int64{
				"published": opts.relay.Published(),
				"failed":    opts.relay.Failed(),
			}
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Route("/monitor", func(r chi.Router) {
		r.Post("/trips", func(w http.ResponseWriter, r *http.Request) {
			var trip models.Trip
			if err := json.NewDecoder(r.Body).Decode(&trip); err != nil {
				writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
				return
			}
			if trip.Reference == "" {
				writeError(w, http.StatusBadRequest, "reference is required")
				return
			}
			started := opts.scheduler.StartMonitoring(trip)
			writeJSON(w, http.StatusOK, map[string]any{
				"reference":  trip.Reference,
				"started":    started,
				"monitoring": opts.scheduler.IsMonitoring(trip.Reference),
			})
		})
		r.Delete("/trips", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]int{"stopped": opts.scheduler.StopAll()})
		})
		r.Delete("/trips/{reference}", func(w http.ResponseWriter, r *http.Request) {
			ref := chi.URLParam(r, "reference")
			writeJSON(w, http.StatusOK, map[string]any{"reference": ref, "stopped": opts.scheduler.StopMonitoring(ref)})
		})
		r.Get("/trips/{reference}/status", func(w http.ResponseWriter, r *http.Request) {
			ref := chi.URLParam(r, "reference")
			st, ok := opts.scheduler.CurrentStatus(ref)
			if !ok {
				writeError(w, http.StatusNotFound, "no status for "+ref)
				return
			}
			writeJSON(w, http.StatusOK, st)
		})
		r.Get("/sessions", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, opts.scheduler.Sessions())
		})
	})

	r.Route("/board", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, opts.board.Buckets())
		})
		r.Post("/load", func(w http.ResponseWriter, r *http.Request) {
			var req loadBoardRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
				return
			}
			writeJSON(w, http.StatusOK, opts.board.Load(req.Upcoming, req.Past))
		})
	})

	if opts.hub != nil {
		r.Mount("/ws", opts.hub.Routes())
	}

	if opts.swaggerPath != "" {
		if fi, err := os.Stat(opts.swaggerPath); err == nil {
			r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Cache-Control", "no-store")
				http.ServeFile(w, r, opts.swaggerPath)
			})
			swaggerURL := fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
			r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
		} else {
			slog.Warn("swagger file not found, docs disabled", "path", opts.swaggerPath)
		}
	}

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(r)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
