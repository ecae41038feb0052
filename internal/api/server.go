package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"botqueue/internal/domain"
	"botqueue/internal/queue"
	"botqueue/internal/webhook"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type enqueueReq struct {
	Payload     json.RawMessage `json:"payload"`
	ID          string          `json:"id,omitempty"`
	Priority    int             `json:"priority,omitempty"`
	DelayMs     int64           `json:"delay_ms,omitempty"`
	MaxAttempts int             `json:"max_attempts,omitempty"`
}

type webhookReq struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type Server struct {
	router *chi.Mux
}

func NewServer(jobs *queue.Manager, hooks *webhook.Router) *Server {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/v1/jobs/{queue}", func(w http.ResponseWriter, req *http.Request) {
		class := domain.QueueClass(chi.URLParam(req, "queue"))
		var body enqueueReq
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var payload any = map[string]any{}
		if len(body.Payload) > 0 {
			payload = body.Payload
		}
		id, err := jobs.Enqueue(req.Context(), class, payload, queue.Options{
			ID:          body.ID,
			Priority:    body.Priority,
			Delay:       time.Duration(body.DelayMs) * time.Millisecond,
			MaxAttempts: body.MaxAttempts,
		})
		if err != nil {
			status := http.StatusInternalServerError
			if err == domain.ErrUnknownQueue {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "state": "processing"})
	})

	r.Get("/v1/jobs/{queue}/{id}", func(w http.ResponseWriter, req *http.Request) {
		class := domain.QueueClass(chi.URLParam(req, "queue"))
		status, err := jobs.JobStatus(req.Context(), class, chi.URLParam(req, "id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		code := http.StatusOK
		if !status.Found {
			code = http.StatusNotFound
		}
		writeJSON(w, code, status)
	})

	r.Get("/v1/queues/{queue}/stats", func(w http.ResponseWriter, req *http.Request) {
		class := domain.QueueClass(chi.URLParam(req, "queue"))
		if !class.Valid() {
			http.Error(w, domain.ErrUnknownQueue.Error(), http.StatusNotFound)
			return
		}
		stats, err := jobs.Stats(req.Context(), class)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	r.Post("/v1/webhooks/{merchantID}", func(w http.ResponseWriter, req *http.Request) {
		var body webhookReq
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		merchantID := chi.URLParam(req, "merchantID")
		signature := req.Header.Get("X-Webhook-Signature")

		res := hooks.HandleEvent(req.Context(), body.Type, body.Payload, merchantID, signature)
		code := http.StatusOK
		if !res.Success {
			code = http.StatusUnauthorized
		}
		writeJSON(w, code, res)
	})

	r.Get("/v1/webhooks/events", func(w http.ResponseWriter, req *http.Request) {
		limit := 50
		if v := req.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		events := hooks.RecentEvents(limit, domain.EventType(req.URL.Query().Get("type")))
		writeJSON(w, http.StatusOK, events)
	})

	r.Get("/v1/webhooks/status", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, hooks.CurrentStatus())
	})

	return &Server{router: r}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Handler returns the fully wrapped HTTP handler, exposed for tests.
func (s *Server) Handler() http.Handler {
	return chainMiddleware(
		s.router,
		recoverHandler,
		loggerHandler(func(w http.ResponseWriter, r *http.Request) bool { return r.URL.Path == "/healthz" }),
		realIPHandler,
		requestIDHandler,
		corsHandler,
	)
}

// Run serves the API until SIGINT/SIGTERM, then shuts down
// gracefully.
func (s *Server) Run(port int) {
	addr := fmt.Sprintf(":%d", port)

	httpServer := http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Fatal().Err(err).Msg("Server forced to shutdown")
		}

		close(done)
	}()

	log.Info().Msgf("server serving on port %d", port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Failed to listen and serve")
	}

	<-done
	log.Info().Msg("Server stopped")
}
