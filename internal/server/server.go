// Package server provides the HTTP server and handlers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bryan-buckman/infowatch/internal/engine"
	"github.com/bryan-buckman/infowatch/internal/model"
	"github.com/bryan-buckman/infowatch/internal/opml"
	"github.com/bryan-buckman/infowatch/internal/state"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const (
	eventBuffer  = 64
	pingInterval = 30 * time.Second
)

// Server is the main HTTP server.
type Server struct {
	store  *state.Store
	engine *engine.Engine
	router chi.Router
	http   *http.Server

	// submitMu admits one add-feed at a time, as the form does by
	// disabling its input while loading.
	submitMu sync.Mutex
}

// New creates a new server.
func New(store *state.Store, eng *engine.Engine) *Server {
	s := &Server{
		store:  store,
		engine: eng,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/feeds", s.handleFeeds)
		r.Post("/feeds", s.handleSubmit)
		r.Get("/posts", s.handlePosts)
		r.Post("/posts/{postID}/read", s.handleMarkRead)
		r.Post("/posts/{postID}/select", s.handleSelect)
		r.Post("/posts/{postID}/open", s.handleOpen)
		r.Get("/status", s.handleStatus)
		r.Get("/export-opml", s.handleExportOPML)
		r.Post("/import-opml", s.handleImportOPML)
		r.Get("/events", s.handleEvents)
	})

	s.router = r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.router}
	log.Infof("Server starting on %s", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// --- Feed Handlers ---

func (s *Server) handleFeeds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Feeds())
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if !s.submitMu.TryLock() {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":  "a feed is already loading",
			"status": s.store.LoadStatus(),
		})
		return
	}
	defer s.submitMu.Unlock()

	err := s.engine.Submit(r.Context(), req.URL)
	body := map[string]interface{}{
		"form":   s.store.FormStatus(),
		"status": s.store.LoadStatus(),
	}
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, body)
	case errors.Is(err, model.ErrInvalidURL), errors.Is(err, model.ErrDuplicateURL):
		writeJSON(w, http.StatusUnprocessableEntity, body)
	default:
		writeJSON(w, http.StatusBadGateway, body)
	}
}

// --- Post Handlers ---

type postView struct {
	model.Post
	Read bool `json:"read"`
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	posts := lo.Map(s.store.Posts(), func(p model.Post, _ int) postView {
		return postView{Post: p, Read: s.store.IsRead(p.ID)}
	})
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")
	if _, ok := s.store.PostByID(postID); !ok {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}
	s.engine.MarkRead(postID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	s.writePost(w, s.engine.SelectPost)(chi.URLParam(r, "postID"))
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	s.writePost(w, s.engine.OpenPost)(chi.URLParam(r, "postID"))
}

func (s *Server) writePost(w http.ResponseWriter, action func(string) (model.Post, error)) func(string) {
	return func(postID string) {
		post, err := action(postID)
		if errors.Is(err, model.ErrPostNotFound) {
			http.Error(w, "Post not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, post)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"load":         s.store.LoadStatus(),
		"form":         s.store.FormStatus(),
		"current_post": s.store.CurrentPost(),
		"read_count":   len(s.store.ReadMarks()),
		"poll_every":   s.engine.Interval().String(),
	})
}

// --- OPML Handlers ---

func (s *Server) handleExportOPML(w http.ResponseWriter, r *http.Request) {
	data, err := opml.Export("Infowatch Feeds", s.store.Feeds(), time.Now())
	if err != nil {
		http.Error(w, "Failed to export", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", "attachment; filename=infowatch-feeds.opml")
	w.Write(data)
}

func (s *Server) handleImportOPML(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("opml")
	if err != nil {
		http.Error(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	urls, err := opml.Parse(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse OPML: %v", err), http.StatusBadRequest)
		return
	}

	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	imported := 0
	for _, u := range urls {
		if err := s.engine.Submit(r.Context(), u); err != nil {
			log.WithField("feed_url", u).Warnf("Import: skipping feed: %v", err)
			continue
		}
		imported++
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"imported": imported,
		"total":    len(urls),
	})
}

// --- Change stream ---

type event struct {
	Path  state.Path `json:"path"`
	Value any        `json:"value"`
}

// handleEvents streams store notifications as server-sent events. A slow
// client loses events rather than blocking the store.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	events := make(chan state.Change, eventBuffer)
	unsubscribe := s.store.Subscribe(state.ObserverFunc(func(c state.Change) {
		select {
		case events <- c:
		default:
			log.Warnf("Event channel full, dropping %s for %s", c.Path, r.RemoteAddr)
		}
	}))
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case c := <-events:
			data, err := json.Marshal(event{Path: c.Path, Value: c.Value})
			if err != nil {
				log.Errorf("Error marshalling %s event: %v", c.Path, err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", c.Path, data)
			flusher.Flush()
		}
	}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Encode error: %v", err)
	}
}
