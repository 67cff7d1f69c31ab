// Package http exposes the local dashboard API. It is a read-mostly surface:
// conversation and status mutations still flow through the bus to the
// orchestrator, the one exception being conversation tagging which edits
// storage through the gateway directly.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sandevgo/chatweave/internal/bus"
	"github.com/sandevgo/chatweave/internal/core"
	"github.com/sandevgo/chatweave/internal/service/export"
	"github.com/sandevgo/chatweave/internal/service/premium"
	"github.com/sandevgo/chatweave/pkg/log"
)

// Syncer is the slice of the orchestrator the API needs.
type Syncer interface {
	ContextFor(ctx context.Context, p core.Platform) string
	SettingsUpdated()
}

type Server struct {
	store    core.ConversationStore
	bus      *bus.Bus
	syncer   Syncer
	exporter *export.Exporter
	premium  *premium.Manager

	srv *http.Server
}

func NewServer(port int, store core.ConversationStore, b *bus.Bus, sy Syncer, ex *export.Exporter, pm *premium.Manager) *Server {
	s := &Server{
		store:    store,
		bus:      b,
		syncer:   sy,
		exporter: ex,
		premium:  pm,
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Routes builds the router. Exposed separately so tests can drive handlers
// without a listener.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Get("/conversations", s.listConversations)
		r.Get("/conversations/{id}", s.getConversation)
		r.Put("/conversations/{id}/tags", s.putTags)
		r.Post("/sync/{platform}", s.triggerSync)
		r.Get("/context/{platform}", s.getContext)
		r.Get("/export", s.exportData)
		r.Post("/import", s.importData)
		r.Get("/settings", s.getSettings)
		r.Put("/settings", s.putSettings)
		r.Post("/premium/activate", s.activatePremium)
	})
	return r
}

// Start blocks serving the API. Satisfies srv.Service.
func (s *Server) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Str("addr", s.srv.Addr).Msg("http api listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    core.Version,
		"syncStatus": s.store.SyncStatuses(r.Context()),
		"isPremium":  s.premium.IsPremium(r.Context()),
	})
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var conversations []core.Conversation
	if q := r.URL.Query().Get("q"); q != "" {
		conversations = s.store.SearchConversations(ctx, q)
	} else {
		conversations = s.store.Conversations(ctx)
	}

	if p := core.Platform(r.URL.Query().Get("platform")); p != "" {
		if !p.Valid() {
			writeError(w, http.StatusBadRequest, "unknown platform")
			return
		}
		filtered := conversations[:0]
		for _, c := range conversations {
			if c.Platform == p {
				filtered = append(filtered, c)
			}
		}
		conversations = filtered
	}

	if conversations == nil {
		conversations = []core.Conversation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": conversations,
		"total":         len(conversations),
	})
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, c := range s.store.Conversations(r.Context()) {
		if c.ID == id {
			writeJSON(w, http.StatusOK, c)
			return
		}
	}
	writeError(w, http.StatusNotFound, "conversation not found")
}

func (s *Server) putTags(w http.ResponseWriter, r *http.Request) {
	if !s.premium.HasFeature(premium.FeatureConversationTagging) {
		writeError(w, http.StatusPaymentRequired, "conversation tagging requires premium")
		return
	}

	var body struct {
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "id")
	for _, c := range s.store.Conversations(ctx) {
		if c.ID != id {
			continue
		}
		c.Tags = body.Tags
		if err := s.store.SaveConversation(ctx, c); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to save tags")
			return
		}
		writeJSON(w, http.StatusOK, c)
		return
	}
	writeError(w, http.StatusNotFound, "conversation not found")
}

func (s *Server) triggerSync(w http.ResponseWriter, r *http.Request) {
	p := core.Platform(chi.URLParam(r, "platform"))
	if !p.Valid() {
		writeError(w, http.StatusBadRequest, "unknown platform")
		return
	}
	if err := s.bus.Publish(r.Context(), core.NewStartExtraction(p)); err != nil {
		writeError(w, http.StatusServiceUnavailable, "sync unavailable")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"platform": p, "started": true})
}

func (s *Server) getContext(w http.ResponseWriter, r *http.Request) {
	p := core.Platform(chi.URLParam(r, "platform"))
	if !p.Valid() {
		writeError(w, http.StatusBadRequest, "unknown platform")
		return
	}
	writeJSON(w, http.StatusOK, core.ContextReply{Context: s.syncer.ContextFor(r.Context(), p)})
}

func (s *Server) exportData(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := s.exporter.Export(r.Context(), format)
	if err != nil {
		if errors.Is(err, export.ErrPremiumRequired) {
			writeError(w, http.StatusPaymentRequired, "export format requires premium")
			return
		}
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) importData(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 64<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if err := s.store.ImportData(r.Context(), data); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"imported": true})
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.GetSettings(r.Context()))
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	var settings core.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings payload")
		return
	}
	for _, p := range settings.EnabledPlatforms {
		if !p.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown platform %q", p))
			return
		}
	}

	if err := s.store.SaveSettings(r.Context(), settings); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	s.syncer.SettingsUpdated()
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) activatePremium(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ok, err := s.premium.ActivateInviteCode(r.Context(), body.Code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist activation")
		return
	}
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid invite code")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"activated":    true,
		"subscription": s.premium.Subscription(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
