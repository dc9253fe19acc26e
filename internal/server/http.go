package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mushi-tcg/mushi-server-go/internal/catalog"
	"github.com/mushi-tcg/mushi-server-go/internal/config"
	"github.com/mushi-tcg/mushi-server-go/internal/deck"
	"github.com/mushi-tcg/mushi-server-go/internal/game"
	"github.com/mushi-tcg/mushi-server-go/internal/lobby"
	"github.com/mushi-tcg/mushi-server-go/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultResultLimit = 20
	maxResultLimit     = 200
	maxBodyBytes       = 1 << 20
)

// Server is the HTTP API plus the websocket endpoint.
type Server struct {
	mux     *http.ServeMux
	lobby   *lobby.Service
	catalog *catalog.Catalog
	decks   *deck.Service
	hub     *Hub
	admin   adminAuth
	origins []string
	started time.Time
	logger  *zap.Logger
}

// New builds the HTTP server and its websocket hub.
func New(svc *lobby.Service, decks *deck.Service, cfg *config.Config, logger *zap.Logger) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		lobby:   svc,
		catalog: svc.Catalog(),
		decks:   decks,
		hub:     NewHub(svc, cfg.Server.WebSocket, logger),
		admin:   newAdminAuth(cfg.Auth.AdminPasswordHash),
		origins: cfg.Server.WebSocket.AllowedOrigins,
		started: time.Now(),
		logger:  logger,
	}
	s.routes()
	return s
}

// Hub returns the websocket hub, which is also the lobby notifier for
// websocket clients.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/cards", s.handleListCards)
	s.mux.HandleFunc("GET /api/cards/search", s.handleSearchCards)
	s.mux.HandleFunc("GET /api/cards/filter", s.handleFilterCards)
	s.mux.HandleFunc("GET /api/cards/{id}", s.handleGetCard)

	s.mux.HandleFunc("GET /api/decks/random", s.handleRandomDeck)
	s.mux.HandleFunc("POST /api/decks/validate", s.handleValidateDeck)

	s.mux.HandleFunc("GET /api/users/{user}/decks", s.handleListDecks)
	s.mux.HandleFunc("GET /api/users/{user}/decks/{name}", s.handleGetDeck)
	s.mux.HandleFunc("PUT /api/users/{user}/decks/{name}", s.handleSaveDeck)
	s.mux.HandleFunc("DELETE /api/users/{user}/decks/{name}", s.handleDeleteDeck)
	s.mux.HandleFunc("POST /api/users/{user}/decks/{name}/rename", s.handleRenameDeck)

	s.mux.HandleFunc("GET /api/matches", s.handleListMatches)
	s.mux.HandleFunc("GET /api/results", s.handleRecentResults)
	s.mux.HandleFunc("POST /api/admin/matches/{id}/end", s.handleAdminEnd)

	s.mux.HandleFunc("GET /ws", s.hub.ServeWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if origin := r.Header.Get("Origin"); origin != "" && originAllowed(s.origins, origin) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+AdminPasswordHeader)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	start := time.Now()
	s.mux.ServeHTTP(w, r)
	if s.logger != nil && r.URL.Path != "/ws" {
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"matches": s.lobby.Registry().Len(),
		"clients": s.hub.Len(),
		"cards":   s.catalog.Len(),
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"cards": s.catalog.All()})
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	card, ok := s.catalog.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "card not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"card": card})
}

func (s *Server) handleSearchCards(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": s.catalog.SearchByName(name)})
}

func (s *Server) handleFilterCards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f catalog.Filter

	if v := q.Get("type"); v != "" {
		category, err := catalog.ParseCategory(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Category = category
	}
	if v := q.Get("attribute"); v != "" {
		element, err := catalog.ParseElement(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Element = element
	}
	for key, dst := range map[string]**int{"minCost": &f.MinCost, "maxCost": &f.MaxCost} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, key+" must be a number")
			return
		}
		*dst = &n
	}
	f.Rarity = q.Get("rarity")
	f.Set = q.Get("set")
	f.Name = q.Get("name")

	writeJSON(w, http.StatusOK, map[string]any{"cards": s.catalog.Search(f)})
}

func (s *Server) handleRandomDeck(w http.ResponseWriter, r *http.Request) {
	cards, err := s.lobby.RandomDeck()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deck": cards})
}

type deckRequest struct {
	Cards []string `json:"cards"`
}

func (s *Server) handleValidateDeck(w http.ResponseWriter, r *http.Request) {
	var req deckRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := s.catalog.ResolveDeck(req.Cards); err != nil {
		var deckErr *catalog.InvalidDeckError
		if errors.As(err, &deckErr) {
			writeJSON(w, http.StatusOK, catalog.DeckValidation{Reason: deckErr.Reason})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, catalog.DeckValidation{Valid: true})
}

func (s *Server) deckError(w http.ResponseWriter, err error) {
	var deckErr *catalog.InvalidDeckError
	switch {
	case errors.As(err, &deckErr):
		writeError(w, http.StatusBadRequest, deckErr.Reason)
	case errors.Is(err, deck.ErrInvalidName):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrDeckNotFound):
		writeError(w, http.StatusNotFound, "deck not found")
	case errors.Is(err, repository.ErrDeckExists):
		writeError(w, http.StatusConflict, "a deck with that name already exists")
	default:
		if s.logger != nil {
			s.logger.Error("deck request failed", zap.Error(err))
		}
		writeError(w, http.StatusInternalServerError, "deck storage failed")
	}
}

func (s *Server) handleListDecks(w http.ResponseWriter, r *http.Request) {
	decks, err := s.decks.List(r.Context(), r.PathValue("user"))
	if err != nil {
		s.deckError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decks": decks})
}

func (s *Server) handleGetDeck(w http.ResponseWriter, r *http.Request) {
	saved, err := s.decks.Load(r.Context(), r.PathValue("user"), r.PathValue("name"))
	if err != nil {
		s.deckError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleSaveDeck(w http.ResponseWriter, r *http.Request) {
	var req deckRequest
	if !decodeBody(w, r, &req) {
		return
	}
	saved, err := s.decks.Save(r.Context(), r.PathValue("user"), r.PathValue("name"), req.Cards)
	if err != nil {
		s.deckError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteDeck(w http.ResponseWriter, r *http.Request) {
	if err := s.decks.Delete(r.Context(), r.PathValue("user"), r.PathValue("name")); err != nil {
		s.deckError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRenameDeck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewName string `json:"newName"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	saved, err := s.decks.Rename(r.Context(), r.PathValue("user"), r.PathValue("name"), req.NewName)
	if err != nil {
		s.deckError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"matches": s.lobby.Matches()})
}

func (s *Server) handleRecentResults(w http.ResponseWriter, r *http.Request) {
	limit := defaultResultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive number")
			return
		}
		limit = min(n, maxResultLimit)
	}
	results, err := s.lobby.RecentResults(r.Context(), limit)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to list results", zap.Error(err))
		}
		writeError(w, http.StatusInternalServerError, "failed to list results")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type adminEndRequest struct {
	WinnerSeat *int   `json:"winnerSeat,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

func (s *Server) handleAdminEnd(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.verifyRequest(r); err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, errAdminDisabled) {
			status = http.StatusForbidden
		}
		if s.logger != nil {
			s.logger.Warn("admin request rejected", zap.String("path", r.URL.Path), zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}

	var req adminEndRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	seat := -1
	if req.WinnerSeat != nil {
		seat = *req.WinnerSeat
	}
	matchID := r.PathValue("id")

	err := s.lobby.ForceEnd(r.Context(), matchID, seat, game.EndReason(req.Reason))
	switch {
	case errors.Is(err, lobby.ErrMatchNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, lobby.ErrMatchEnded):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		if s.logger != nil {
			s.logger.Info("match ended by admin", zap.String("match_id", matchID), zap.Int("winner_seat", seat))
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ended", "matchId": matchID})
	}
}
