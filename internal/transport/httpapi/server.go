// Package httpapi is the REST surface of the game: player profiles,
// inventory reads and the economic actions. Realtime chat lives on the
// websocket endpoint, not here.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"basedfrenzy.com/internal/economy"
	"basedfrenzy.com/internal/game"
	"basedfrenzy.com/internal/persistence/store"
	"basedfrenzy.com/internal/web3"
)

type Server struct {
	store    *store.Store
	rail     web3.Rail
	pipeline *economy.Pipeline
	log      *log.Logger
}

func NewServer(st *store.Store, rail web3.Rail, pl *economy.Pipeline, logger *log.Logger) *Server {
	return &Server{store: st, rail: rail, pipeline: pl, log: logger}
}

// Routes registers every REST endpoint on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/player/{address}", s.handleGetPlayer)
	mux.HandleFunc("POST /api/player/register", s.handleRegister)
	mux.HandleFunc("GET /api/inventory/{address}", s.handleGetInventory)
	mux.HandleFunc("POST /api/fishing/catch", s.handleFishingCatch)
	mux.HandleFunc("POST /api/shop/get-purchase-details", s.handlePurchaseDetails)
	mux.HandleFunc("POST /api/shop/buy-items", s.handleBuyItems)
	mux.HandleFunc("POST /api/shop/verify-purchase", s.handleVerifyPurchase)
	mux.HandleFunc("POST /api/shop/sell", s.handleSell)
}

// playerView flattens profile, inventory and live rail balance into the
// shape the frontend consumes.
type playerView struct {
	Address       string          `json:"address"`
	Username      string          `json:"username"`
	LastLogin     time.Time       `json:"lastLogin"`
	Items         []game.Holding  `json:"items"`
	Bait          int64           `json:"bait"`
	FishingRods   int64           `json:"fishingRods"`
	FrenzyBalance decimal.Decimal `json:"frenzyBalance"`
}

func (s *Server) playerView(r *http.Request, p store.Player, l game.Ledger) playerView {
	items := l.Items
	if items == nil {
		items = []game.Holding{}
	}
	return playerView{
		Address:       p.Address,
		Username:      p.Username,
		LastLogin:     p.LastSeen,
		Items:         items,
		Bait:          p.Bait,
		FishingRods:   p.FishingRods,
		FrenzyBalance: s.rail.GetBalance(r.Context(), p.Address),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if !game.ValidAddress(address) {
		writeError(w, http.StatusBadRequest, "Invalid address")
		return
	}

	ctx := r.Context()
	p, err := s.store.GetPlayer(ctx, address)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":             "Player not found",
			"needsRegistration": true,
		})
		return
	}
	if err != nil {
		s.internalError(w, "get player", err)
		return
	}

	now := time.Now()
	if err := s.store.TouchLastSeen(ctx, address, now); err != nil {
		s.internalError(w, "touch last seen", err)
		return
	}
	p.LastSeen = now

	l, err := s.store.EnsureLedger(ctx, address)
	if err != nil {
		s.internalError(w, "ensure ledger", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"player":  s.playerView(r, p, l),
	})
}

type registerRequest struct {
	Address  string `json:"address"`
	Username string `json:"username"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !game.ValidAddress(req.Address) {
		writeError(w, http.StatusBadRequest, "Invalid address")
		return
	}
	if !game.ValidUsername(req.Username) {
		writeError(w, http.StatusBadRequest, "Username must be 3-20 characters (letters, numbers, _ or -)")
		return
	}

	ctx := r.Context()
	now := time.Now()

	// Existing address: refresh lastSeen, return the existing player.
	if p, err := s.store.GetPlayer(ctx, req.Address); err == nil {
		if err := s.store.TouchLastSeen(ctx, req.Address, now); err != nil {
			s.internalError(w, "touch last seen", err)
			return
		}
		p.LastSeen = now
		l, err := s.store.EnsureLedger(ctx, req.Address)
		if err != nil {
			s.internalError(w, "ensure ledger", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"player":  s.playerView(r, p, l),
		})
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		s.internalError(w, "get player", err)
		return
	}

	p := store.Player{
		Address:  req.Address,
		Username: req.Username,
		LastSeen: now,
	}
	if err := s.store.CreatePlayer(ctx, p); errors.Is(err, store.ErrExists) {
		// Lost a registration race.
		writeError(w, http.StatusBadRequest, "Address already registered")
		return
	} else if err != nil {
		s.internalError(w, "create player", err)
		return
	}
	l, err := s.store.EnsureLedger(ctx, req.Address)
	if err != nil {
		s.internalError(w, "ensure ledger", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Player registered successfully",
		"player":  s.playerView(r, p, l),
	})
}

func (s *Server) handleGetInventory(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if !game.ValidAddress(address) {
		writeError(w, http.StatusBadRequest, "Invalid address")
		return
	}

	ctx := r.Context()
	p, err := s.store.GetPlayer(ctx, address)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Player not found.")
		return
	}
	if err != nil {
		s.internalError(w, "get player", err)
		return
	}
	l, err := s.store.GetLedger(ctx, address)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Player not found.")
		return
	}
	if err != nil {
		s.internalError(w, "get ledger", err)
		return
	}

	items := l.Items
	if items == nil {
		items = []game.Holding{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":       items,
		"bait":        p.Bait,
		"fishingRods": p.FishingRods,
	})
}

type fishingRequest struct {
	Address string `json:"address"`
}

func (s *Server) handleFishingCatch(w http.ResponseWriter, r *http.Request) {
	var req fishingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := s.pipeline.Fishing(r.Context(), req.Address)
	if err != nil {
		s.pipelineError(w, "fishing", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type quoteRequest struct {
	Address string             `json:"address"`
	Cart    []economy.CartLine `json:"cart"`
}

func (s *Server) handlePurchaseDetails(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	q, err := s.pipeline.QuotePurchase(r.Context(), req.Address, req.Cart)
	if err != nil {
		s.pipelineError(w, "quote purchase", err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// handleBuyItems is the retired single-phase purchase path; clients must
// quote first and verify the paid transaction.
func (s *Server) handleBuyItems(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusBadRequest,
		"Direct purchase is disabled. Use /api/shop/get-purchase-details and /api/shop/verify-purchase.")
}

type verifyRequest struct {
	Address string             `json:"address"`
	TxHash  string             `json:"txHash"`
	Cart    []economy.CartLine `json:"cart"`
}

func (s *Server) handleVerifyPurchase(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := s.pipeline.VerifyPurchase(r.Context(), req.Address, req.TxHash, req.Cart)
	if err != nil {
		s.pipelineError(w, "verify purchase", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type sellRequest struct {
	Address       string          `json:"address"`
	ItemID        string          `json:"itemId"`
	Quantity      int64           `json:"quantity"`
	FrenzyBalance decimal.Decimal `json:"frenzyBalance"`
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := s.pipeline.Sell(r.Context(), req.Address, req.ItemID, req.Quantity, req.FrenzyBalance)
	if err != nil {
		s.pipelineError(w, "sell", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// pipelineError maps economy sentinels onto HTTP statuses.
func (s *Server) pipelineError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, economy.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, economy.ErrNotFound):
		writeError(w, http.StatusNotFound, "Player not found")
	case errors.Is(err, economy.ErrUpstream):
		s.log.Printf("httpapi: %s: %v", op, err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.internalError(w, op, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.log.Printf("httpapi: %s: %v", op, err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
