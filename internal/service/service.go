// Package service provides the HTTP handlers and orchestration for generating
// auctions, driving rounds, resolving player actions, and querying history.
//
// All monetary values use shopspring/decimal — never float64 for money.
package service

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lockerloot/auction-engine/internal/archive"
	"github.com/lockerloot/auction-engine/internal/balance"
	"github.com/lockerloot/auction-engine/internal/engine"
	"github.com/lockerloot/auction-engine/internal/lot"
	"github.com/lockerloot/auction-engine/internal/metrics"
	"github.com/lockerloot/auction-engine/internal/model"
	"github.com/lockerloot/auction-engine/internal/rng"
	"github.com/lockerloot/auction-engine/internal/tactics"
)

// Service orchestrates live auctions. Live state is held in an in-process
// registry; only terminal snapshots reach the archive. A single mutex
// serializes all state transitions (single-instance). For horizontal scaling,
// move the registry to a shared store with optimistic concurrency.
type Service struct {
	generator *lot.Generator
	engine    *engine.Engine
	archive   archive.Store
	src       rng.Source

	mu       sync.Mutex
	auctions map[string]*model.Auction

	wsHub *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new auction service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(gen *lot.Generator, eng *engine.Engine, st archive.Store, src rng.Source, hub *WSHub) *Service {
	return &Service{
		generator: gen,
		engine:    eng,
		archive:   st,
		src:       src,
		auctions:  make(map[string]*model.Auction),
		wsHub:     hub,
	}
}

// --- Request/Response types ---

// CreateAuctionRequest is the JSON body for auction generation.
type CreateAuctionRequest struct {
	Venue        string  `json:"venue"`
	Luck         float64 `json:"luck"` // player luck scalar; 0 = neutral
	BiasCategory string  `json:"bias_category,omitempty"`
	BiasBoost    int     `json:"bias_boost,omitempty"`
}

// PlaceBidRequest is the JSON body for POST .../bid.
type PlaceBidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// TacticRequest is the JSON body for POST .../tactics.
type TacticRequest struct {
	Kind model.TacticKind `json:"kind"`
}

// TacticResponse pairs the updated auction view with bidder reactions.
type TacticResponse struct {
	Auction   auctionView        `json:"auction"`
	Reactions []tactics.Reaction `json:"reactions"`
}

// --- Redacted views ---
//
// The auction struct hides the lot via its JSON tags, but bidder ceilings
// need per-bidder redaction: MaxBid is ground truth the player must not see
// unless an overheard-budget event revealed it.

type bidderView struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Personality     model.Personality `json:"personality"`
	CurrentBid      decimal.Decimal   `json:"current_bid"`
	DroppedOut      bool              `json:"dropped_out"`
	BidsPlaced      int               `json:"bids_placed"`
	MaxBid          *decimal.Decimal  `json:"max_bid,omitempty"` // only when revealed
	CeilingRevealed bool              `json:"ceiling_revealed"`
}

type auctionView struct {
	ID            string             `json:"id"`
	Venue         string             `json:"venue"`
	VenueTier     int                `json:"venue_tier"`
	Bidders       []bidderView       `json:"bidders"`
	CurrentBid    decimal.Decimal    `json:"current_bid"`
	CurrentBidder string             `json:"current_bidder"`
	BidIncrement  decimal.Decimal    `json:"bid_increment"`
	MinimumBid    decimal.Decimal    `json:"minimum_bid"`
	NextMinBid    decimal.Decimal    `json:"next_min_bid"`
	Round         int                `json:"round"`
	Phase         model.Phase        `json:"phase"`
	PhaseTimer    int                `json:"phase_timer"`
	Status        model.Status       `json:"status"`
	Events        []model.LotEvent   `json:"events"` // applied events only
	Budget        model.TacticBudget `json:"budget"`
	FeeRefund     decimal.Decimal    `json:"fee_refund"`
	BonusReward   decimal.Decimal    `json:"bonus_reward"`
}

func newAuctionView(a *model.Auction) auctionView {
	bidders := make([]bidderView, 0, len(a.Bidders))
	for _, b := range a.Bidders {
		bv := bidderView{
			ID:              b.ID,
			Name:            b.Name,
			Personality:     b.Personality,
			CurrentBid:      b.CurrentBid,
			DroppedOut:      b.DroppedOut,
			BidsPlaced:      b.BidsPlaced,
			CeilingRevealed: b.CeilingRevealed,
		}
		if b.CeilingRevealed {
			max := b.MaxBid
			bv.MaxBid = &max
		}
		bidders = append(bidders, bv)
	}

	// Unapplied events are future surprises; only applied ones are public.
	var events []model.LotEvent
	for _, ev := range a.Events {
		if ev.Applied {
			events = append(events, ev)
		}
	}
	if events == nil {
		events = []model.LotEvent{}
	}

	return auctionView{
		ID:            a.ID,
		Venue:         a.Venue,
		VenueTier:     a.VenueTier,
		Bidders:       bidders,
		CurrentBid:    a.CurrentBid,
		CurrentBidder: a.CurrentBidder,
		BidIncrement:  a.BidIncrement,
		MinimumBid:    a.MinimumBid,
		NextMinBid:    a.NextMinBid(),
		Round:         a.Round,
		Phase:         a.Phase,
		PhaseTimer:    a.PhaseTimer,
		Status:        a.Status,
		Events:        events,
		Budget:        a.Budget,
		FeeRefund:     a.FeeRefund,
		BonusReward:   a.BonusReward,
	}
}

// --- HTTP Handlers ---

// CreateAuction handles POST /api/v1/auctions
func (s *Service) CreateAuction(w http.ResponseWriter, r *http.Request) {
	var req CreateAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	venue, ok := balance.VenueByName(req.Venue)
	if !ok {
		writeError(w, "unknown venue: "+req.Venue, http.StatusBadRequest)
		return
	}

	var bias *lot.CategoryBias
	if req.BiasCategory != "" {
		bias = &lot.CategoryBias{Category: req.BiasCategory, Boost: req.BiasBoost}
	}

	a, err := s.generator.Generate(venue, req.Luck, bias, s.src)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	s.auctions[a.ID] = a
	s.mu.Unlock()

	metrics.AuctionsGenerated.WithLabelValues(a.Venue).Inc()
	metrics.ActiveAuctions.Inc()
	for _, ev := range a.Events {
		metrics.LotEventsFired.WithLabelValues(string(ev.Timing)).Inc()
	}

	slog.Info("auction generated",
		"id", a.ID,
		"venue", a.Venue,
		"items", len(a.Lot.Items),
		"bidders", len(a.Bidders),
		"events", len(a.Events),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(newAuctionView(a))
}

// ListAuctions handles GET /api/v1/auctions
func (s *Service) ListAuctions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	views := make([]auctionView, 0, len(s.auctions))
	for _, a := range s.auctions {
		views = append(views, newAuctionView(a))
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}

// GetAuction handles GET /api/v1/auctions/{auctionID}
func (s *Service) GetAuction(w http.ResponseWriter, r *http.Request) {
	a, ok := s.lookup(chi.URLParam(r, "auctionID"))
	if !ok {
		writeError(w, "auction not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(newAuctionView(a))
}

// ListVenues handles GET /api/v1/venues
func (s *Service) ListVenues(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(balance.StockVenues())
}

// EnterAuction handles POST /api/v1/auctions/{auctionID}/enter
func (s *Service) EnterAuction(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[chi.URLParam(r, "auctionID")]
	if !ok {
		writeError(w, "auction not found", http.StatusNotFound)
		return
	}
	if a.Status != model.StatusAvailable {
		writeError(w, "auction already entered", http.StatusConflict)
		return
	}

	next := s.engine.Enter(a)
	s.auctions[next.ID] = next
	s.afterTransitionLocked(r, next)

	slog.Info("auction entered", "id", next.ID, "status", next.Status, "bidders", len(next.ActiveBidders()))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(newAuctionView(next))
}

// AdvanceRound handles POST /api/v1/auctions/{auctionID}/advance
func (s *Service) AdvanceRound(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[chi.URLParam(r, "auctionID")]
	if !ok {
		writeError(w, "auction not found", http.StatusNotFound)
		return
	}
	if a.Status != model.StatusActive {
		writeError(w, "auction is not active", http.StatusConflict)
		return
	}

	next := s.engine.AdvanceRound(a)
	s.auctions[next.ID] = next
	s.afterTransitionLocked(r, next)

	slog.Info("round resolved",
		"id", next.ID,
		"round", next.Round,
		"phase", next.Phase,
		"bid", next.CurrentBid.String(),
		"holder", next.CurrentBidder,
		"status", next.Status,
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(newAuctionView(next))
}

// PlaceBid handles POST /api/v1/auctions/{auctionID}/bid
func (s *Service) PlaceBid(w http.ResponseWriter, r *http.Request) {
	var req PlaceBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[chi.URLParam(r, "auctionID")]
	if !ok {
		writeError(w, "auction not found", http.StatusNotFound)
		return
	}

	next, err := s.engine.PlaceBid(a, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrBidTooLow):
			writeError(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, engine.ErrNotActive):
			writeError(w, err.Error(), http.StatusConflict)
		default:
			writeError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	s.auctions[next.ID] = next
	s.afterTransitionLocked(r, next)

	slog.Info("player bid placed", "id", next.ID, "amount", req.Amount.String(), "round", next.Round)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(newAuctionView(next))
}

// ApplyTactic handles POST /api/v1/auctions/{auctionID}/tactics
func (s *Service) ApplyTactic(w http.ResponseWriter, r *http.Request) {
	var req TacticRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[chi.URLParam(r, "auctionID")]
	if !ok {
		writeError(w, "auction not found", http.StatusNotFound)
		return
	}

	next, reactions, err := s.engine.ApplyTactic(a, req.Kind)
	if err != nil {
		metrics.TacticUses.WithLabelValues(string(req.Kind), "rejected").Inc()
		switch {
		case errors.Is(err, engine.ErrNotActive):
			writeError(w, err.Error(), http.StatusConflict)
		case errors.Is(err, engine.ErrTacticUnavailable):
			writeError(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			writeError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	s.auctions[next.ID] = next
	s.afterTransitionLocked(r, next)

	metrics.TacticUses.WithLabelValues(string(req.Kind), "applied").Inc()
	slog.Info("tactic applied",
		"id", next.ID,
		"kind", req.Kind,
		"reactions", len(reactions),
		"bid", next.CurrentBid.String(),
		"holder", next.CurrentBidder,
	)

	if reactions == nil {
		reactions = []tactics.Reaction{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TacticResponse{Auction: newAuctionView(next), Reactions: reactions})
}

// GetLot handles GET /api/v1/auctions/{auctionID}/lot
// The lot stays hidden until the auction is won.
func (s *Service) GetLot(w http.ResponseWriter, r *http.Request) {
	a, ok := s.lookup(chi.URLParam(r, "auctionID"))
	if !ok {
		writeError(w, "auction not found", http.StatusNotFound)
		return
	}

	lot, revealed := a.RevealedLot()
	if !revealed {
		writeError(w, "lot is not revealed", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lot)
}

// GetTell handles GET /api/v1/auctions/{auctionID}/bidders/{bidderID}/tell
func (s *Service) GetTell(w http.ResponseWriter, r *http.Request) {
	a, ok := s.lookup(chi.URLParam(r, "auctionID"))
	if !ok {
		writeError(w, "auction not found", http.StatusNotFound)
		return
	}

	tell, ok := s.engine.Tell(a, chi.URLParam(r, "bidderID"))
	if !ok {
		writeError(w, "bidder not found or dropped out", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tell)
}

// GetHistory handles GET /api/v1/history
// Returns archived auction records, newest first. ?limit=N caps the page.
func (s *Service) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := s.archive.ListRecords(r.Context(), limit)
	if err != nil {
		writeError(w, "failed to list history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []archive.Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// GetStats handles GET /api/v1/stats
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.archive.PlayerStats(r.Context())
	if err != nil {
		writeError(w, "failed to compute stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// --- internals ---

func (s *Service) lookup(id string) (*model.Auction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auctions[id]
	return a, ok
}

// afterTransitionLocked archives and broadcasts terminal transitions and
// broadcasts live round updates. Caller holds s.mu.
func (s *Service) afterTransitionLocked(r *http.Request, a *model.Auction) {
	msgType := "round_resolved"
	if a.Status.Terminal() {
		msgType = "auction_closed"
		metrics.AuctionsClosed.WithLabelValues(string(a.Status)).Inc()
		metrics.AuctionRounds.Observe(float64(a.Round))
		metrics.ActiveAuctions.Dec()

		rec := archive.NewRecord(a)
		if err := s.archive.InsertRecord(r.Context(), rec); err != nil {
			slog.Error("archive insert failed", "id", a.ID, "err", err)
		}

		slog.Info("auction closed",
			"id", a.ID,
			"status", a.Status,
			"final_bid", a.CurrentBid.String(),
			"rounds", a.Round,
		)
	}

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:          msgType,
			AuctionID:     a.ID,
			Venue:         a.Venue,
			Round:         a.Round,
			Phase:         string(a.Phase),
			Status:        string(a.Status),
			CurrentBid:    a.CurrentBid.String(),
			CurrentBidder: a.CurrentBidder,
		})
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
