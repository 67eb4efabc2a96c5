package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/lockerloot/auction-engine/internal/archive"
	"github.com/lockerloot/auction-engine/internal/balance"
	"github.com/lockerloot/auction-engine/internal/engine"
	"github.com/lockerloot/auction-engine/internal/lot"
	"github.com/lockerloot/auction-engine/internal/model"
	"github.com/lockerloot/auction-engine/internal/rng"
	"github.com/lockerloot/auction-engine/internal/service"
)

// newTestEnv creates a Service with an in-memory archive and chi router.
func newTestEnv(t *testing.T, seed int64) (*archive.MemoryStore, chi.Router) {
	t.Helper()
	globals := balance.DefaultGlobals()
	src := rng.New(seed)
	ms := archive.NewMemoryStore()
	svc := service.NewService(
		lot.NewGenerator(nil, globals, nil),
		engine.New(globals, nil, src),
		ms, src, nil,
	)

	r := chi.NewRouter()
	r.Post("/api/v1/auctions", svc.CreateAuction)
	r.Get("/api/v1/auctions", svc.ListAuctions)
	r.Get("/api/v1/auctions/{auctionID}", svc.GetAuction)
	r.Post("/api/v1/auctions/{auctionID}/enter", svc.EnterAuction)
	r.Post("/api/v1/auctions/{auctionID}/advance", svc.AdvanceRound)
	r.Post("/api/v1/auctions/{auctionID}/bid", svc.PlaceBid)
	r.Post("/api/v1/auctions/{auctionID}/tactics", svc.ApplyTactic)
	r.Get("/api/v1/auctions/{auctionID}/lot", svc.GetLot)
	r.Get("/api/v1/auctions/{auctionID}/bidders/{bidderID}/tell", svc.GetTell)
	r.Get("/api/v1/venues", svc.ListVenues)
	r.Get("/api/v1/history", svc.GetHistory)
	r.Get("/api/v1/stats", svc.GetStats)

	return ms, r
}

func do(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createAuction(t *testing.T, router chi.Router) map[string]any {
	t.Helper()
	w := do(t, router, "POST", "/api/v1/auctions",
		service.CreateAuctionRequest{Venue: "suburban-storage"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var view map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return view
}

// --- Creation tests ---

func TestCreateAuction_UnknownVenue(t *testing.T) {
	_, router := newTestEnv(t, 1)
	w := do(t, router, "POST", "/api/v1/auctions",
		service.CreateAuctionRequest{Venue: "atlantis"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestCreateAuction_HidesGroundTruth(t *testing.T) {
	_, router := newTestEnv(t, 2)

	for i := 0; i < 20; i++ {
		w := do(t, router, "POST", "/api/v1/auctions",
			service.CreateAuctionRequest{Venue: "suburban-storage"})
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", w.Code)
		}
		body := w.Body.String()
		if strings.Contains(body, "hidden_total_value") {
			t.Fatal("lot contents leaked in creation response")
		}
		if strings.Contains(body, "max_bid") {
			t.Fatal("bidder ceiling leaked without a reveal event")
		}
	}
}

func TestCreateAuction_InitialView(t *testing.T) {
	_, router := newTestEnv(t, 3)
	view := createAuction(t, router)

	if view["status"] != string(model.StatusAvailable) {
		t.Errorf("expected available, got %v", view["status"])
	}
	if view["phase"] != string(model.PhaseBidding) {
		t.Errorf("expected bidding, got %v", view["phase"])
	}
	if view["venue"] != "suburban-storage" {
		t.Errorf("unexpected venue %v", view["venue"])
	}
}

// --- Lifecycle tests ---

func TestEnter_Twice(t *testing.T) {
	_, router := newTestEnv(t, 4)
	view := createAuction(t, router)
	id := view["id"].(string)

	w := do(t, router, "POST", "/api/v1/auctions/"+id+"/enter", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = do(t, router, "POST", "/api/v1/auctions/"+id+"/enter", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("second enter should 409, got %d", w.Code)
	}
}

func TestLot_HiddenUntilWon(t *testing.T) {
	_, router := newTestEnv(t, 5)
	view := createAuction(t, router)
	id := view["id"].(string)

	w := do(t, router, "GET", "/api/v1/auctions/"+id+"/lot", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("unrevealed lot should 409, got %d", w.Code)
	}
}

func TestPlaceBid_TooLow(t *testing.T) {
	_, router := newTestEnv(t, 6)
	view := createAuction(t, router)
	id := view["id"].(string)
	do(t, router, "POST", "/api/v1/auctions/"+id+"/enter", nil)

	w := do(t, router, "POST", "/api/v1/auctions/"+id+"/bid",
		map[string]string{"amount": "1"})
	// A won-on-entry auction rejects with conflict instead; both are rejections.
	if w.Code != http.StatusUnprocessableEntity && w.Code != http.StatusConflict {
		t.Errorf("lowball bid should be rejected, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTactic_UnknownKind(t *testing.T) {
	_, router := newTestEnv(t, 7)
	view := createAuction(t, router)
	id := view["id"].(string)
	do(t, router, "POST", "/api/v1/auctions/"+id+"/enter", nil)

	w := do(t, router, "POST", "/api/v1/auctions/"+id+"/tactics",
		service.TacticRequest{Kind: model.TacticKind("jedi_mind_trick")})
	if w.Code != http.StatusUnprocessableEntity && w.Code != http.StatusConflict {
		t.Errorf("unknown tactic should be rejected, got %d", w.Code)
	}
}

func TestGetTell_UnknownBidder(t *testing.T) {
	_, router := newTestEnv(t, 8)
	view := createAuction(t, router)
	id := view["id"].(string)

	w := do(t, router, "GET", "/api/v1/auctions/"+id+"/bidders/nobody/tell", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown bidder, got %d", w.Code)
	}
}

func TestFullPlayout_ArchivesTerminalAuction(t *testing.T) {
	ms, router := newTestEnv(t, 9)
	view := createAuction(t, router)
	id := view["id"].(string)

	w := do(t, router, "POST", "/api/v1/auctions/"+id+"/enter", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("enter: %d", w.Code)
	}
	var cur map[string]any
	json.Unmarshal(w.Body.Bytes(), &cur)

	for i := 0; i < 100 && cur["status"] == string(model.StatusActive); i++ {
		w = do(t, router, "POST", "/api/v1/auctions/"+id+"/advance", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("advance: %d: %s", w.Code, w.Body.String())
		}
		json.Unmarshal(w.Body.Bytes(), &cur)
	}

	status := model.Status(cur["status"].(string))
	if !status.Terminal() {
		t.Fatalf("auction did not terminate: %v", cur["status"])
	}

	// Terminal close must land in the archive.
	rec, err := ms.GetRecord(context.Background(), id)
	if err != nil {
		t.Fatalf("terminal auction not archived: %v", err)
	}
	if rec.Status != status {
		t.Errorf("archived status %s, view status %s", rec.Status, status)
	}

	// Lot endpoint agrees with the outcome.
	w = do(t, router, "GET", "/api/v1/auctions/"+id+"/lot", nil)
	if status == model.StatusWon && w.Code != http.StatusOK {
		t.Errorf("won auction should reveal the lot, got %d", w.Code)
	}
	if status != model.StatusWon && w.Code == http.StatusOK {
		t.Error("non-won auction must not reveal the lot")
	}

	// History and stats reflect the record.
	w = do(t, router, "GET", "/api/v1/history", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history: %d", w.Code)
	}
	var records []archive.Record
	json.Unmarshal(w.Body.Bytes(), &records)
	if len(records) != 1 {
		t.Errorf("expected 1 archived record, got %d", len(records))
	}

	w = do(t, router, "GET", "/api/v1/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: %d", w.Code)
	}
	var stats archive.Stats
	json.Unmarshal(w.Body.Bytes(), &stats)
	if stats.Won+stats.Lost+stats.Expired+stats.Cancelled != 1 {
		t.Errorf("stats do not account for the closed auction: %+v", stats)
	}
}

func TestListVenues(t *testing.T) {
	_, router := newTestEnv(t, 10)
	w := do(t, router, "GET", "/api/v1/venues", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var venues []balance.Venue
	if err := json.Unmarshal(w.Body.Bytes(), &venues); err != nil {
		t.Fatalf("decode venues: %v", err)
	}
	if len(venues) != 4 {
		t.Errorf("expected 4 stock venues, got %d", len(venues))
	}
}

func TestGetAuction_NotFound(t *testing.T) {
	_, router := newTestEnv(t, 11)
	w := do(t, router, "GET", "/api/v1/auctions/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
