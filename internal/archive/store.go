// Package archive defines persistence for closed auctions. Implementations
// include PostgreSQL (source of truth), Redis (read-through cache), and
// in-memory (for testing). Live auctions never touch the archive; only
// terminal snapshots are recorded.
package archive

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lockerloot/auction-engine/internal/model"
)

// Record is the immutable row written once an auction reaches a terminal
// status. LotValue and Profit are only meaningful for won auctions; both are
// zero otherwise (the lot stays hidden on a loss).
type Record struct {
	AuctionID   string          `json:"auction_id"`
	Venue       string          `json:"venue"`
	Status      model.Status    `json:"status"`
	FinalBid    decimal.Decimal `json:"final_bid"`
	LotValue    decimal.Decimal `json:"lot_value"`
	Profit      decimal.Decimal `json:"profit"`
	Rounds      int             `json:"rounds"`
	Bidders     int             `json:"bidders"`
	TacticsUsed int             `json:"tactics_used"`
	ClosedAt    time.Time       `json:"closed_at"`
}

// Stats aggregates the player's archived outcomes. LossRate counts lost
// auctions over decided ones (won + lost); expired and cancelled auctions
// don't decide anything.
type Stats struct {
	Won         int             `json:"won"`
	Lost        int             `json:"lost"`
	Expired     int             `json:"expired"`
	Cancelled   int             `json:"cancelled"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
	TotalValue  decimal.Decimal `json:"total_value"`
	TotalProfit decimal.Decimal `json:"total_profit"`
	LossRate    float64         `json:"loss_rate"`
}

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// InsertRecord appends an immutable closed-auction record.
	InsertRecord(ctx context.Context, r *Record) error

	// GetRecord retrieves a record by auction ID.
	GetRecord(ctx context.Context, auctionID string) (*Record, error)

	// ListRecords returns the most recent records, newest first.
	ListRecords(ctx context.Context, limit int) ([]Record, error)

	// PlayerStats aggregates all records into player statistics.
	PlayerStats(ctx context.Context) (*Stats, error)
}

// NewRecord derives an archive record from a terminal auction snapshot.
func NewRecord(a *model.Auction) *Record {
	r := &Record{
		AuctionID: a.ID,
		Venue:     a.Venue,
		Status:    a.Status,
		FinalBid:  a.CurrentBid,
		Rounds:    a.Round,
		Bidders:   len(a.Bidders),
	}
	if a.ClosedAt != nil {
		r.ClosedAt = *a.ClosedAt
	} else {
		r.ClosedAt = time.Now().UTC()
	}

	used := 0
	budget := a.Budget
	// Missing uses against the starting allowance were spent.
	used += countSpent(budget.Allowance, budget.IntimidateLeft)
	used += countSpent(budget.Allowance, budget.BluffLeft)
	used += countSpent(budget.Allowance, budget.SniperLeft)
	r.TacticsUsed = used

	if a.Status == model.StatusWon {
		r.LotValue = a.Lot.HiddenTotalValue
		r.Profit = r.LotValue.Sub(r.FinalBid).Add(a.FeeRefund).Add(a.BonusReward)
	}
	return r
}

func countSpent(allowance, left int) int {
	if left < 0 {
		left = 0
	}
	if left >= allowance {
		return 0
	}
	return allowance - left
}

// computeStats folds records into Stats. Shared by the memory store and
// tests; the Postgres store aggregates in SQL.
func computeStats(records []Record) *Stats {
	st := &Stats{}
	for _, r := range records {
		switch r.Status {
		case model.StatusWon:
			st.Won++
			st.TotalSpent = st.TotalSpent.Add(r.FinalBid)
			st.TotalValue = st.TotalValue.Add(r.LotValue)
			st.TotalProfit = st.TotalProfit.Add(r.Profit)
		case model.StatusLost:
			st.Lost++
		case model.StatusExpired:
			st.Expired++
		case model.StatusCancelled:
			st.Cancelled++
		}
	}
	if decided := st.Won + st.Lost; decided > 0 {
		st.LossRate = float64(st.Lost) / float64(decided)
	}
	return st
}
