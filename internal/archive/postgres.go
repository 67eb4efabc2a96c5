package archive

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lockerloot/auction-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed archive.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) InsertRecord(ctx context.Context, r *Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO auction_records (auction_id, venue, status, final_bid, lot_value, profit, rounds, bidders, tactics_used, closed_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7, $8, $9, $10)`,
		r.AuctionID, r.Venue, r.Status,
		r.FinalBid.String(), r.LotValue.String(), r.Profit.String(),
		r.Rounds, r.Bidders, r.TacticsUsed, r.ClosedAt,
	)
	return err
}

func (s *PostgresStore) GetRecord(ctx context.Context, auctionID string) (*Record, error) {
	var r Record
	var finalBid, lotValue, profit string

	err := s.pool.QueryRow(ctx,
		`SELECT auction_id, venue, status,
		        final_bid::TEXT, lot_value::TEXT, profit::TEXT,
		        rounds, bidders, tactics_used, closed_at
		 FROM auction_records WHERE auction_id = $1`, auctionID).
		Scan(&r.AuctionID, &r.Venue, &r.Status,
			&finalBid, &lotValue, &profit,
			&r.Rounds, &r.Bidders, &r.TacticsUsed, &r.ClosedAt)
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", auctionID, err)
	}

	r.FinalBid, _ = decimal.NewFromString(finalBid)
	r.LotValue, _ = decimal.NewFromString(lotValue)
	r.Profit, _ = decimal.NewFromString(profit)

	return &r, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT auction_id, venue, status,
		        final_bid::TEXT, lot_value::TEXT, profit::TEXT,
		        rounds, bidders, tactics_used, closed_at
		 FROM auction_records ORDER BY closed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var finalBid, lotValue, profit string
		if err := rows.Scan(&r.AuctionID, &r.Venue, &r.Status,
			&finalBid, &lotValue, &profit,
			&r.Rounds, &r.Bidders, &r.TacticsUsed, &r.ClosedAt); err != nil {
			return nil, err
		}
		r.FinalBid, _ = decimal.NewFromString(finalBid)
		r.LotValue, _ = decimal.NewFromString(lotValue)
		r.Profit, _ = decimal.NewFromString(profit)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *PostgresStore) PlayerStats(ctx context.Context) (*Stats, error) {
	var st Stats
	var spent, value, profit string

	err := s.pool.QueryRow(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE status = $1),
			COUNT(*) FILTER (WHERE status = $2),
			COUNT(*) FILTER (WHERE status = $3),
			COUNT(*) FILTER (WHERE status = $4),
			COALESCE(SUM(final_bid) FILTER (WHERE status = $1), 0)::TEXT,
			COALESCE(SUM(lot_value) FILTER (WHERE status = $1), 0)::TEXT,
			COALESCE(SUM(profit)    FILTER (WHERE status = $1), 0)::TEXT
		 FROM auction_records`,
		model.StatusWon, model.StatusLost, model.StatusExpired, model.StatusCancelled).
		Scan(&st.Won, &st.Lost, &st.Expired, &st.Cancelled, &spent, &value, &profit)
	if err != nil {
		return nil, fmt.Errorf("player stats: %w", err)
	}

	st.TotalSpent, _ = decimal.NewFromString(spent)
	st.TotalValue, _ = decimal.NewFromString(value)
	st.TotalProfit, _ = decimal.NewFromString(profit)
	if decided := st.Won + st.Lost; decided > 0 {
		st.LossRate = float64(st.Lost) / float64(decided)
	}
	return &st, nil
}
