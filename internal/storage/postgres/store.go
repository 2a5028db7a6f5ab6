package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ammdepth/internal/model"
)

// Store provides Postgres persistence for depth snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertDepthSnapshots inserts or updates snapshots, levels stored as JSONB.
func (s *Store) UpsertDepthSnapshots(ctx context.Context, snapshots []model.DepthData) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snapshot := range snapshots {
		bids, err := json.Marshal(snapshot.Bids)
		if err != nil {
			return fmt.Errorf("marshal bids: %w", err)
		}
		asks, err := json.Marshal(snapshot.Asks)
		if err != nil {
			return fmt.Errorf("marshal asks: %w", err)
		}
		batch.Queue(`
			INSERT INTO depth_snapshots (
				chain_id, pool_address, protocol, block_number, current_price,
				base_symbol, quote_symbol, total_bid_usd, total_ask_usd,
				base_reserve, quote_reserve, bids, asks, computed_at, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now(),now())
			ON CONFLICT (chain_id, pool_address, block_number)
			DO UPDATE SET
				protocol = EXCLUDED.protocol,
				current_price = EXCLUDED.current_price,
				base_symbol = EXCLUDED.base_symbol,
				quote_symbol = EXCLUDED.quote_symbol,
				total_bid_usd = EXCLUDED.total_bid_usd,
				total_ask_usd = EXCLUDED.total_ask_usd,
				base_reserve = EXCLUDED.base_reserve,
				quote_reserve = EXCLUDED.quote_reserve,
				bids = EXCLUDED.bids,
				asks = EXCLUDED.asks,
				computed_at = EXCLUDED.computed_at,
				updated_at = now()
		`,
			int64(snapshot.ChainID),
			snapshot.Pool,
			string(snapshot.Protocol),
			int64(snapshot.Block),
			snapshot.CurrentPrice,
			snapshot.BaseToken.Symbol,
			snapshot.QuoteToken.Symbol,
			snapshot.TotalBidUSD,
			snapshot.TotalAskUSD,
			snapshot.BaseReserve,
			snapshot.QuoteReserve,
			bids,
			asks,
			snapshot.ComputedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snapshots {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
