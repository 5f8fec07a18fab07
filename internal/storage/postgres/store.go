package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"yieldswap/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS pairs (
	pair_address TEXT PRIMARY KEY,
	factory TEXT NOT NULL,
	token0 TEXT NOT NULL,
	token1 TEXT NOT NULL,
	stable_swap_mode BOOLEAN NOT NULL,
	fee_bps0 INTEGER NOT NULL,
	fee_bps1 INTEGER NOT NULL,
	vault0 TEXT NOT NULL,
	vault1 TEXT NOT NULL,
	pair_created_at BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS pair_snapshots (
	pair_address TEXT NOT NULL,
	snapshot_ts BIGINT NOT NULL,
	reserve0 NUMERIC NOT NULL,
	reserve1 NUMERIC NOT NULL,
	lp_total_supply NUMERIC NOT NULL,
	protocol_fee0 NUMERIC NOT NULL,
	protocol_fee1 NUMERIC NOT NULL,
	current_epoch BIGINT NOT NULL,
	last_harvest_ts BIGINT NOT NULL,
	strategies JSONB NOT NULL,
	PRIMARY KEY (pair_address, snapshot_ts)
);
CREATE TABLE IF NOT EXISTS harvests (
	pair_address TEXT NOT NULL,
	epoch BIGINT NOT NULL,
	yield0 NUMERIC NOT NULL,
	yield1 NUMERIC NOT NULL,
	harvest_ts BIGINT NOT NULL,
	PRIMARY KEY (pair_address, epoch)
);
CREATE TABLE IF NOT EXISTS pair_logs (
	chain_id BIGINT NOT NULL,
	block_number BIGINT NOT NULL,
	tx_hash TEXT NOT NULL,
	log_index BIGINT NOT NULL,
	address TEXT NOT NULL,
	topics TEXT[] NOT NULL,
	data TEXT NOT NULL,
	block_ts BIGINT NOT NULL,
	PRIMARY KEY (chain_id, tx_hash, log_index)
);
CREATE TABLE IF NOT EXISTS pair_window_metrics (
	chain_id BIGINT NOT NULL,
	pair_address TEXT NOT NULL,
	window_size_secs BIGINT NOT NULL,
	window_start TIMESTAMPTZ NOT NULL,
	window_end TIMESTAMPTZ NOT NULL,
	swap_count BIGINT NOT NULL,
	deposit_count BIGINT NOT NULL,
	withdraw_count BIGINT NOT NULL,
	harvest_count BIGINT NOT NULL,
	volume0 NUMERIC NOT NULL,
	volume1 NUMERIC NOT NULL,
	protocol_fee0 NUMERIC NOT NULL,
	protocol_fee1 NUMERIC NOT NULL,
	yield0 NUMERIC NOT NULL,
	yield1 NUMERIC NOT NULL,
	reserve0 NUMERIC,
	reserve1 NUMERIC,
	fee_rate0 NUMERIC,
	fee_rate1 NUMERIC,
	yield_apr0 NUMERIC,
	yield_apr1 NUMERIC,
	last_block BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, pair_address, window_size_secs, window_start)
);
CREATE TABLE IF NOT EXISTS run_state (
	name TEXT PRIMARY KEY,
	cursor BIGINT NOT NULL,
	pairs JSONB,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store persists pairs, snapshots, harvests and logs in Postgres.
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

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// UpsertPairs records the immutable parameters of each pair.
func (s *Store) UpsertPairs(ctx context.Context, pairs []model.PairSnapshot) error {
	if len(pairs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range pairs {
		var vault0, vault1 string
		if len(p.Strategies) == 2 {
			vault0, vault1 = p.Strategies[0].Vault, p.Strategies[1].Vault
		}
		batch.Queue(`
			INSERT INTO pairs (
				pair_address, factory, token0, token1, stable_swap_mode, fee_bps0, fee_bps1,
				vault0, vault1, pair_created_at, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
			ON CONFLICT (pair_address)
			DO UPDATE SET
				fee_bps0 = EXCLUDED.fee_bps0,
				fee_bps1 = EXCLUDED.fee_bps1,
				updated_at = now()
		`,
			p.Address,
			p.Factory,
			p.Token0,
			p.Token1,
			p.StableSwapMode,
			int32(p.FeeBps0),
			int32(p.FeeBps1),
			vault0,
			vault1,
			int64(p.CreatedAt),
		)
	}
	return sendBatch(ctx, s.pool, batch, len(pairs))
}

// InsertSnapshots stores pair state at snapshot time; a repeated
// snapshot for the same pair and second overwrites the earlier one.
func (s *Store) InsertSnapshots(ctx context.Context, snaps []model.PairSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range snaps {
		strategies, err := json.Marshal(p.Strategies)
		if err != nil {
			return fmt.Errorf("marshal strategies: %w", err)
		}
		batch.Queue(`
			INSERT INTO pair_snapshots (
				pair_address, snapshot_ts, reserve0, reserve1, lp_total_supply,
				protocol_fee0, protocol_fee1, current_epoch, last_harvest_ts, strategies
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (pair_address, snapshot_ts)
			DO UPDATE SET
				reserve0 = EXCLUDED.reserve0,
				reserve1 = EXCLUDED.reserve1,
				lp_total_supply = EXCLUDED.lp_total_supply,
				protocol_fee0 = EXCLUDED.protocol_fee0,
				protocol_fee1 = EXCLUDED.protocol_fee1,
				current_epoch = EXCLUDED.current_epoch,
				last_harvest_ts = EXCLUDED.last_harvest_ts,
				strategies = EXCLUDED.strategies
		`,
			p.Address,
			int64(p.Timestamp),
			p.Reserve0,
			p.Reserve1,
			p.LpTotalSupply,
			p.ProtocolFee0,
			p.ProtocolFee1,
			int64(p.CurrentEpoch),
			int64(p.LastHarvestTs),
			strategies,
		)
	}
	return sendBatch(ctx, s.pool, batch, len(snaps))
}

// InsertHarvests records harvest history. Each pair harvests an epoch at most once.
func (s *Store) InsertHarvests(ctx context.Context, harvests []model.HarvestRecord) error {
	if len(harvests) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, h := range harvests {
		batch.Queue(`
			INSERT INTO harvests (pair_address, epoch, yield0, yield1, harvest_ts)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (pair_address, epoch) DO NOTHING
		`, h.Pair, int64(h.Epoch), h.Yield0, h.Yield1, int64(h.Timestamp))
	}
	return sendBatch(ctx, s.pool, batch, len(harvests))
}

// PutLogBatch stores raw pair logs, ignoring ones already seen.
func (s *Store) PutLogBatch(logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, l := range logs {
		batch.Queue(`
			INSERT INTO pair_logs (chain_id, block_number, tx_hash, log_index, address, topics, data, block_ts)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (chain_id, tx_hash, log_index) DO NOTHING
		`, int64(l.ChainID), int64(l.BlockNumber), l.TxHash, int64(l.LogIndex), l.Address, l.Topics, l.Data, int64(l.Timestamp))
	}
	return sendBatch(context.Background(), s.pool, batch, len(logs))
}

// PutWindowMetrics writes aggregated windows; a recomputed window replaces the old row.
func (s *Store) PutWindowMetrics(ctx context.Context, metrics []model.PairWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pair_window_metrics (
				chain_id, pair_address, window_size_secs, window_start, window_end,
				swap_count, deposit_count, withdraw_count, harvest_count,
				volume0, volume1, protocol_fee0, protocol_fee1, yield0, yield1,
				reserve0, reserve1, fee_rate0, fee_rate1, yield_apr0, yield_apr1,
				last_block, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
				$16, $17, $18, $19, $20, $21, $22, now())
			ON CONFLICT (chain_id, pair_address, window_size_secs, window_start)
			DO UPDATE SET
				window_end = EXCLUDED.window_end,
				swap_count = EXCLUDED.swap_count,
				deposit_count = EXCLUDED.deposit_count,
				withdraw_count = EXCLUDED.withdraw_count,
				harvest_count = EXCLUDED.harvest_count,
				volume0 = EXCLUDED.volume0,
				volume1 = EXCLUDED.volume1,
				protocol_fee0 = EXCLUDED.protocol_fee0,
				protocol_fee1 = EXCLUDED.protocol_fee1,
				yield0 = EXCLUDED.yield0,
				yield1 = EXCLUDED.yield1,
				reserve0 = EXCLUDED.reserve0,
				reserve1 = EXCLUDED.reserve1,
				fee_rate0 = EXCLUDED.fee_rate0,
				fee_rate1 = EXCLUDED.fee_rate1,
				yield_apr0 = EXCLUDED.yield_apr0,
				yield_apr1 = EXCLUDED.yield_apr1,
				last_block = EXCLUDED.last_block,
				updated_at = now()
		`,
			int64(m.ChainID),
			m.PairAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.DepositCount),
			int64(m.WithdrawCount),
			int64(m.HarvestCount),
			m.Volume0,
			m.Volume1,
			m.ProtocolFee0,
			m.ProtocolFee1,
			m.Yield0,
			m.Yield1,
			m.Reserve0,
			m.Reserve1,
			m.FeeRate0,
			m.FeeRate1,
			m.YieldAPR0,
			m.YieldAPR1,
			int64(m.LastBlock),
		)
	}
	return sendBatch(ctx, s.pool, batch, len(metrics))
}

// LoadState returns the saved progress for name.
func (s *Store) LoadState(ctx context.Context, name string) (model.RunState, bool, error) {
	if name == "" {
		return model.RunState{}, false, fmt.Errorf("state name required")
	}
	var (
		cursor    int64
		pairs     []byte
		updatedAt string
	)
	row := s.pool.QueryRow(ctx, `SELECT cursor, pairs, updated_at::text FROM run_state WHERE name=$1`, name)
	if err := row.Scan(&cursor, &pairs, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.RunState{}, false, nil
		}
		return model.RunState{}, false, err
	}
	state := model.RunState{Cursor: uint64(cursor), UpdatedAt: updatedAt}
	if len(pairs) > 0 {
		if err := json.Unmarshal(pairs, &state.Pairs); err != nil {
			return model.RunState{}, false, fmt.Errorf("parse state pairs: %w", err)
		}
	}
	return state, true, nil
}

// SaveState upserts the progress for name.
func (s *Store) SaveState(ctx context.Context, name string, state model.RunState) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	var pairs []byte
	if len(state.Pairs) > 0 {
		var err error
		if pairs, err = json.Marshal(state.Pairs); err != nil {
			return fmt.Errorf("marshal state pairs: %w", err)
		}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO run_state (name, cursor, pairs, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET cursor = EXCLUDED.cursor, pairs = EXCLUDED.pairs, updated_at = now()
	`, name, int64(state.Cursor), pairs)
	return err
}

func sendBatch(ctx context.Context, pool *pgxpool.Pool, batch *pgx.Batch, n int) error {
	br := pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
