package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/buyergroup-cli/internal/db"
	"github.com/sells-group/buyergroup-cli/internal/model"
)

// PostgresStore implements Store on pgx for multi-replica deployments
// behind the HTTP API.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS results (
	request_id   TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	company      TEXT NOT NULL,
	tier         TEXT NOT NULL,
	state        TEXT NOT NULL,
	result       JSONB NOT NULL,
	cost_usd     DOUBLE PRECISION NOT NULL DEFAULT 0,
	completed_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS group_members (
	request_id   TEXT NOT NULL REFERENCES results(request_id) ON DELETE CASCADE,
	candidate_id TEXT NOT NULL,
	role         TEXT NOT NULL,
	score        DOUBLE PRECISION NOT NULL,
	quality      INTEGER NOT NULL,
	PRIMARY KEY (request_id, candidate_id)
);

CREATE TABLE IF NOT EXISTS cost_ledger (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	provider   TEXT NOT NULL,
	request_id TEXT NOT NULL,
	amount_usd DOUBLE PRECISION NOT NULL,
	charged_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_tenant ON results(tenant_id);
CREATE INDEX IF NOT EXISTS idx_ledger_tenant ON cost_ledger(tenant_id, charged_at);
CREATE INDEX IF NOT EXISTS idx_ledger_request ON cost_ledger(request_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveResult(ctx context.Context, result *model.BuyerGroupResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO results (request_id, tenant_id, company, tier, state, result, cost_usd, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (request_id) DO UPDATE SET
		   state = EXCLUDED.state, result = EXCLUDED.result,
		   cost_usd = EXCLUDED.cost_usd, completed_at = EXCLUDED.completed_at`,
		result.RequestID, result.TenantID, result.CompanyName, string(result.Tier),
		string(result.State), payload, result.TotalCostUSD, result.CompletedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save result %s", result.RequestID)
	}

	// Members are denormalized for reporting queries; COPY beats
	// row-at-a-time inserts for full groups.
	rows := make([][]any, 0, len(result.Members))
	for _, m := range result.Members {
		rows = append(rows, []any{
			result.RequestID, m.Candidate.ID, string(m.Role.Role), m.Role.Score, m.Quality.Overall,
		})
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM group_members WHERE request_id = $1`, result.RequestID); err != nil {
		return eris.Wrapf(err, "postgres: clear members %s", result.RequestID)
	}
	_, err = db.CopyFrom(ctx, s.pool, "group_members",
		[]string{"request_id", "candidate_id", "role", "score", "quality"}, rows)
	return err
}

func (s *PostgresStore) GetResult(ctx context.Context, requestID string) (*model.BuyerGroupResult, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT result FROM results WHERE request_id = $1`, requestID,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get result %s", requestID)
	}

	var result model.BuyerGroupResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal result %s", requestID)
	}
	return &result, nil
}

func (s *PostgresStore) ListResults(ctx context.Context, filter ResultFilter) ([]model.BuyerGroupResult, error) {
	query := `SELECT result FROM results WHERE 1=1`
	var args []any
	if filter.TenantID != "" {
		args = append(args, filter.TenantID)
		query += ` AND tenant_id = $1`
	}
	if filter.Company != "" {
		args = append(args, filter.Company)
		query += ` AND company = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY completed_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var results []model.BuyerGroupResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		var r model.BuyerGroupResult
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *PostgresStore) Append(ctx context.Context, entry model.CostLedgerEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cost_ledger (id, tenant_id, provider, request_id, amount_usd, charged_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.TenantID, entry.Provider, entry.RequestID,
		entry.AmountUSD, entry.ChargedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: append ledger entry")
}

func (s *PostgresStore) SpendReport(ctx context.Context, tenantID string, since time.Time) ([]SpendLine, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT provider, COUNT(*), COALESCE(SUM(amount_usd), 0)
		 FROM cost_ledger
		 WHERE tenant_id = $1 AND charged_at >= $2
		 GROUP BY provider
		 ORDER BY SUM(amount_usd) DESC`,
		tenantID, since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: spend report")
	}
	defer rows.Close()

	var lines []SpendLine
	for rows.Next() {
		var l SpendLine
		if err := rows.Scan(&l.Provider, &l.Calls, &l.AmountUSD); err != nil {
			return nil, eris.Wrap(err, "postgres: scan spend line")
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
