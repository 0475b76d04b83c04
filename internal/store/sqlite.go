package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/buyergroup-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the
// default for single-operator CLI use.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS results (
	request_id   TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	company      TEXT NOT NULL,
	tier         TEXT NOT NULL,
	state        TEXT NOT NULL,
	result       TEXT NOT NULL,
	cost_usd     REAL NOT NULL DEFAULT 0,
	completed_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS cost_ledger (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	provider   TEXT NOT NULL,
	request_id TEXT NOT NULL,
	amount_usd REAL NOT NULL,
	charged_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_tenant ON results(tenant_id);
CREATE INDEX IF NOT EXISTS idx_results_company ON results(company);
CREATE INDEX IF NOT EXISTS idx_ledger_tenant ON cost_ledger(tenant_id, charged_at);
CREATE INDEX IF NOT EXISTS idx_ledger_request ON cost_ledger(request_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveResult(ctx context.Context, result *model.BuyerGroupResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results (request_id, tenant_id, company, tier, state, result, cost_usd, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(request_id) DO UPDATE SET
		   state = excluded.state, result = excluded.result,
		   cost_usd = excluded.cost_usd, completed_at = excluded.completed_at`,
		result.RequestID, result.TenantID, result.CompanyName, string(result.Tier),
		string(result.State), string(payload), result.TotalCostUSD, result.CompletedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save result %s", result.RequestID)
}

func (s *SQLiteStore) GetResult(ctx context.Context, requestID string) (*model.BuyerGroupResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM results WHERE request_id = ?`, requestID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get result %s", requestID)
	}

	var result model.BuyerGroupResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal result %s", requestID)
	}
	return &result, nil
}

func (s *SQLiteStore) ListResults(ctx context.Context, filter ResultFilter) ([]model.BuyerGroupResult, error) {
	query := `SELECT result FROM results WHERE 1=1`
	var args []any
	if filter.TenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, filter.TenantID)
	}
	if filter.Company != "" {
		query += ` AND company = ?`
		args = append(args, filter.Company)
	}
	query += ` ORDER BY completed_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close()

	var results []model.BuyerGroupResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		var r model.BuyerGroupResult
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) Append(ctx context.Context, entry model.CostLedgerEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cost_ledger (id, tenant_id, provider, request_id, amount_usd, charged_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.TenantID, entry.Provider, entry.RequestID,
		entry.AmountUSD, entry.ChargedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: append ledger entry")
}

func (s *SQLiteStore) SpendReport(ctx context.Context, tenantID string, since time.Time) ([]SpendLine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, COUNT(*), COALESCE(SUM(amount_usd), 0)
		 FROM cost_ledger
		 WHERE tenant_id = ? AND charged_at >= ?
		 GROUP BY provider
		 ORDER BY SUM(amount_usd) DESC`,
		tenantID, since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: spend report")
	}
	defer rows.Close()

	var lines []SpendLine
	for rows.Next() {
		var l SpendLine
		if err := rows.Scan(&l.Provider, &l.Calls, &l.AmountUSD); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan spend line")
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
