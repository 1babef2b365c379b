package fraud

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mbd888/verdict/internal/pagination"
)

// PostgresStore persists assessments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed assessment store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// MigrationsDir is where the goose migrations for the assessment table live,
// relative to the repository root.
const MigrationsDir = "migrations"

// Migrate creates the fraud_assessments table if it doesn't exist. The goose
// migration in MigrationsDir is the source of truth; this keeps dev setups
// without a migrate step working.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS fraud_assessments (
			id                    VARCHAR(40) PRIMARY KEY,
			account_id            VARCHAR(128) NOT NULL,
			amount                NUMERIC(20,6) NOT NULL CHECK (amount >= 0),
			location              VARCHAR(128) NOT NULL,
			tx_timestamp          TIMESTAMPTZ NOT NULL,
			is_fraudulent         BOOLEAN NOT NULL,
			is_blocked            BOOLEAN NOT NULL,
			verification_required BOOLEAN NOT NULL,
			risk_score            SMALLINT NOT NULL CHECK (risk_score >= 0 AND risk_score <= 100),
			triggered             JSONB NOT NULL DEFAULT '[]',
			evaluated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_fraud_assessments_account
			ON fraud_assessments (account_id, evaluated_at DESC);

		CREATE INDEX IF NOT EXISTS idx_fraud_assessments_blocked
			ON fraud_assessments (evaluated_at DESC) WHERE is_blocked;
	`)
	return err
}

func (s *PostgresStore) Record(ctx context.Context, a *Assessment) error {
	triggered := a.Triggered
	if triggered == nil {
		triggered = []string{}
	}
	triggeredJSON, err := json.Marshal(triggered)
	if err != nil {
		return fmt.Errorf("failed to marshal triggered rules: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fraud_assessments (
			id, account_id, amount, location, tx_timestamp,
			is_fraudulent, is_blocked, verification_required, risk_score,
			triggered, evaluated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		a.ID,
		a.AccountID,
		a.Transaction.Amount,
		a.Transaction.Location,
		a.Transaction.Timestamp,
		a.IsFraudulent,
		a.IsBlocked,
		a.VerificationRequired,
		a.RiskScore,
		triggeredJSON,
		a.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record fraud assessment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByAccount(ctx context.Context, accountID string, limit int, before *pagination.Cursor) ([]*Assessment, error) {
	var afterAt sql.NullTime
	var afterID sql.NullString
	if before != nil {
		afterAt = sql.NullTime{Time: before.At, Valid: true}
		afterID = sql.NullString{String: before.ID, Valid: true}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, amount, location, tx_timestamp,
			is_fraudulent, is_blocked, verification_required, risk_score,
			triggered, evaluated_at
		FROM fraud_assessments
		WHERE account_id = $1
		  AND ($3::timestamptz IS NULL OR (evaluated_at, id) < ($3, $4))
		ORDER BY evaluated_at DESC, id DESC
		LIMIT $2
	`, accountID, sql.NullInt64{Int64: int64(limit), Valid: limit > 0}, afterAt, afterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fraud assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Assessment
	for rows.Next() {
		var a Assessment
		var triggeredJSON []byte

		if err := rows.Scan(
			&a.ID, &a.AccountID, &a.Transaction.Amount, &a.Transaction.Location, &a.Transaction.Timestamp,
			&a.IsFraudulent, &a.IsBlocked, &a.VerificationRequired, &a.RiskScore,
			&triggeredJSON, &a.EvaluatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fraud assessment: %w", err)
		}
		if err := json.Unmarshal(triggeredJSON, &a.Triggered); err != nil {
			return nil, fmt.Errorf("failed to decode triggered rules: %w", err)
		}
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fraud assessments: %w", err)
	}
	return result, nil
}
