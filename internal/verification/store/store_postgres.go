package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"veristamp/internal/verification/models"
	"veristamp/pkg/platform/sentinel"
)

// Schema is the verifications table DDL. Sub-documents (proof, challenges,
// rounds, certificate) are stored as JSONB; the store is the sole writer.
const Schema = `
CREATE TABLE IF NOT EXISTS verifications (
    id                  UUID PRIMARY KEY,
    prompt              TEXT NOT NULL,
    output              TEXT NOT NULL,
    model               TEXT NOT NULL,
    output_hash         TEXT NOT NULL,
    requester_address   TEXT NOT NULL,
    requester_signature TEXT NOT NULL DEFAULT '',
    status              TEXT NOT NULL,
    attestation_id      TEXT NOT NULL DEFAULT '',
    attestation_root    TEXT NOT NULL DEFAULT '',
    attestation_proof   JSONB NOT NULL DEFAULT '[]',
    certificate         JSONB,
    mint_status         TEXT NOT NULL DEFAULT 'none',
    mint_started_at     TIMESTAMPTZ,
    created_at          TIMESTAMPTZ NOT NULL,
    resolved_at         TIMESTAMPTZ,
    challenges          JSONB NOT NULL DEFAULT '[]',
    rounds              JSONB NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_verifications_status_created
    ON verifications (status, created_at);
`

// Postgres persists verification records in PostgreSQL. Execute runs inside a
// transaction with SELECT ... FOR UPDATE so validate and mutate observe and
// write a row no concurrent caller can touch.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema applies the table DDL. Idempotent.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure verifications schema: %w", err)
	}
	return nil
}

const selectColumns = `id, prompt, output, model, output_hash, requester_address,
requester_signature, status, attestation_id, attestation_root, attestation_proof,
certificate, mint_status, mint_started_at, created_at, resolved_at, challenges, rounds`

func (s *Postgres) Create(ctx context.Context, record *models.VerificationRecord) error {
	proof, challenges, rounds, certificate, err := marshalSubDocs(record)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO verifications (`+selectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		record.ID.String(), record.Prompt, record.Output, record.Model,
		record.OutputHash, record.RequesterAddress, record.RequesterSignature,
		string(record.Status), record.AttestationID, record.AttestationRoot,
		proof, certificate, string(record.MintStatus), nullableTime(record.MintStartedAt),
		record.CreatedAt, nullableTime(record.ResolvedAt), challenges, rounds,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert verification: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id models.VerificationID) (*models.VerificationRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM verifications WHERE id = $1`, id.String())
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find verification by id: %w", err)
	}
	return record, nil
}

func (s *Postgres) Execute(
	ctx context.Context,
	id models.VerificationID,
	validate func(*models.VerificationRecord) error,
	mutate func(*models.VerificationRecord),
) (*models.VerificationRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin execute tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM verifications WHERE id = $1 FOR UPDATE`, id.String())
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock verification row: %w", err)
	}

	if err := validate(record); err != nil {
		return nil, err
	}
	mutate(record)

	proof, challenges, rounds, certificate, err := marshalSubDocs(record)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE verifications SET
			status = $2, attestation_id = $3, attestation_root = $4,
			attestation_proof = $5, certificate = $6, mint_status = $7,
			mint_started_at = $8, resolved_at = $9, challenges = $10, rounds = $11
		WHERE id = $1`,
		record.ID.String(), string(record.Status), record.AttestationID,
		record.AttestationRoot, proof, certificate, string(record.MintStatus),
		nullableTime(record.MintStartedAt), nullableTime(record.ResolvedAt),
		challenges, rounds,
	)
	if err != nil {
		return nil, fmt.Errorf("update verification: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit execute tx: %w", err)
	}
	return record, nil
}

func (s *Postgres) ListStale(ctx context.Context, cutoff time.Time) ([]*models.VerificationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+` FROM verifications
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at`, string(models.StatusPending), cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale verifications: %w", err)
	}
	defer rows.Close()

	var stale []*models.VerificationRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale verification: %w", err)
		}
		stale = append(stale, record)
	}
	return stale, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.VerificationRecord, error) {
	var (
		record        models.VerificationRecord
		idStr         string
		status        string
		mintStatus    string
		proof         []byte
		certificate   []byte
		mintStartedAt sql.NullTime
		resolvedAt    sql.NullTime
		challenges    []byte
		rounds        []byte
	)
	err := row.Scan(
		&idStr, &record.Prompt, &record.Output, &record.Model,
		&record.OutputHash, &record.RequesterAddress, &record.RequesterSignature,
		&status, &record.AttestationID, &record.AttestationRoot, &proof,
		&certificate, &mintStatus, &mintStartedAt, &record.CreatedAt, &resolvedAt,
		&challenges, &rounds,
	)
	if err != nil {
		return nil, err
	}

	id, err := models.ParseVerificationID(idStr)
	if err != nil {
		return nil, fmt.Errorf("stored verification id is malformed: %w", err)
	}
	record.ID = id
	record.Status = models.VerificationStatus(status)
	record.MintStatus = models.MintStatus(mintStatus)
	if mintStartedAt.Valid {
		t := mintStartedAt.Time
		record.MintStartedAt = &t
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		record.ResolvedAt = &t
	}
	if err := json.Unmarshal(proof, &record.AttestationProof); err != nil {
		return nil, fmt.Errorf("decode attestation proof: %w", err)
	}
	if err := json.Unmarshal(challenges, &record.Challenges); err != nil {
		return nil, fmt.Errorf("decode challenges: %w", err)
	}
	if err := json.Unmarshal(rounds, &record.Rounds); err != nil {
		return nil, fmt.Errorf("decode rounds: %w", err)
	}
	if len(certificate) > 0 {
		var cert models.Certificate
		if err := json.Unmarshal(certificate, &cert); err != nil {
			return nil, fmt.Errorf("decode certificate: %w", err)
		}
		record.Certificate = &cert
	}
	return &record, nil
}

func marshalSubDocs(record *models.VerificationRecord) (proof, challenges, rounds, certificate []byte, err error) {
	if proof, err = marshalOrEmptyArray(record.AttestationProof); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal attestation proof: %w", err)
	}
	if challenges, err = marshalOrEmptyArray(record.Challenges); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal challenges: %w", err)
	}
	if rounds, err = marshalOrEmptyArray(record.Rounds); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal rounds: %w", err)
	}
	if record.Certificate != nil {
		if certificate, err = json.Marshal(record.Certificate); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal certificate: %w", err)
		}
	}
	return proof, challenges, rounds, certificate, nil
}

func marshalOrEmptyArray(v any) ([]byte, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(out) == "null" {
		return []byte("[]"), nil
	}
	return out, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
