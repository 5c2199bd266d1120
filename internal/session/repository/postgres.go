package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tokenvault/internal/session/domain"
)

const sessionColumns = `id, user_id, refresh_token_hash, expires_at, is_valid, invalidated_at, device_info, ip_address, created_at, updated_at`

// PostgresRepository persists sessions in Postgres via a pgx pool. Rotation
// and bulk invalidation rely on conditional UPDATE ... WHERE is_valid so the
// database serializes concurrent attempts; the loser simply matches no rows.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a session repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.UserID, s.RefreshTokenHash, s.ExpiresAt, s.Valid, s.InvalidatedAt,
		nullIfEmpty(s.DeviceInfo), nullIfEmpty(s.IPAddress), s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (r *PostgresRepository) FindValidByTokenHash(ctx context.Context, userID, tokenHash string) (*domain.Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE user_id = $1 AND refresh_token_hash = $2 AND is_valid AND expires_at > now()`,
		userID, tokenHash)
	return scanSession(row)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, valid *bool) ([]*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1`
	args := []any{userID}
	if valid != nil {
		query += ` AND is_valid = $2`
		args = append(args, *valid)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// InvalidateByTokenHash is the rotation primitive: a single compare-and-swap
// update. Of two concurrent callers presenting the same hash, exactly one
// gets the row back; the other sees (nil, nil).
func (r *PostgresRepository) InvalidateByTokenHash(ctx context.Context, userID, tokenHash string, at time.Time) (*domain.Session, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE sessions
		SET is_valid = FALSE, invalidated_at = $3, updated_at = $3
		WHERE user_id = $1 AND refresh_token_hash = $2 AND is_valid AND expires_at > $3
		RETURNING `+sessionColumns, userID, tokenHash, at)
	return scanSession(row)
}

func (r *PostgresRepository) InvalidateAllByUser(ctx context.Context, userID string, at time.Time) ([]*domain.Session, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE sessions
		SET is_valid = FALSE, invalidated_at = $2, updated_at = $2
		WHERE user_id = $1 AND is_valid
		RETURNING `+sessionColumns, userID, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// RETURNING order is unspecified; newest first for reporting.
	sortSessionsNewestFirst(out)
	return out, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		s          domain.Session
		deviceInfo *string
		ipAddress  *string
	)
	err := row.Scan(
		&s.ID, &s.UserID, &s.RefreshTokenHash, &s.ExpiresAt, &s.Valid,
		&s.InvalidatedAt, &deviceInfo, &ipAddress, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if deviceInfo != nil {
		s.DeviceInfo = *deviceInfo
	}
	if ipAddress != nil {
		s.IPAddress = *ipAddress
	}
	return &s, nil
}

func sortSessionsNewestFirst(sessions []*domain.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
