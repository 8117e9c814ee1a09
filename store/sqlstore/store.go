package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nemoserver/authcore/account"
	"github.com/nemoserver/authcore/internal/dbx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store implements account.Store on a SQL database. It never caches rows.
type Store struct {
	db      dbx.DBTX
	conn    *sql.DB
	dialect Dialect
}

var _ account.Store = (*Store)(nil)

// New wraps an existing handle. Migrations are not run; see Migrate.
func New(db dbx.DBTX, dialect Dialect) *Store {
	s := &Store{db: db, dialect: dialect}
	if conn, ok := db.(*sql.DB); ok {
		s.conn = conn
	}
	return s
}

const selectColumns = `SELECT user_id, username, password_hash, role, speaker_id, email, created_at, modified_at FROM users`

func (s *Store) q(query string) string {
	if s.dialect == DialectPostgres {
		return dbx.Rebind(query)
	}
	return query
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*account.Record, error) {
	row := s.db.QueryRowContext(ctx, s.q(selectColumns+` WHERE username = ?`), username)
	return scanRecord(row)
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (*account.Record, error) {
	row := s.db.QueryRowContext(ctx, s.q(selectColumns+` WHERE user_id = ?`), userID)
	return scanRecord(row)
}

// SaveUser upserts rec by user_id. A username owned by another user_id
// yields account.ErrUsernameTaken.
func (s *Store) SaveUser(ctx context.Context, rec *account.Record) error {
	if rec == nil || rec.UserID == "" {
		return errors.New("db error: record without user id")
	}
	role, err := rec.Role.MarshalText()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	query := `INSERT INTO users (user_id, username, password_hash, role, speaker_id, email, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			username = excluded.username,
			password_hash = excluded.password_hash,
			role = excluded.role,
			speaker_id = excluded.speaker_id,
			email = excluded.email,
			modified_at = excluded.modified_at`

	_, err = s.db.ExecContext(ctx, s.q(query),
		rec.UserID,
		rec.Username,
		rec.PasswordHash,
		string(role),
		nullString(rec.SpeakerID),
		nullString(rec.Email),
		toUnix(rec.CreatedAt),
		toUnix(rec.ModifiedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", account.ErrUsernameTaken, rec.Username)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]account.Summary, error) {
	rows, err := s.db.QueryContext(ctx, s.q(selectColumns+` ORDER BY username`))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]account.Summary, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec.Summary())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// InTx runs fn against a Store bound to a single transaction.
func (s *Store) InTx(ctx context.Context, fn func(account.Store) error) error {
	if s.conn == nil {
		// already inside a transaction
		return fn(s)
	}
	return dbx.WithTx(ctx, s.conn, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(&Store{db: tx, dialect: s.dialect})
	})
}

// Ping checks the underlying connection.
func (s *Store) Ping(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Close closes the connection pool when the Store owns one.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*account.Record, error) {
	var (
		rec        account.Record
		role       string
		speaker    sql.NullString
		email      sql.NullString
		createdAt  float64
		modifiedAt float64
	)
	err := row.Scan(&rec.UserID, &rec.Username, &rec.PasswordHash, &role, &speaker, &email, &createdAt, &modifiedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	rec.Role, err = account.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("db error: user %s: %w", rec.UserID, err)
	}
	if speaker.Valid {
		rec.SpeakerID = &speaker.String
	}
	if email.Valid {
		rec.Email = &email.String
	}
	rec.CreatedAt = fromUnix(createdAt)
	rec.ModifiedAt = fromUnix(modifiedAt)
	return &rec, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// Timestamps are stored as float unix seconds at microsecond precision.
func toUnix(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixMicro()) / 1e6
}

func fromUnix(f float64) time.Time {
	if f == 0 {
		return time.Time{}
	}
	return time.UnixMicro(int64(math.Round(f * 1e6))).UTC()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
