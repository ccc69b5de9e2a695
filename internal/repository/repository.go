// Package repository implements the storage port on PostgreSQL through the
// pgx database/sql driver.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/atinyakov/linkcore/internal/models"
	"github.com/atinyakov/linkcore/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS folders (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	company_id TEXT NOT NULL,
	name TEXT NOT NULL,
	path TEXT NOT NULL,
	parent_id UUID REFERENCES folders(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (company_id, path)
);

CREATE TABLE IF NOT EXISTS media (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	company_id TEXT NOT NULL,
	folder_id UUID REFERENCES folders(id),
	path TEXT,
	type TEXT NOT NULL,
	section TEXT NOT NULL DEFAULT 'general',
	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	alt TEXT NOT NULL DEFAULT '',
	width INTEGER,
	height INTEGER,
	url TEXT NOT NULL,
	filename TEXT NOT NULL,
	original_name TEXT NOT NULL DEFAULT '',
	size BIGINT NOT NULL DEFAULT 0,
	mime_type TEXT NOT NULL DEFAULT '',
	thumbnail_url TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS short_links (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	company_id TEXT NOT NULL,
	original_url TEXT NOT NULL,
	short_code TEXT UNIQUE NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	tags JSONB NOT NULL DEFAULT '[]',
	status TEXT NOT NULL,
	expires_at TIMESTAMPTZ,
	custom_domain TEXT NOT NULL DEFAULT '',
	category_id TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS digital_links (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	company_id TEXT NOT NULL,
	gs1_key TEXT,
	gs1_key_type TEXT,
	gs1_url TEXT,
	link_type TEXT NOT NULL DEFAULT '',
	redirect_type TEXT NOT NULL,
	custom_url TEXT,
	product_id TEXT,
	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	tags JSONB NOT NULL DEFAULT '[]',
	status TEXT NOT NULL,
	expires_at TIMESTAMPTZ,
	category_id TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (company_id, gs1_url)
);

CREATE TABLE IF NOT EXISTS link_activities (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	kind TEXT NOT NULL,
	action TEXT NOT NULL,
	ts TIMESTAMPTZ NOT NULL DEFAULT now(),
	actor_id TEXT NOT NULL DEFAULT '',
	company_id TEXT NOT NULL,
	item_id TEXT NOT NULL,
	item_name TEXT NOT NULL DEFAULT '',
	details JSONB
);

CREATE TABLE IF NOT EXISTS shortlink_analytics (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	link_id UUID NOT NULL REFERENCES short_links(id),
	action TEXT NOT NULL DEFAULT 'click',
	ts TIMESTAMPTZ NOT NULL DEFAULT now(),
	visitor_id TEXT,
	browser TEXT,
	device TEXT,
	location TEXT,
	city TEXT,
	referrer TEXT,
	ip TEXT,
	user_agent TEXT,
	time_on_page DOUBLE PRECISION,
	completion_time DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS digitallink_analytics (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	link_id UUID NOT NULL REFERENCES digital_links(id),
	action TEXT NOT NULL DEFAULT 'view',
	ts TIMESTAMPTZ NOT NULL DEFAULT now(),
	details JSONB
);

CREATE INDEX IF NOT EXISTS shortlink_analytics_link_idx ON shortlink_analytics (link_id, ts);
CREATE INDEX IF NOT EXISTS digitallink_analytics_link_idx ON digitallink_analytics (link_id, ts);
`

// InitDB opens the database and makes sure the schema exists.
func InitDB(dsn string, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Database connected and tables ready")
	return db, nil
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository is the PostgreSQL storage.Store. The value handed to a
// WithinTx callback has no db and runs every query on the transaction.
type Repository struct {
	db     *sql.DB
	q      dbtx
	logger *zap.Logger
}

func CreateRepository(db *sql.DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		q:      db,
		logger: logger,
	}
}

func (r *Repository) Folders() storage.FolderStore { return &folderRepo{r} }
func (r *Repository) Media() storage.MediaStore { return &mediaRepo{r} }
func (r *Repository) ShortLinks() storage.ShortLinkStore { return &shortLinkRepo{r} }
func (r *Repository) DigitalLinks() storage.DigitalLinkStore { return &digitalLinkRepo{r} }
func (r *Repository) Activities() storage.ActivityStore { return &activityRepo{r} }
func (r *Repository) Events() storage.EventStore { return &eventRepo{r} }

func (r *Repository) WithinTx(ctx context.Context, fn func(storage.Store) error) error {
	if r.db == nil {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(&Repository{q: tx, logger: r.logger}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Error("rollback failed", zap.Error(rbErr))
		}
		return err
	}

	return tx.Commit()
}

func (r *Repository) PingContext(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	return r.db.PingContext(ctx)
}

// mapError translates driver errors into the storage sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %s", storage.ErrConflict, pgErr.ConstraintName)
		case pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%w: %s", storage.ErrNotFound, pgErr.ConstraintName)
		case pgerrcode.InvalidTextRepresentation:
			// a malformed uuid cannot match any row
			return storage.ErrNotFound
		}
	}
	return err
}

// execOne runs a statement that must touch exactly one row.
func (r *Repository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// where accumulates AND-ed conditions and their positional arguments.
type where struct {
	conds []string
	args  []any
}

// arg registers v and returns its placeholder.
func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) and(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// paginate registers limit and offset and returns the clause using them.
// Call it after String.
func (w *where) paginate(page, limit int) string {
	return " LIMIT " + w.arg(limit) + " OFFSET " + w.arg(models.Offset(page, limit))
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func nullable(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	return string(b), err
}

func decodeTags(raw []byte) ([]string, error) {
	tags := []string{}
	if len(raw) == 0 {
		return tags, nil
	}
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return tags, nil
}

func encodeDetails(details map[string]any) (any, error) {
	if len(details) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeDetails(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var details map[string]any
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	return details, nil
}
