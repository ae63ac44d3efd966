package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore implements Store on database/sql with the lib/pq
// driver. Ids come from a dedicated sequence so allocation is atomic
// across connections and processes.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

const schema = `
CREATE SEQUENCE IF NOT EXISTS audio_id_seq;

CREATE TABLE IF NOT EXISTS audio_records (
    id             BIGINT PRIMARY KEY,
    name           VARCHAR(200) NOT NULL,
    file_extension VARCHAR(10)  NOT NULL,
    content_type   VARCHAR(50)  NOT NULL,
    creator        VARCHAR(200) NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ  NOT NULL,
    bitrate        INT,
    duration_ms    BIGINT,
    title          TEXT,
    album          TEXT,
    performers     TEXT,
    mime_type      TEXT
);

CREATE TABLE IF NOT EXISTS artwork_jobs (
    id            BIGSERIAL PRIMARY KEY,
    audio_id      BIGINT NOT NULL REFERENCES audio_records (id),
    status        TEXT   NOT NULL DEFAULT 'pending',
    attempts      INT    NOT NULL DEFAULT 0,
    error_message TEXT   NOT NULL DEFAULT '',
    thumbnails    TEXT[] NOT NULL DEFAULT '{}',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// NewPostgresStore connects, pings, and ensures the schema exists.
func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("metadata: open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("metadata: ping postgres: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("metadata: ensure schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close releases the connection pool.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func (p *PostgresStore) NextID(ctx context.Context) (uint64, error) {
	var id int64
	err := p.db.QueryRowContext(ctx, `SELECT nextval('audio_id_seq')`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("metadata: allocate id: %w", err)
	}
	return uint64(id), nil
}

func (p *PostgresStore) Create(ctx context.Context, rec *AudioRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	var (
		bitrate, durationMS            sql.NullInt64
		title, album, performers, mime sql.NullString
	)
	if t := rec.Technical; t != nil {
		bitrate = sql.NullInt64{Int64: int64(t.Bitrate), Valid: true}
		durationMS = sql.NullInt64{Int64: t.DurationMillis, Valid: true}
		title = sql.NullString{String: t.Title, Valid: true}
		album = sql.NullString{String: t.Album, Valid: true}
		performers = sql.NullString{String: t.Performers, Valid: true}
		mime = sql.NullString{String: t.MimeType, Valid: true}
	}

	_, err := p.db.ExecContext(ctx, `
        INSERT INTO audio_records
            (id, name, file_extension, content_type, creator, created_at,
             bitrate, duration_ms, title, album, performers, mime_type)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		int64(rec.ID), rec.Name, rec.FileExtension, rec.ContentType,
		rec.Creator, rec.CreatedAt,
		bitrate, durationMS, title, album, performers, mime,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrDuplicate
		}
		return fmt.Errorf("metadata: insert record %d: %w", rec.ID, err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id uint64) (*AudioRecord, error) {
	row := p.db.QueryRowContext(ctx, `
        SELECT id, name, file_extension, content_type, creator, created_at,
               bitrate, duration_ms, title, album, performers, mime_type
        FROM audio_records WHERE id = $1`, int64(id))

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("metadata: get record %d: %w", id, err)
	}
	return rec, nil
}

func (p *PostgresStore) Update(ctx context.Context, id uint64, patch UpdatePatch) error {
	// A blank name keeps the stored name; creator is always replaced.
	res, err := p.db.ExecContext(ctx, `
        UPDATE audio_records
        SET name = CASE WHEN $2 = '' THEN name ELSE $2 END,
            creator = $3
        WHERE id = $1`,
		int64(id), patch.Name, patch.Creator,
	)
	if err != nil {
		return fmt.Errorf("metadata: update record %d: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("metadata: update record %d: %w", id, err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) Exists(ctx context.Context, id uint64) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM audio_records WHERE id = $1)`, int64(id),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("metadata: exists %d: %w", id, err)
	}
	return exists, nil
}

func (p *PostgresStore) ListAll(ctx context.Context) ([]*AudioRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
        SELECT id, name, file_extension, content_type, creator, created_at,
               bitrate, duration_ms, title, album, performers, mime_type
        FROM audio_records ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("metadata: list records: %w", err)
	}
	defer rows.Close()

	var records []*AudioRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("metadata: scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metadata: list records: %w", err)
	}
	return records, nil
}

func (p *PostgresStore) EnqueueArtworkJob(ctx context.Context, audioID uint64) (int64, error) {
	var jobID int64
	err := p.db.QueryRowContext(ctx, `
        INSERT INTO artwork_jobs (audio_id) VALUES ($1) RETURNING id`,
		int64(audioID),
	).Scan(&jobID)
	if err != nil {
		return 0, fmt.Errorf("metadata: enqueue artwork job for %d: %w", audioID, err)
	}
	return jobID, nil
}

func (p *PostgresStore) NextPendingArtworkJob(ctx context.Context) (*ArtworkJob, error) {
	// SKIP LOCKED lets several workers poll the same queue without
	// claiming the same job twice.
	row := p.db.QueryRowContext(ctx, `
        UPDATE artwork_jobs
        SET status = 'processing', attempts = attempts + 1, updated_at = now()
        WHERE id = (
            SELECT id FROM artwork_jobs
            WHERE status = 'pending'
            ORDER BY id
            FOR UPDATE SKIP LOCKED
            LIMIT 1
        )
        RETURNING id, audio_id, status, attempts, error_message, thumbnails,
                  created_at, updated_at`)

	var (
		job     ArtworkJob
		audioID int64
	)
	err := row.Scan(&job.ID, &audioID, &job.Status, &job.Attempts,
		&job.ErrorMessage, pq.Array(&job.Thumbnails), &job.CreatedAt, &job.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("metadata: claim artwork job: %w", err)
	}
	job.AudioID = uint64(audioID)
	return &job, nil
}

func (p *PostgresStore) CompleteArtworkJob(ctx context.Context, jobID int64, thumbnails []string) error {
	_, err := p.db.ExecContext(ctx, `
        UPDATE artwork_jobs
        SET status = 'completed', thumbnails = $2, updated_at = now()
        WHERE id = $1`,
		jobID, pq.Array(thumbnails),
	)
	if err != nil {
		return fmt.Errorf("metadata: complete artwork job %d: %w", jobID, err)
	}
	return nil
}

func (p *PostgresStore) FailArtworkJob(ctx context.Context, jobID int64, reason string) error {
	_, err := p.db.ExecContext(ctx, `
        UPDATE artwork_jobs
        SET status = 'failed', error_message = $2, updated_at = now()
        WHERE id = $1`,
		jobID, reason,
	)
	if err != nil {
		return fmt.Errorf("metadata: fail artwork job %d: %w", jobID, err)
	}
	return nil
}

// scanRecord reads one record row from either *sql.Row or *sql.Rows.
func scanRecord(row interface{ Scan(...any) error }) (*AudioRecord, error) {
	var (
		rec                            AudioRecord
		id                             int64
		createdAt                      time.Time
		bitrate, durationMS            sql.NullInt64
		title, album, performers, mime sql.NullString
	)
	err := row.Scan(&id, &rec.Name, &rec.FileExtension, &rec.ContentType,
		&rec.Creator, &createdAt,
		&bitrate, &durationMS, &title, &album, &performers, &mime)
	if err != nil {
		return nil, err
	}
	rec.ID = uint64(id)
	rec.CreatedAt = createdAt

	if bitrate.Valid || durationMS.Valid || title.Valid {
		rec.Technical = &TechnicalMetadata{
			Bitrate:        int(bitrate.Int64),
			DurationMillis: durationMS.Int64,
			Title:          title.String,
			Album:          album.String,
			Performers:     performers.String,
			MimeType:       mime.String,
		}
	}
	return &rec, nil
}
