package entryrepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Amund211/memocache/internal/domain"
	"github.com/Amund211/memocache/internal/reporting"
	"github.com/Amund211/memocache/internal/strutils"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Postgres struct {
	db     *sqlx.DB
	schema string
	tracer trace.Tracer
}

func NewPostgres(db *sqlx.DB, schema string) *Postgres {
	return &Postgres{
		db:     db,
		schema: schema,
		tracer: otel.Tracer("memocache/entryrepository/postgres"),
	}
}

type dbEntry struct {
	Key         string    `db:"key"`
	Value       []byte    `db:"value"`
	ContentType string    `db:"content_type"`
	FetchedAt   time.Time `db:"fetched_at"`
}

// StoreEntry upserts the entry, keeping whichever copy was fetched most recently
func (p *Postgres) StoreEntry(ctx context.Context, entry domain.Entry) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.StoreEntry")
	defer span.End()

	if !strutils.KeyIsNormalized(entry.Key) {
		err := fmt.Errorf("%w: key '%s' is not normalized", domain.ErrInvalidKey, entry.Key)
		reporting.Report(ctx, err)
		return err
	}

	if entry.Value == nil {
		// value is NOT NULL
		entry.Value = []byte{}
	}

	_, err := p.db.NamedExecContext(
		ctx,
		fmt.Sprintf(`INSERT INTO %s.entries
		(key, value, content_type, fetched_at)
		VALUES (:key, :value, :content_type, :fetched_at)
		ON CONFLICT (key)
		DO UPDATE SET
			value = EXCLUDED.value,
			content_type = EXCLUDED.content_type,
			fetched_at = EXCLUDED.fetched_at,
			stored_at = NOW()
		WHERE entries.fetched_at < EXCLUDED.fetched_at`,
			pq.QuoteIdentifier(p.schema)),
		dbEntry{
			Key:         entry.Key,
			Value:       entry.Value,
			ContentType: entry.ContentType,
			FetchedAt:   entry.FetchedAt.UTC(),
		},
	)
	if err != nil {
		err := fmt.Errorf("failed to store entry: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"key": entry.Key,
		})
		return err
	}

	return nil
}

func (p *Postgres) GetEntry(ctx context.Context, key string) (domain.Entry, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.GetEntry")
	defer span.End()

	var entry dbEntry
	err := p.db.GetContext(
		ctx,
		&entry,
		fmt.Sprintf(
			"SELECT key, value, content_type, fetched_at FROM %s.entries WHERE key = $1",
			pq.QuoteIdentifier(p.schema),
		),
		key,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Entry{}, domain.ErrEntryNotFound
	}
	if err != nil {
		err := fmt.Errorf("failed to get entry: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"key": key,
		})
		return domain.Entry{}, err
	}

	return domain.Entry{
		Key:         entry.Key,
		Value:       entry.Value,
		ContentType: entry.ContentType,
		FetchedAt:   entry.FetchedAt,
	}, nil
}
