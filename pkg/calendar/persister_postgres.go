package calendar

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// PgxConn is the part of *pgxpool.Pool used by PostgresPersister.
type PgxConn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresPersister keeps one row per event in calendar_event. The position
// column preserves insertion order.
type PostgresPersister struct {
	db PgxConn
}

func NewPostgresPersister(db PgxConn) *PostgresPersister {
	return &PostgresPersister{db: db}
}

func (p *PostgresPersister) LoadAll(ctx context.Context) []Record {
	query := `SELECT uid, title, description, start_time, end_time, recurrence, email
			  FROM calendar_event
			  ORDER BY position`

	rows, err := p.db.Query(ctx, query)
	if err != nil {
		log.Warnf("could not query calendar events, starting with an empty calendar: %v", err)
		return []Record{}
	}
	defer rows.Close()

	records := make([]Record, 0, 16)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &r.StartTime, &r.EndTime, &r.Recurrence, &r.Email); err != nil {
			log.Warnf("could not scan calendar event row, starting with an empty calendar: %v", err)
			return []Record{}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		log.Warnf("could not read calendar events, starting with an empty calendar: %v", err)
		return []Record{}
	}
	return records
}

// SaveAll replaces the table content in a single transaction.
func (p *PostgresPersister) SaveAll(ctx context.Context, records []Record) error {
	err := pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM calendar_event`); err != nil {
			return fmt.Errorf("could not clear calendar events: %w", err)
		}

		rows := make([][]any, 0, len(records))
		for i, r := range records {
			rows = append(rows, []any{int32(i), r.ID, r.Title, r.Description, r.StartTime, r.EndTime, r.Recurrence, r.Email})
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"calendar_event"},
			[]string{"position", "uid", "title", "description", "start_time", "end_time", "recurrence", "email"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("could not insert calendar events: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save calendar events: %w", err)
	}
	return nil
}
