package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/popkit/popkit/internal/model"
)

// siteColumns is the column list used for SELECT statements on the sites table.
const siteColumns = `id, api_key, plan_limit, events_used_this_month`

// widgetColumns is the column list used for SELECT statements on the widgets table.
const widgetColumns = `id, api_key, site_id, config`

// eventColumns is the column list used for SELECT statements on the events table.
const eventColumns = `id, site_id, widget_id, event_type, event_data, created_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryGetWidgetByCredentials(ctx context.Context, db executor, apiKey, widgetID, siteID string) (*model.Widget, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+widgetColumns+` FROM widgets WHERE api_key = $1 AND id = $2 AND site_id = $3`,
		apiKey, widgetID, siteID)
	return scanWidget(row)
}

func queryGetSiteByCredentials(ctx context.Context, db executor, apiKey, siteID string) (*model.Site, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+siteColumns+` FROM sites WHERE api_key = $1 AND id = $2`,
		apiKey, siteID)
	return scanSite(row)
}

func queryGetSiteByAPIKey(ctx context.Context, db executor, apiKey string) (*model.Site, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+siteColumns+` FROM sites WHERE api_key = $1`, apiKey)
	return scanSite(row)
}

func queryGetWidget(ctx context.Context, db executor, id string) (*model.Widget, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+widgetColumns+` FROM widgets WHERE id = $1`, id)
	return scanWidget(row)
}

func queryGetSite(ctx context.Context, db executor, id string) (*model.Site, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+siteColumns+` FROM sites WHERE id = $1`, id)
	return scanSite(row)
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	data, err := json.Marshal(e.EventData)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO events (id, site_id, widget_id, event_type, event_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID,
		e.SiteID,
		nullString(e.WidgetID),
		e.EventType,
		data,
		e.CreatedAt,
	)
	return err
}

func queryRecentEvents(ctx context.Context, db executor, siteID string, limit int) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE site_id = $1 ORDER BY created_at DESC LIMIT $2`,
		siteID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func queryAllEvents(ctx context.Context, db executor) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func queryGetQuota(ctx context.Context, db executor, siteID string) (*model.Quota, error) {
	row := db.QueryRowContext(ctx,
		`SELECT events_used_this_month, plan_limit FROM sites WHERE id = $1`, siteID)
	var q model.Quota
	if err := row.Scan(&q.Used, &q.Limit); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &q, nil
}

// queryIncrementUsage applies the monthly counter increment as a single
// UPDATE expression so the increment is atomic at the database.
func queryIncrementUsage(ctx context.Context, db executor, siteID string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE sites SET events_used_this_month = events_used_this_month + 1 WHERE id = $1`,
		siteID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
