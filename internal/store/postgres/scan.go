package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/popkit/popkit/internal/model"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (*model.Site, error) {
	var s model.Site
	err := row.Scan(&s.ID, &s.APIKey, &s.PlanLimit, &s.EventsUsedThisMonth)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanWidget(row rowScanner) (*model.Widget, error) {
	var (
		w      model.Widget
		config []byte
	)
	err := row.Scan(&w.ID, &w.APIKey, &w.SiteID, &config)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(config) > 0 {
		if err := json.Unmarshal(config, &w.Config); err != nil {
			return nil, fmt.Errorf("unmarshal widget config: %w", err)
		}
	}
	return &w, nil
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var (
		e        model.Event
		widgetID sql.NullString
		data     []byte
	)
	err := row.Scan(&e.ID, &e.SiteID, &widgetID, &e.EventType, &data, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.WidgetID = widgetID.String
	if len(data) > 0 {
		if err := json.Unmarshal(data, &e.EventData); err != nil {
			return nil, fmt.Errorf("unmarshal event data: %w", err)
		}
	}
	return &e, nil
}

func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
