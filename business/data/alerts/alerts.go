// Package alerts provides service disruption notices with idempotent
// re-ingestion by external alert id and active-window queries.
package alerts

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/metrolive/metrolive/business/data/schema"
	"github.com/metrolive/metrolive/foundation/database"
)

// Alert is a time-bounded disruption notice. A nil StartTime means the alert
// has always been in effect; a nil EndTime means it never expires.
type Alert struct {
	Id        int64      `db:"id" json:"id"`
	AlertId   string     `db:"alert_id" json:"alert_id"`
	Message   string     `db:"message" json:"message"`
	Effect    *string    `db:"effect" json:"effect"`
	StartTime *time.Time `db:"start_time" json:"start_time"`
	EndTime   *time.Time `db:"end_time" json:"end_time"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// ActiveAt reports whether the alert's window contains at, with the same null
// bound semantics the store query uses.
func (a *Alert) ActiveAt(at time.Time) bool {
	if a.StartTime != nil && a.StartTime.After(at) {
		return false
	}
	if a.EndTime != nil && a.EndTime.Before(at) {
		return false
	}
	return true
}

// Store serves the alerts table.
type Store struct {
	db *sqlx.DB
}

// NewStore builds a Store over an ensured schema.
func NewStore(sc *schema.Schema) *Store {
	return &Store{db: sc.DB()}
}

// Upsert inserts an alert if its external alert_id is unseen, otherwise
// replaces its mutable fields. The conflict clause makes re-delivery of the
// same notice, including concurrent re-delivery, produce exactly one row.
func (s *Store) Upsert(alert *Alert) error {
	if alert.AlertId == "" {
		return fmt.Errorf("alert is missing an alert_id")
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}

	statementString := "insert into alerts ( " +
		"alert_id, " +
		"message, " +
		"effect, " +
		"start_time, " +
		"end_time, " +
		"created_at) " +
		"values (" +
		":alert_id, " +
		":message, " +
		":effect, " +
		":start_time, " +
		":end_time, " +
		":created_at) " +
		"on conflict (alert_id) do update set " +
		"message = excluded.message, " +
		"effect = excluded.effect, " +
		"start_time = excluded.start_time, " +
		"end_time = excluded.end_time"
	statementString = s.db.Rebind(statementString)
	_, err := s.db.NamedExec(statementString, alert)
	return database.WrapError(err)
}

// Active returns alerts whose window contains at, served by the
// (start_time, end_time) index. Null bounds are unbounded on that side.
func (s *Store) Active(at time.Time) ([]*Alert, error) {
	statementString := "select * from alerts " +
		"where (start_time is null or start_time <= ?) " +
		"and (end_time is null or end_time >= ?) " +
		"order by created_at"
	statementString = s.db.Rebind(statementString)

	rows, err := s.db.Queryx(statementString, at, at)
	if err != nil {
		return nil, database.WrapError(fmt.Errorf("unable to retrieve active alerts: %w", err))
	}
	defer func() {
		_ = rows.Close()
	}()

	active := make([]*Alert, 0)
	for rows.Next() {
		alert := Alert{}
		if err = rows.StructScan(&alert); err != nil {
			return nil, err
		}
		active = append(active, &alert)
	}
	return active, database.WrapError(rows.Err())
}

// Get retrieves one alert by external id, or nil when unseen.
func (s *Store) Get(alertId string) (*Alert, error) {
	statementString := s.db.Rebind("select * from alerts where alert_id = ?")
	alert := Alert{}
	err := s.db.Get(&alert, statementString, alertId)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, database.WrapError(err)
	}
	return &alert, nil
}
