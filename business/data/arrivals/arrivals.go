// Package arrivals provides the append-only real-time arrival log. Superseded
// predictions are inserted as new rows, never overwritten; selecting the
// latest prediction is a read-time concern for callers.
package arrivals

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/metrolive/metrolive/business/data/schema"
	"github.com/metrolive/metrolive/business/data/transit"
	"github.com/metrolive/metrolive/foundation/database"
)

// DefaultQueryLimit caps station queries when the caller does not supply a
// limit, keeping result size bounded.
const DefaultQueryLimit = 500

// Event is one predicted or observed arrival. TripId is nil for
// direction-only predictions.
type Event struct {
	Id          int64             `db:"id" json:"id"`
	StationId   string            `db:"station_id" json:"station_id"`
	RouteId     string            `db:"route_id" json:"route_id"`
	TripId      *string           `db:"trip_id" json:"trip_id"`
	Direction   transit.Direction `db:"direction" json:"direction"`
	ArrivalTime time.Time         `db:"arrival_time" json:"arrival_time"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}

// Store serves the arrival log.
type Store struct {
	db *sqlx.DB
}

// NewStore builds a Store over an ensured schema.
func NewStore(sc *schema.Schema) *Store {
	return &Store{db: sc.DB()}
}

// Record appends one arrival event. Existing rows are never mutated, and no
// uniqueness is enforced: duplicate and revised predictions are expected.
func (s *Store) Record(event *Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	statementString := "insert into rt_arrivals ( " +
		"station_id, " +
		"route_id, " +
		"trip_id, " +
		"direction, " +
		"arrival_time, " +
		"created_at) " +
		"values (" +
		":station_id, " +
		":route_id, " +
		":trip_id, " +
		":direction, " +
		":arrival_time, " +
		":created_at)"
	statementString = s.db.Rebind(statementString)
	_, err := s.db.NamedExec(statementString, event)
	return database.WrapError(err)
}

// Query returns arrivals for a station ordered by ascending arrival_time,
// filtered to arrival_time at or after from. routeId narrows the result to one
// route when non-empty. The predicate matches the (station_id, route_id,
// arrival_time) composite index exactly. limit values of zero or below fall
// back to DefaultQueryLimit. An unknown station yields an empty slice.
func (s *Store) Query(stationId string, routeId string, from time.Time, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	statementString := "select * from rt_arrivals " +
		"where station_id = :station_id " +
		"and arrival_time >= :from_time "
	if routeId != "" {
		statementString += "and route_id = :route_id "
	}
	statementString += "order by arrival_time limit :limit"

	rows, err := database.PrepareNamedQueryRowsFromMap(statementString, s.db, map[string]interface{}{
		"station_id": stationId,
		"route_id":   routeId,
		"from_time":  from,
		"limit":      limit,
	})
	defer func() {
		if rows != nil {
			_ = rows.Close()
		}
	}()
	if err != nil {
		return nil, database.WrapError(fmt.Errorf("unable to retrieve rt_arrivals rows: %w", err))
	}

	events := make([]*Event, 0)
	for rows.Next() {
		event := Event{}
		if err = rows.StructScan(&event); err != nil {
			return nil, err
		}
		events = append(events, &event)
	}
	return events, database.WrapError(rows.Err())
}
