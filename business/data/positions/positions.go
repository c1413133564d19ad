// Package positions provides the latest-state table of running trains. Unlike
// the arrival log this is keyed state: a report for a known trip overwrites
// the previous row rather than appending.
package positions

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/metrolive/metrolive/business/data/schema"
	"github.com/metrolive/metrolive/business/data/transit"
	"github.com/metrolive/metrolive/foundation/database"
	"github.com/shopspring/decimal"
)

// TrainPosition is the latest known position of a running trip. Lat and Lon
// are invalid until the first fix is received; a trip may be registered before
// reporting one.
type TrainPosition struct {
	Id         int64               `db:"id" json:"id"`
	TripId     *string             `db:"trip_id" json:"trip_id"`
	RouteId    string              `db:"route_id" json:"route_id"`
	Lat        decimal.NullDecimal `db:"current_lat" json:"current_lat"`
	Lon        decimal.NullDecimal `db:"current_lon" json:"current_lon"`
	Direction  transit.Direction   `db:"direction" json:"direction"`
	LastUpdate time.Time           `db:"last_update" json:"last_update"`
}

// Store serves the train position table.
type Store struct {
	db *sqlx.DB
}

// NewStore builds a Store over an ensured schema.
func NewStore(sc *schema.Schema) *Store {
	return &Store{db: sc.DB()}
}

// Report records a position report. Reports carrying a trip id upsert on the
// (route_id, trip_id, direction) natural key in one atomic statement, so two
// near-simultaneous reports for the same trip cannot both insert. Reports
// without a trip id cannot be correlated and always insert.
func (s *Store) Report(tripId *string, routeId string,
	lat decimal.NullDecimal, lon decimal.NullDecimal, direction transit.Direction) error {

	position := TrainPosition{
		TripId:     tripId,
		RouteId:    routeId,
		Lat:        lat,
		Lon:        lon,
		Direction:  direction,
		LastUpdate: time.Now(),
	}

	statementString := "insert into rt_trains ( " +
		"trip_id, " +
		"route_id, " +
		"current_lat, " +
		"current_lon, " +
		"direction, " +
		"last_update) " +
		"values (" +
		":trip_id, " +
		":route_id, " +
		":current_lat, " +
		":current_lon, " +
		":direction, " +
		":last_update)"
	if tripId != nil {
		statementString += " on conflict (route_id, trip_id, direction) where trip_id is not null " +
			"do update set " +
			"current_lat = excluded.current_lat, " +
			"current_lon = excluded.current_lon, " +
			"last_update = excluded.last_update"
	}
	statementString = s.db.Rebind(statementString)
	_, err := s.db.NamedExec(statementString, &position)
	if err != nil {
		return database.WrapError(fmt.Errorf("recording position for route %s: %w", routeId, err))
	}
	return nil
}

// ActiveOnRoute returns the known trains on a route, freshest first, one row
// per trip. No staleness cutoff is applied here: callers decide how old a
// last_update they will still display.
func (s *Store) ActiveOnRoute(routeId string) ([]*TrainPosition, error) {
	statementString := s.db.Rebind("select * from rt_trains where route_id = ? order by last_update desc")

	rows, err := s.db.Queryx(statementString, routeId)
	if err != nil {
		return nil, database.WrapError(fmt.Errorf("unable to retrieve rt_trains rows for route %s: %w",
			routeId, err))
	}
	defer func() {
		_ = rows.Close()
	}()

	trains := make([]*TrainPosition, 0)
	for rows.Next() {
		position := TrainPosition{}
		if err = rows.StructScan(&position); err != nil {
			return nil, err
		}
		trains = append(trains, &position)
	}
	return trains, database.WrapError(rows.Err())
}
