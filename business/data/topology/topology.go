// Package topology provides CRUD functionality for the static network graph:
// routes, stations, and the ordered stop sequences joining them.
package topology

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/metrolive/metrolive/business/data/schema"
	"github.com/metrolive/metrolive/business/data/transit"
	"github.com/metrolive/metrolive/foundation/database"
	"github.com/shopspring/decimal"
)

// Route is one line of the network, identified by an opaque stable id.
type Route struct {
	RouteId   string `db:"route_id" json:"route_id"`
	LongName  string `db:"route_long_name" json:"route_long_name"`
	RouteType int    `db:"route_type" json:"route_type"`
}

// Station is one stop location. Coordinates are fixed-point DECIMAL(9,6).
type Station struct {
	StationId string          `db:"station_id" json:"station_id"`
	Name      string          `db:"name" json:"name"`
	Lat       decimal.Decimal `db:"lat" json:"lat"`
	Lon       decimal.Decimal `db:"lon" json:"lon"`
}

// RouteStation places a station at a position along a route in one direction.
// (route_id, station_id, direction) is unique: a station appears at most once
// per direction per route.
type RouteStation struct {
	Id           int64             `db:"id" json:"id"`
	RouteId      string            `db:"route_id" json:"route_id"`
	StationId    string            `db:"station_id" json:"station_id"`
	Direction    transit.Direction `db:"direction" json:"direction"`
	StopSequence int               `db:"stop_sequence" json:"stop_sequence"`
}

// Store serves topology reads and writes.
type Store struct {
	db *sqlx.DB
}

// NewStore builds a Store over an ensured schema.
func NewStore(sc *schema.Schema) *Store {
	return &Store{db: sc.DB()}
}

// UpsertRoute inserts or replaces a route by primary key. Used by periodic
// topology sync.
func (s *Store) UpsertRoute(route *Route) error {
	statementString := "insert into routes ( " +
		"route_id, " +
		"route_long_name, " +
		"route_type) " +
		"values (" +
		":route_id, " +
		":route_long_name, " +
		":route_type) " +
		"on conflict (route_id) do update set " +
		"route_long_name = excluded.route_long_name, " +
		"route_type = excluded.route_type"
	statementString = s.db.Rebind(statementString)
	_, err := s.db.NamedExec(statementString, route)
	return database.WrapError(err)
}

// UpsertStation inserts or replaces a station by primary key.
func (s *Store) UpsertStation(station *Station) error {
	statementString := "insert into stations ( " +
		"station_id, " +
		"name, " +
		"lat, " +
		"lon) " +
		"values (" +
		":station_id, " +
		":name, " +
		":lat, " +
		":lon) " +
		"on conflict (station_id) do update set " +
		"name = excluded.name, " +
		"lat = excluded.lat, " +
		"lon = excluded.lon"
	statementString = s.db.Rebind(statementString)
	_, err := s.db.NamedExec(statementString, station)
	return database.WrapError(err)
}

// SetRouteStations replaces the full ordered path for one (route, direction)
// pair in a single transaction, so a concurrent reader sees either the old
// path or the new one, never a partial sequence. Stop sequence numbers are
// assigned by position in stationIds.
func (s *Store) SetRouteStations(routeId string, direction transit.Direction, stationIds []string) error {
	if err := validatePath(stationIds); err != nil {
		return err
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return database.WrapError(fmt.Errorf("beginning route_stations transaction: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	deleteStatement := tx.Rebind("delete from route_stations where route_id = ? and direction = ?")
	if _, err = tx.Exec(deleteStatement, routeId, direction); err != nil {
		return database.WrapError(fmt.Errorf("clearing path for route %s %v: %w", routeId, direction, err))
	}

	insertStatement := "insert into route_stations ( " +
		"route_id, " +
		"station_id, " +
		"direction, " +
		"stop_sequence) " +
		"values (" +
		":route_id, " +
		":station_id, " +
		":direction, " +
		":stop_sequence)"
	insertStatement = tx.Rebind(insertStatement)

	for sequence, stationId := range stationIds {
		row := RouteStation{
			RouteId:      routeId,
			StationId:    stationId,
			Direction:    direction,
			StopSequence: sequence,
		}
		if _, err = tx.NamedExec(insertStatement, &row); err != nil {
			return database.WrapError(fmt.Errorf("inserting path stop %s for route %s %v: %w",
				stationId, routeId, direction, err))
		}
	}

	if err = tx.Commit(); err != nil {
		return database.WrapError(fmt.Errorf("committing path for route %s %v: %w", routeId, direction, err))
	}
	return nil
}

// validatePath rejects paths that would violate the one-stop-per-direction
// invariant before any row is written.
func validatePath(stationIds []string) error {
	seen := make(map[string]bool, len(stationIds))
	for _, stationId := range stationIds {
		if stationId == "" {
			return fmt.Errorf("path contains empty station id")
		}
		if seen[stationId] {
			return fmt.Errorf("station %s appears more than once in path", stationId)
		}
		seen[stationId] = true
	}
	return nil
}

// GetPath returns the stations of one (route, direction) pair by ascending
// stop sequence. Unknown pairs return an empty slice, not an error.
func (s *Store) GetPath(routeId string, direction transit.Direction) ([]*Station, error) {
	statementString := "select s.station_id, s.name, s.lat, s.lon " +
		"from route_stations rs " +
		"join stations s on s.station_id = rs.station_id " +
		"where rs.route_id = ? and rs.direction = ? " +
		"order by rs.stop_sequence"
	statementString = s.db.Rebind(statementString)

	rows, err := s.db.Queryx(statementString, routeId, direction)
	if err != nil {
		return nil, database.WrapError(fmt.Errorf("unable to retrieve path for route %s %v: %w",
			routeId, direction, err))
	}
	defer func() {
		_ = rows.Close()
	}()

	path := make([]*Station, 0)
	for rows.Next() {
		station := Station{}
		if err = rows.StructScan(&station); err != nil {
			return nil, err
		}
		path = append(path, &station)
	}
	return path, database.WrapError(rows.Err())
}

// DeleteRoute removes a route. route_stations rows cascade in the same
// statement; rt_trains rows for the route cascade as well. Arrival history is
// intentionally left in place.
func (s *Store) DeleteRoute(routeId string) error {
	statementString := s.db.Rebind("delete from routes where route_id = ?")
	_, err := s.db.Exec(statementString, routeId)
	return database.WrapError(err)
}

// DeleteStation removes a station, cascading its route_stations rows.
func (s *Store) DeleteStation(stationId string) error {
	statementString := s.db.Rebind("delete from stations where station_id = ?")
	_, err := s.db.Exec(statementString, stationId)
	return database.WrapError(err)
}

// GetRoute retrieves one route, or nil when unknown.
func (s *Store) GetRoute(routeId string) (*Route, error) {
	statementString := s.db.Rebind("select * from routes where route_id = ?")
	route := Route{}
	err := s.db.Get(&route, statementString, routeId)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, database.WrapError(err)
	}
	return &route, nil
}

// GetStation retrieves one station, or nil when unknown.
func (s *Store) GetStation(stationId string) (*Station, error) {
	statementString := s.db.Rebind("select * from stations where station_id = ?")
	station := Station{}
	err := s.db.Get(&station, statementString, stationId)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, database.WrapError(err)
	}
	return &station, nil
}
