// Package loader imports a network topology document into the topology store.
// A document carries routes, stations, and the ordered station path of each
// (route, direction) pair, and is produced by the upstream static-schedule
// sync. Re-running a load is safe: routes and stations upsert by primary key
// and paths are replaced whole.
package loader

import (
	"encoding/json"
	"fmt"
	logger "log"
	"os"

	"github.com/metrolive/metrolive/business/data/topology"
	"github.com/metrolive/metrolive/business/data/transit"
)

// Document is the topology import format.
type Document struct {
	Routes   []topology.Route   `json:"routes"`
	Stations []topology.Station `json:"stations"`
	Paths    []Path             `json:"paths"`
}

// Path is the ordered station list of one (route, direction) pair. Stop
// sequence numbers are implied by position. Direction is a pointer so an
// absent key is distinguishable from a legitimate value and can be rejected.
type Path struct {
	RouteId   string             `json:"route_id"`
	Direction *transit.Direction `json:"direction"`
	Stations  []string           `json:"stations"`
}

// LoadFile reads a topology document from path and applies it through store.
func LoadFile(log *logger.Logger, store *topology.Store, path string) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading topology document %s: %w", path, err)
	}

	document := Document{}
	if err = json.Unmarshal(contents, &document); err != nil {
		return fmt.Errorf("parsing topology document %s: %w", path, err)
	}
	return Load(log, store, &document)
}

// Load applies a topology document: routes and stations first, so the path
// rows have their referenced rows in place, then each directional path.
func Load(log *logger.Logger, store *topology.Store, document *Document) error {
	for i := range document.Routes {
		route := &document.Routes[i]
		if route.RouteId == "" {
			return fmt.Errorf("route at index %d is missing route_id", i)
		}
		if err := store.UpsertRoute(route); err != nil {
			return fmt.Errorf("upserting route %s: %w", route.RouteId, err)
		}
	}
	log.Printf("loaded %d routes\n", len(document.Routes))

	for i := range document.Stations {
		station := &document.Stations[i]
		if station.StationId == "" {
			return fmt.Errorf("station at index %d is missing station_id", i)
		}
		if err := store.UpsertStation(station); err != nil {
			return fmt.Errorf("upserting station %s: %w", station.StationId, err)
		}
	}
	log.Printf("loaded %d stations\n", len(document.Stations))

	for _, path := range document.Paths {
		if path.RouteId == "" {
			return fmt.Errorf("path is missing route_id")
		}
		if path.Direction == nil {
			return fmt.Errorf("path for route %s is missing direction", path.RouteId)
		}
		if err := store.SetRouteStations(path.RouteId, *path.Direction, path.Stations); err != nil {
			return fmt.Errorf("setting path for route %s %v: %w", path.RouteId, *path.Direction, err)
		}
		log.Printf("loaded path for route %s %v with %d stations\n",
			path.RouteId, *path.Direction, len(path.Stations))
	}
	return nil
}
