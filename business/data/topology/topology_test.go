package topology

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/matryer/is"
	"github.com/metrolive/metrolive/business/data/schema"
	"github.com/metrolive/metrolive/business/data/transit"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		give    []string
		wantErr bool
	}{
		{name: "empty path is allowed", give: nil},
		{name: "single station", give: []string{"S1"}},
		{name: "distinct stations", give: []string{"S1", "S2", "S3"}},
		{name: "duplicate station", give: []string{"S1", "S2", "S1"}, wantErr: true},
		{name: "empty station id", give: []string{"S1", ""}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePath(tt.give)
			if (err != nil) != tt.wantErr {
				t.Errorf("validatePath(%v) error = %v, wantErr %v", tt.give, err, tt.wantErr)
			}
		})
	}
}

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	url := os.Getenv("METROLIVE_TEST_DB_URL")
	if url == "" {
		t.Skip("set METROLIVE_TEST_DB_URL to run database tests")
	}
	db, err := sqlx.Connect("pgx", url)
	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	sc, err := schema.Ensure(db)
	if err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}
	return sc
}

// loadTestNetwork creates one route and three stations with unique ids.
func loadTestNetwork(t *testing.T, store *Store) (string, []string) {
	t.Helper()
	suffix := time.Now().UnixNano()

	routeId := fmt.Sprintf("test-route-%d", suffix)
	if err := store.UpsertRoute(&Route{RouteId: routeId, LongName: "Test Line", RouteType: 1}); err != nil {
		t.Fatalf("upserting route: %v", err)
	}

	stationIds := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		stationId := fmt.Sprintf("test-station-%d-%d", suffix, i)
		station := Station{
			StationId: stationId,
			Name:      fmt.Sprintf("Test Station %d", i),
			Lat:       transit.Coord(45.512345 + float64(i)/1000),
			Lon:       transit.Coord(-122.658700),
		}
		if err := store.UpsertStation(&station); err != nil {
			t.Fatalf("upserting station: %v", err)
		}
		stationIds = append(stationIds, stationId)
	}
	return routeId, stationIds
}

func TestStore_SetRouteStationsAndGetPath(t *testing.T) {
	is := is.New(t)
	store := NewStore(testSchema(t))
	routeId, stationIds := loadTestNetwork(t, store)

	is.NoErr(store.SetRouteStations(routeId, transit.Up, stationIds))

	path, err := store.GetPath(routeId, transit.Up)
	is.NoErr(err)
	is.Equal(len(path), 3)
	for i, station := range path {
		is.Equal(station.StationId, stationIds[i]) // ascending stop_sequence order
	}

	// other direction has no path yet
	downPath, err := store.GetPath(routeId, transit.Down)
	is.NoErr(err)
	is.Equal(len(downPath), 0)

	// replacing the path reverses it whole
	reversed := []string{stationIds[2], stationIds[1], stationIds[0]}
	is.NoErr(store.SetRouteStations(routeId, transit.Up, reversed))

	path, err = store.GetPath(routeId, transit.Up)
	is.NoErr(err)
	is.Equal(len(path), 3)
	is.Equal(path[0].StationId, stationIds[2])
}

func TestStore_SetRouteStationsAtomicUnderConcurrentReads(t *testing.T) {
	is := is.New(t)
	store := NewStore(testSchema(t))
	routeId, stationIds := loadTestNetwork(t, store)
	reversed := []string{stationIds[2], stationIds[1], stationIds[0]}

	writerDone := make(chan error, 1)
	go func() {
		for i := 0; i < 50; i++ {
			next := stationIds
			if i%2 == 1 {
				next = reversed
			}
			if err := store.SetRouteStations(routeId, transit.Up, next); err != nil {
				writerDone <- err
				return
			}
		}
		writerDone <- nil
	}()

	for {
		select {
		case err := <-writerDone:
			is.NoErr(err)
			return
		default:
		}
		path, err := store.GetPath(routeId, transit.Up)
		is.NoErr(err)
		// a reader sees the old path or the new one, never a partial sequence
		if len(path) != 0 && len(path) != len(stationIds) {
			t.Fatalf("observed partially replaced path of %d stations", len(path))
		}
	}
}

func TestStore_GetPathUnknownRouteIsEmpty(t *testing.T) {
	is := is.New(t)
	store := NewStore(testSchema(t))

	path, err := store.GetPath("no-such-route", transit.Up)
	is.NoErr(err) // unknown is empty, not an error
	is.Equal(len(path), 0)
}

func TestStore_DeleteRouteCascades(t *testing.T) {
	is := is.New(t)
	sc := testSchema(t)
	store := NewStore(sc)
	routeId, stationIds := loadTestNetwork(t, store)

	is.NoErr(store.SetRouteStations(routeId, transit.Up, stationIds))
	is.NoErr(store.DeleteRoute(routeId))

	route, err := store.GetRoute(routeId)
	is.NoErr(err)
	is.True(route == nil)

	var remaining int
	err = sc.DB().Get(&remaining,
		sc.DB().Rebind("select count(*) from route_stations where route_id = ?"), routeId)
	is.NoErr(err)
	is.Equal(remaining, 0) // no dangling path rows

	// stations themselves survive the route
	station, err := store.GetStation(stationIds[0])
	is.NoErr(err)
	is.True(station != nil)
}

func TestStore_UpsertRouteReplaces(t *testing.T) {
	is := is.New(t)
	store := NewStore(testSchema(t))
	routeId, _ := loadTestNetwork(t, store)

	is.NoErr(store.UpsertRoute(&Route{RouteId: routeId, LongName: "Renamed Line", RouteType: 2}))

	route, err := store.GetRoute(routeId)
	is.NoErr(err)
	is.True(route != nil)
	is.Equal(route.LongName, "Renamed Line")
	is.Equal(route.RouteType, 2)
}
