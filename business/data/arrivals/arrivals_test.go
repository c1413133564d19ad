package arrivals

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

func TestStore_RecordAppendsAndQueryOrders(t *testing.T) {
	is := is.New(t)
	store := NewStore(testSchema(t))

	suffix := time.Now().UnixNano()
	stationId := fmt.Sprintf("test-station-%d", suffix)
	routeId := fmt.Sprintf("test-route-%d", suffix)

	t1 := time.Now().Add(5 * time.Minute).UTC().Truncate(time.Second)
	t2 := t1.Add(3 * time.Minute)

	// a revised prediction for the same trip is a second row, not an overwrite
	tripId := "trip-1"
	first := Event{StationId: stationId, RouteId: routeId, TripId: &tripId,
		Direction: transit.Up, ArrivalTime: t1}
	is.NoErr(store.Record(&first))

	second := Event{StationId: stationId, RouteId: routeId, TripId: &tripId,
		Direction: transit.Up, ArrivalTime: t2}
	is.NoErr(store.Record(&second))

	events, err := store.Query(stationId, routeId, t1.Add(-time.Minute), 0)
	is.NoErr(err)
	is.Equal(len(events), 2) // never deduplicated
	is.True(events[0].ArrivalTime.Equal(t1))
	is.True(events[1].ArrivalTime.Equal(t2)) // never reordered

	// from_time excludes earlier arrivals
	events, err = store.Query(stationId, routeId, t1.Add(time.Minute), 0)
	is.NoErr(err)
	is.Equal(len(events), 1)
	is.True(events[0].ArrivalTime.Equal(t2))
}

func TestStore_QueryScopesToRoute(t *testing.T) {
	is := is.New(t)
	store := NewStore(testSchema(t))

	suffix := time.Now().UnixNano()
	stationId := fmt.Sprintf("test-station-%d", suffix)
	routeA := fmt.Sprintf("test-route-a-%d", suffix)
	routeB := fmt.Sprintf("test-route-b-%d", suffix)

	arrivalTime := time.Now().Add(10 * time.Minute).UTC()
	is.NoErr(store.Record(&Event{StationId: stationId, RouteId: routeA,
		Direction: transit.Up, ArrivalTime: arrivalTime}))
	is.NoErr(store.Record(&Event{StationId: stationId, RouteId: routeB,
		Direction: transit.Down, ArrivalTime: arrivalTime}))

	scoped, err := store.Query(stationId, routeA, arrivalTime.Add(-time.Minute), 0)
	is.NoErr(err)
	is.Equal(len(scoped), 1)
	is.Equal(scoped[0].RouteId, routeA)

	all, err := store.Query(stationId, "", arrivalTime.Add(-time.Minute), 0)
	is.NoErr(err)
	is.Equal(len(all), 2) // empty route means unscoped
}

func TestStore_QueryUnknownStationIsEmpty(t *testing.T) {
	is := is.New(t)
	store := NewStore(testSchema(t))

	events, err := store.Query("no-such-station", "", time.Now().Add(-time.Hour), 10)
	is.NoErr(err)
	is.Equal(len(events), 0)
}

func TestStore_QueryLimit(t *testing.T) {
	is := is.New(t)
	store := NewStore(testSchema(t))

	suffix := time.Now().UnixNano()
	stationId := fmt.Sprintf("test-station-%d", suffix)
	routeId := fmt.Sprintf("test-route-%d", suffix)

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		is.NoErr(store.Record(&Event{StationId: stationId, RouteId: routeId,
			Direction: transit.Up, ArrivalTime: base.Add(time.Duration(i) * time.Minute)}))
	}

	events, err := store.Query(stationId, routeId, base.Add(-time.Minute), 3)
	is.NoErr(err)
	is.Equal(len(events), 3) // earliest three
	is.True(events[0].ArrivalTime.Before(events[2].ArrivalTime))
}
