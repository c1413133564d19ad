package schema

import (
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/matryer/is"
	"github.com/metrolive/metrolive/foundation/database"
)

func testDB(t *testing.T) *sqlx.DB {
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
	return db
}

func TestEnsure_IsIdempotent(t *testing.T) {
	is := is.New(t)
	db := testDB(t)

	first, err := Ensure(db)
	is.NoErr(err)
	is.True(first != nil)

	// a second run against the same database must succeed and change nothing
	second, err := Ensure(db)
	is.NoErr(err)
	is.True(second != nil)

	relations := []string{
		"routes", "stations", "route_stations", "rt_arrivals", "rt_trains", "alerts", "users",
	}
	for _, relation := range relations {
		var one int
		err = db.Get(&one, "select 1 from "+relation+" limit 1")
		if err != nil && !database.IsNoRows(err) {
			t.Errorf("relation %s is not queryable after Ensure: %v", relation, err)
		}
	}
}
