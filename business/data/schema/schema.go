// Package schema owns creation of the metrolive relations. Ensure is run once
// at process start; the *Schema value it returns is the capability every store
// constructor requires, so no store can be built against an uninitialized
// database.
package schema

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema is proof the relations and indexes exist on the wrapped connection.
type Schema struct {
	db *sqlx.DB
}

// DB returns the connection the schema was applied to.
func (s *Schema) DB() *sqlx.DB {
	return s.db
}

// Error identifies the statement that failed during bootstrap. Bootstrap
// failures are fatal to startup: the host process must not serve against a
// partially applied schema.
type Error struct {
	Statement string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("schema: applying %s: %v", e.Statement, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Ensure creates all relations and indexes if absent. It is idempotent: every
// statement uses "if not exists" semantics, so re-running after a partial
// failure is safe. The first failing statement aborts the run and is reported,
// never skipped. Statements are ordered so referenced relations exist before
// their dependents.
func Ensure(db *sqlx.DB) (*Schema, error) {
	for _, st := range statements {
		if _, err := db.Exec(st.ddl); err != nil {
			return nil, &Error{Statement: st.name, Err: err}
		}
	}
	return &Schema{db: db}, nil
}

type statement struct {
	name string
	ddl  string
}

var statements = []statement{
	{"routes", `
		create table if not exists routes (
			route_id        text primary key,
			route_long_name text not null,
			route_type      integer not null
		)`},

	{"stations", `
		create table if not exists stations (
			station_id text primary key,
			name       text not null,
			lat        decimal(9,6) not null,
			lon        decimal(9,6) not null
		)`},

	// Ordered stop sequence per route and direction. Rows follow their route
	// or station out of existence.
	{"route_stations", `
		create table if not exists route_stations (
			id            serial primary key,
			route_id      text references routes(route_id) on delete cascade,
			station_id    text references stations(station_id) on delete cascade,
			direction     text check (direction in ('U', 'D')) not null,
			stop_sequence integer not null,
			unique(route_id, station_id, direction)
		)`},

	// Append-only arrival log. Deliberately no foreign keys: arrival history
	// survives later topology corrections.
	{"rt_arrivals", `
		create table if not exists rt_arrivals (
			id           serial primary key,
			station_id   text not null,
			route_id     text not null,
			trip_id      text,
			direction    text check (direction in ('U', 'D')) not null,
			arrival_time timestamptz not null,
			created_at   timestamptz default now()
		)`},
	{"idx_rt_arrivals_station", `
		create index if not exists idx_rt_arrivals_station
			on rt_arrivals(station_id, route_id, arrival_time)`},

	// Latest known position per running trip. Live state, not history, so
	// route deletion removes its trains.
	{"rt_trains", `
		create table if not exists rt_trains (
			id          serial primary key,
			trip_id     text,
			route_id    text references routes(route_id) on delete cascade not null,
			current_lat decimal(9,6),
			current_lon decimal(9,6),
			direction   text check (direction in ('U', 'D')) not null,
			last_update timestamptz default now()
		)`},
	{"idx_rt_trains_route", `
		create index if not exists idx_rt_trains_route on rt_trains(route_id)`},
	// Conflict target for the position upsert. Partial: reports without a
	// trip_id stay insert-only.
	{"uq_rt_trains_trip", `
		create unique index if not exists uq_rt_trains_trip
			on rt_trains(route_id, trip_id, direction)
			where trip_id is not null`},

	{"alerts", `
		create table if not exists alerts (
			id         serial primary key,
			alert_id   text unique not null,
			message    text not null,
			effect     text,
			start_time timestamptz,
			end_time   timestamptz,
			created_at timestamptz default now()
		)`},
	{"idx_alerts_active", `
		create index if not exists idx_alerts_active on alerts(start_time, end_time)`},

	{"users", `
		create table if not exists users (
			id         serial primary key,
			name       text not null,
			email      text unique not null,
			password   text not null,
			created_at timestamptz default now()
		)`},
}
