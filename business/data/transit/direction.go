// Package transit holds the domain vocabulary shared by the data stores:
// route directionality and fixed-point coordinates.
package transit

import (
	"database/sql/driver"
	"fmt"
)

// Direction is one of the two canonical traversal directions of a route's
// station sequence. It is not a compass bearing.
type Direction int

const (
	Up Direction = iota
	Down
)

// directionCodes are the stored single-character forms.
const (
	upCode   = "U"
	downCode = "D"
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "Up"
	case Down:
		return "Down"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Code returns the single-character stored form of d.
func (d Direction) Code() string {
	if d == Down {
		return downCode
	}
	return upCode
}

// ParseDirection accepts the stored codes "U"/"D" and the long names "Up"/"Down".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case upCode, "Up", "up", "UP":
		return Up, nil
	case downCode, "Down", "down", "DOWN":
		return Down, nil
	}
	return Up, fmt.Errorf("invalid direction %q, expected U or D", s)
}

// Value implements driver.Valuer, storing the direction as its code.
// An out of range Direction is rejected before it reaches the database.
func (d Direction) Value() (driver.Value, error) {
	switch d {
	case Up, Down:
		return d.Code(), nil
	}
	return nil, fmt.Errorf("invalid direction %d", int(d))
}

// Scan implements sql.Scanner for the stored codes.
func (d *Direction) Scan(src interface{}) error {
	var code string
	switch v := src.(type) {
	case string:
		code = v
	case []byte:
		code = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Direction", src)
	}
	parsed, err := ParseDirection(code)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalText makes Direction usable in JSON feed payloads as "U"/"D".
func (d Direction) MarshalText() ([]byte, error) {
	switch d {
	case Up, Down:
		return []byte(d.Code()), nil
	}
	return nil, fmt.Errorf("invalid direction %d", int(d))
}

// UnmarshalText accepts the same forms as ParseDirection.
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
