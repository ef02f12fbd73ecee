package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB is a nullable jsonb column holding a structured value. Valid is false
// when the column is NULL, which is distinct from a present-but-empty value:
// a NULL collection means "never observed", an empty one means "observed and
// confirmed empty".
type JSONB[T any] struct {
	Data  T
	Valid bool
}

// NewJSONB returns a non-null JSONB wrapping v.
func NewJSONB[T any](v T) JSONB[T] {
	return JSONB[T]{Data: v, Valid: true}
}

func (p *JSONB[T]) Scan(src any) error {
	if src == nil {
		var zero T
		p.Data = zero
		p.Valid = false
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("JSONB.Scan: expected []byte, got %T", src)
	}
	if err := json.Unmarshal(b, &p.Data); err != nil {
		return err
	}
	p.Valid = true
	return nil
}

func (p JSONB[T]) Value() (driver.Value, error) {
	if !p.Valid {
		return nil, nil
	}
	return json.Marshal(p.Data)
}

func (p JSONB[T]) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(p.Data)
}

func (p *JSONB[T]) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		var zero T
		p.Data = zero
		p.Valid = false
		return nil
	}
	if err := json.Unmarshal(b, &p.Data); err != nil {
		return err
	}
	p.Valid = true
	return nil
}

func (p *JSONB[T]) GetValue() T {
	return p.Data
}
