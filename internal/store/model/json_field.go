package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONField wraps any serializable value so it can be stored in a jsonb
// column. The zero value scans as the zero value of T.
type JSONField[T any] struct {
	data T
}

func MakeJSONField[T any](data T) *JSONField[T] {
	return &JSONField[T]{data: data}
}

// Data returns a copy of the wrapped value. Nil receivers yield the zero
// value so callers can merge into metadata that was never written.
func (j *JSONField[T]) Data() T {
	if j == nil {
		var zero T
		return zero
	}
	return j.data
}

func (j *JSONField[T]) Scan(value any) error {
	if value == nil {
		var zero T
		j.data = zero
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, &j.data)
	case string:
		return json.Unmarshal([]byte(v), &j.data)
	default:
		return fmt.Errorf("unsupported type for jsonb column: %T", value)
	}
}

func (j JSONField[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(j.data)
	if err != nil {
		return nil, err
	}
	// stored as text so the sqlite json operators accept it too
	return string(b), nil
}

func (j JSONField[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.data)
}

func (j *JSONField[T]) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &j.data)
}
