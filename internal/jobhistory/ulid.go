package jobhistory

import (
	"crypto/rand"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// RunID is a lexicographically sortable, time-ordered identifier for a
// PipelineRun row: newer runs sort after older ones without a separate
// RecordedAt index lookup, and without a database-assigned auto-increment
// key that would require a round trip before a caller can log the ID.
type RunID ulid.ULID

// NewRunID generates a new RunID from the current time.
func NewRunID() RunID {
	return RunID(ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader))
}

// String returns the canonical base32 encoding of the RunID.
func (id RunID) String() string {
	return ulid.ULID(id).String()
}

// IsZero reports whether id is the zero RunID.
func (id RunID) IsZero() bool {
	return ulid.ULID(id).Compare(ulid.ULID{}) == 0
}

// Value implements driver.Valuer for database storage.
func (id RunID) Value() (driver.Value, error) {
	if id.IsZero() {
		return nil, nil
	}
	return ulid.ULID(id).String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (id *RunID) Scan(value any) error {
	if value == nil {
		*id = RunID{}
		return nil
	}
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("unsupported type for RunID: %T", value)
	}
	if s == "" {
		*id = RunID{}
		return nil
	}
	parsed, err := ulid.Parse(s)
	if err != nil {
		return fmt.Errorf("scanning RunID: %w", err)
	}
	*id = RunID(parsed)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (id RunID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + id.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *RunID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = RunID{}
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid RunID JSON: %s", string(data))
	}
	s := string(data[1 : len(data)-1])
	if s == "" {
		*id = RunID{}
		return nil
	}
	parsed, err := ulid.Parse(s)
	if err != nil {
		return fmt.Errorf("parsing RunID JSON: %w", err)
	}
	*id = RunID(parsed)
	return nil
}

// GormDataType returns the GORM column type for RunID.
func (RunID) GormDataType() string {
	return "varchar(26)"
}
