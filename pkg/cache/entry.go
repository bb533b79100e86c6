package cache

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind distinguishes the two records kept per object.
type Kind string

const (
	// KindCurrent holds the latest Snapshot.
	KindCurrent Kind = "current"

	// KindHistorical holds the latest HistoricalSeries.
	KindHistorical Kind = "historical"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindCurrent || k == KindHistorical
}

// Entry is one stored record. There is at most one Entry per (ObjectID, Kind);
// writing replaces the previous one.
type Entry struct {
	// ObjectID is the tracked object the record belongs to (e.g. "3i_atlas")
	ObjectID string `json:"object_id"`

	// Kind of record
	Kind Kind `json:"kind"`

	// WrittenAt is when the record was produced. Freshness is computed from it
	// at read time; entries never expire on their own.
	WrittenAt time.Time `json:"written_at"`

	// Payload is the JSON encoded record
	Payload json.RawMessage `json:"payload"`
}

// NewEntry encodes payload into an Entry written at now.
// WrittenAt is kept in UTC at microsecond precision so it survives every backend
// unchanged.
func NewEntry(objectID string, kind Kind, payload any, now time.Time) (*Entry, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode payload: %v", ErrInvalidEntry, err)
	}

	e := &Entry{
		ObjectID:  objectID,
		Kind:      kind,
		WrittenAt: now.UTC().Truncate(time.Microsecond),
		Payload:   data,
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Key returns the storage key of the entry.
func (e *Entry) Key() Key {
	return Key{ObjectID: e.ObjectID, Kind: e.Kind}
}

// Decode unmarshals the payload into v.
func (e *Entry) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%w: decode payload: %v", ErrInvalidEntry, err)
	}
	return nil
}

// Age returns how long ago the entry was written.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.WrittenAt)
}

// IsFresh reports whether the entry is younger than window.
func (e *Entry) IsFresh(now time.Time, window time.Duration) bool {
	return e.Age(now) < window
}

func (e *Entry) validate() error {
	switch {
	case e == nil:
		return fmt.Errorf("%w: nil entry", ErrInvalidEntry)
	case e.ObjectID == "":
		return fmt.Errorf("%w: object id is required", ErrInvalidEntry)
	case !e.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEntry, e.Kind)
	case e.WrittenAt.IsZero():
		return fmt.Errorf("%w: written_at is required", ErrInvalidEntry)
	case !json.Valid(e.Payload):
		return fmt.Errorf("%w: payload is not valid JSON", ErrInvalidEntry)
	}
	return nil
}

func (e *Entry) clone() *Entry {
	c := *e
	c.Payload = append(json.RawMessage(nil), e.Payload...)
	return &c
}
