package schedule

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Status is the display state of a scheduled class.
type Status string

const (
	StatusPending    Status = "pending"
	StatusWindowOpen Status = "window-open"
	StatusMissed     Status = "missed"
	StatusTaken      Status = "taken"
	StatusHandover   Status = "handover"
	StatusHandedOver Status = "handed over"
	StatusAbsent     Status = "absent"
)

// statusAliases maps normalized spellings seen in stored documents and
// client payloads to the canonical value.
var statusAliases = map[string]Status{
	"pending":     StatusPending,
	"window open": StatusWindowOpen,
	"open":        StatusWindowOpen,
	"missed":      StatusMissed,
	"taken":       StatusTaken,
	"marked":      StatusTaken,
	"handover":    StatusHandover,
	"hand over":   StatusHandover,
	"handed over": StatusHandedOver,
	"handedover":  StatusHandedOver,
	"absent":      StatusAbsent,
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// ParseStatus normalizes any known spelling ("Taken", "Handed Over",
// "window_open", ...) to its canonical Status.
func ParseStatus(s string) (Status, error) {
	if st, ok := statusAliases[normalizeKey(s)]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown class status %q", s)
}

// Valid reports whether s is one of the canonical statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusWindowOpen, StatusMissed, StatusTaken,
		StatusHandover, StatusHandedOver, StatusAbsent:
		return true
	}
	return false
}

// Sticky statuses are facts recorded by someone; the rest are recomputed
// from the clock on every read.
func (s Status) Sticky() bool {
	switch s {
	case StatusTaken, StatusHandover, StatusHandedOver, StatusAbsent:
		return true
	}
	return false
}

// UnmarshalJSON accepts the legacy spellings of each status.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if strings.TrimSpace(raw) == "" {
		*s = ""
		return nil
	}
	st, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// UnmarshalBSONValue normalizes legacy spellings on read. Unknown values are
// kept as-is so a bad document does not fail a whole cursor.
func (s *Status) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	if t == bsontype.Null || t == bsontype.Undefined {
		*s = ""
		return nil
	}
	raw, ok := bson.RawValue{Type: t, Value: data}.StringValueOK()
	if !ok {
		return fmt.Errorf("cannot decode %v into a class status", t)
	}
	if st, err := ParseStatus(raw); err == nil {
		*s = st
		return nil
	}
	*s = Status(raw)
	return nil
}
