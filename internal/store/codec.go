package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nhle/shuttledesk/internal/model"
)

// ErrMalformed marks a stored value that could not be decoded. Loaders
// treat it as empty.
var ErrMalformed = errors.New("malformed stored value")

// DecodeFeed parses a serialized feed. Entries that fail to decode are
// skipped and counted; entries written before event ids existed get a
// fresh id. A value that is not a JSON array returns ErrMalformed.
func DecodeFeed(data []byte) (events []model.ChangeEvent, skipped int, err error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("%w: feed: %v", ErrMalformed, err)
	}

	events = make([]model.ChangeEvent, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		var e model.ChangeEvent
		if err := json.Unmarshal(r, &e); err != nil {
			skipped++
			continue
		}
		if _, dup := seen[e.ID]; e.ID == "" || dup {
			e.ID = uuid.New().String()
		}
		seen[e.ID] = struct{}{}
		events = append(events, e)
	}
	return events, skipped, nil
}

// DecodeSnapshot parses a serialized baseline. Duplicate ids are dropped
// and counted. A value that does not decode returns ErrMalformed.
func DecodeSnapshot(data []byte) (snap model.Snapshot, dropped int, err error) {
	var list []model.Appointment
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, 0, fmt.Errorf("%w: snapshot: %v", ErrMalformed, err)
	}
	snap, dropped = model.NewSnapshot(list)
	return snap, dropped, nil
}
