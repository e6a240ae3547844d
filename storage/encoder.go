package storage

import (
	"encoding/json"
	"fmt"
)

// EncodeEvent encodes an event as JSON
func EncodeEvent(ev *Event) ([]byte, error) {
	if ev == nil {
		return nil, fmt.Errorf("event cannot be nil")
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return data, nil
}

// DecodeEvent decodes an event from JSON
func DecodeEvent(data []byte) (*Event, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: data cannot be empty", ErrInvalidData)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return &ev, nil
}
