package tenantconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Record is the persisted configuration of one tenant. Empty Model and nil
// Temperature mean "use the static default".
type Record struct {
	Credential  string
	Model       string
	Temperature *float64
}

// ErrEmptyPayload is returned when a stored object has no content.
var ErrEmptyPayload = errors.New("tenantconfig: empty payload")

// storedRecord is the current on-disk schema.
type storedRecord struct {
	APIKey      string   `json:"api_key"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// Encode serializes a record in the current schema.
func Encode(r Record) ([]byte, error) {
	return json.Marshal(storedRecord{
		APIKey:      r.Credential,
		Model:       r.Model,
		Temperature: r.Temperature,
	})
}

// A recordDecoder claims a payload (ok=true) and decodes it, or declines
// so the next decoder can try.
type recordDecoder func(payload []byte) (rec Record, ok bool, err error)

// decoders are tried in order: current schema first, then the legacy
// bare-credential format written by early installations.
var decoders = []recordDecoder{decodeStructured, decodeLegacy}

// Decode parses a stored payload in any supported format.
func Decode(payload []byte) (Record, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return Record{}, ErrEmptyPayload
	}
	for _, dec := range decoders {
		rec, ok, err := dec(payload)
		if !ok {
			continue
		}
		return rec, err
	}
	return Record{}, fmt.Errorf("tenantconfig: unrecognized payload")
}

func decodeStructured(payload []byte) (Record, bool, error) {
	if payload[0] != '{' {
		return Record{}, false, nil
	}
	var s storedRecord
	if err := json.Unmarshal(payload, &s); err != nil {
		return Record{}, true, fmt.Errorf("decode record: %w", err)
	}
	return Record{Credential: s.APIKey, Model: s.Model, Temperature: s.Temperature}, true, nil
}

func decodeLegacy(payload []byte) (Record, bool, error) {
	return Record{Credential: string(payload)}, true, nil
}
