package persistence

import (
	"bytes"
	"encoding/gob"

	"github.com/petrijr/gantry/pkg/api"
)

func init() {
	// Data maps are map[string]any with JSON-style value types; gob needs
	// the concrete types registered to round-trip the interface values.
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register([]string{})
}

// EncodeSteps serializes a step slice using encoding/gob.
func EncodeSteps(steps []api.Step) ([]byte, error) {
	if steps == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(steps); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeSteps(data []byte) ([]api.Step, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var steps []api.Step
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&steps); err != nil {
		return nil, err
	}
	return steps, nil
}

// EncodeData serializes a workflow data map using encoding/gob. Callers
// must ensure the values are gob-encodable.
func EncodeData(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeData(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

func EncodeHistory(entries []api.HistoryEntry) ([]byte, error) {
	if entries == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeHistory(data []byte) ([]api.HistoryEntry, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var entries []api.HistoryEntry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}
