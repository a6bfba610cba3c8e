package api

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// ComputeStepFingerprint hashes a step's type and configuration. The engine
// stores the fingerprint at workflow creation and compares it on config
// updates: an unchanged fingerprint makes UpdateStepConfig a no-op, a
// changed one invalidates the step and everything that depends on it.
//
// Map iteration order does not influence the result: keys are hashed in
// sorted order. Nested maps and slices are rendered through fmt, which is
// stable for the JSON-style value types workflow configs are made of.
func ComputeStepFingerprint(stepType string, config map[string]any) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(stepType)
	_, _ = d.WriteString("\x00")
	writeConfig(d, config)
	return d.Sum64()
}

func writeConfig(d *xxhash.Digest, config map[string]any) {
	keys := make([]string, 0, len(config))
	for k := range config {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		_, _ = d.WriteString(k)
		_, _ = d.WriteString("=")
		writeValue(d, config[k])
		_, _ = d.WriteString("\x00")
	}
}

func writeValue(d *xxhash.Digest, v any) {
	switch t := v.(type) {
	case map[string]any:
		_, _ = d.WriteString("{")
		writeConfig(d, t)
		_, _ = d.WriteString("}")
	case []any:
		_, _ = d.WriteString("[")
		for _, e := range t {
			writeValue(d, e)
			_, _ = d.WriteString(",")
		}
		_, _ = d.WriteString("]")
	default:
		_, _ = fmt.Fprintf(d, "%v", v)
	}
}
