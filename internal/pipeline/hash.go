package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
)

// BuildRunInputs assembles the logical input set of one pipeline
// request. Dates are encoded as ISO day strings so the hash does not
// depend on time zones or sub-day precision.
func BuildRunInputs(version string, asOf time.Time, scope map[string]interface{}, mode contracts.RunMode, emitExports bool) map[string]interface{} {
	return map[string]interface{}{
		"pipeline_version": version,
		"as_of_date":       contracts.Day(asOf).Format(contracts.DateOnly),
		"scope_filters":    scope,
		"mode":             string(mode),
		"emit_exports":     emitExports,
	}
}

// CanonicalHash fingerprints a logical input set. Logically identical
// inputs always hash identically: map ordering does not matter because
// JSON encoding sorts keys, and absent optionals hash the same as
// explicit nulls because both are dropped before encoding.
func CanonicalHash(inputs map[string]interface{}) (string, error) {
	cleaned := clean(inputs)
	if cleaned == nil {
		cleaned = map[string]interface{}{}
	}

	data, err := json.Marshal(cleaned)
	if err != nil {
		return "", fmt.Errorf("encode canonical inputs: %w", err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// clean strips nils, empty strings, and empty containers recursively.
// Returns nil when the value itself is empty after cleaning.
func clean(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if val == "" {
			return nil
		}
		return val
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			if cleaned := clean(inner); cleaned != nil {
				out[k] = cleaned
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []interface{}:
		out := make([]interface{}, 0, len(val))
		for _, inner := range val {
			if cleaned := clean(inner); cleaned != nil {
				out = append(out, cleaned)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []string:
		out := make([]interface{}, 0, len(val))
		for _, s := range val {
			if s != "" {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return val
	}
}
