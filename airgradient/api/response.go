package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// measuresEnvelope is the wrapped shape some proxies return instead of a
// bare array.
type measuresEnvelope struct {
	JSON json.RawMessage `json:"json"`
}

// ParseMeasures normalizes the vendor's measure list responses. A bare
// array and an envelope of the form {"json": [...]} both decode to the
// list; any other JSON value is an empty list.
func ParseMeasures(body []byte) ([]Measure, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return []Measure{}, nil
	}

	switch trimmed[0] {
	case '[':
		return decodeMeasureArray(trimmed)
	case '{':
		var envelope measuresEnvelope
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("failed to unmarshal measures envelope: %w", err)
		}

		inner := bytes.TrimSpace(envelope.JSON)
		if len(inner) == 0 || inner[0] != '[' {
			return []Measure{}, nil
		}

		return decodeMeasureArray(inner)
	default:
		return []Measure{}, nil
	}
}

func decodeMeasureArray(data []byte) ([]Measure, error) {
	measures := []Measure{}
	if err := json.Unmarshal(data, &measures); err != nil {
		return nil, fmt.Errorf("failed to unmarshal measures: %w", err)
	}

	return measures, nil
}
