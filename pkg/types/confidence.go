// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ConfidenceKind records which wire shape a Confidence was decoded from.
type ConfidenceKind string

const (
	ConfidenceAbsent ConfidenceKind = ""
	ConfidenceNumber ConfidenceKind = "number"
	ConfidenceObject ConfidenceKind = "object"
	ConfidenceString ConfidenceKind = "string"
)

// Confidence is a judge confidence as it appears on the wire. Models return
// it as a bare number (0.85 or 85), a numeric string ("85%"), or an object
// with a score key ({"score": 0.85}). Decode once at the boundary and use
// Value everywhere else.
type Confidence struct {
	Kind ConfidenceKind
	Raw  float64
}

// UnmarshalJSON accepts the number, string, and object shapes.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Confidence{}
		return nil
	}

	switch data[0] {
	case '{':
		var obj struct {
			Score *float64 `json:"score"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("decoding confidence object: %w", err)
		}
		if obj.Score == nil {
			return fmt.Errorf("confidence object has no score")
		}
		*c = Confidence{Kind: ConfidenceObject, Raw: *obj.Score}
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding confidence string: %w", err)
		}
		v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
		if err != nil {
			return fmt.Errorf("confidence %q is not numeric", s)
		}
		*c = Confidence{Kind: ConfidenceString, Raw: v}
	default:
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decoding confidence: %w", err)
		}
		*c = Confidence{Kind: ConfidenceNumber, Raw: v}
	}
	return nil
}

// MarshalJSON always writes the normalized number.
func (c Confidence) MarshalJSON() ([]byte, error) {
	if c.Kind == ConfidenceAbsent {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value())
}

// Present reports whether a confidence was supplied.
func (c Confidence) Present() bool { return c.Kind != ConfidenceAbsent }

// Value normalizes the raw value to [0,1]. Values in (1,100] are read as
// percentages; anything else out of range is clamped.
func (c Confidence) Value() float64 {
	v := c.Raw
	if v > 1 && v <= 100 {
		v /= 100
	}
	return ClampUnit(v)
}
