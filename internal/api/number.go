package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FlexibleNumber decodes a JSON number, a numeric string, an empty string or
// null. Empty and null leave it unset.
type FlexibleNumber struct {
	Value *float64
}

// Number returns a set FlexibleNumber.
func Number(v float64) FlexibleNumber {
	return FlexibleNumber{Value: &v}
}

// IsZero reports whether the number is unset so omitempty-style encoders can
// skip it.
func (n FlexibleNumber) IsZero() bool {
	return n.Value == nil
}

func (n *FlexibleNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		n.Value = nil
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		raw = strings.TrimSpace(text)
		if raw == "" {
			n.Value = nil
			return nil
		}
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("invalid number %q", raw)
	}
	n.Value = &value
	return nil
}

func (n FlexibleNumber) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}
