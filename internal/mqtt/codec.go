package mqtt

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DecodeBool accepts exactly "true" or "false", case-insensitive.
func DecodeBool(payload []byte) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(string(payload))) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("%w: expected true or false, got %q", ErrInvalidPayload, payload)
}

// EncodeBool is the inverse of DecodeBool.
func EncodeBool(v bool) []byte {
	return []byte(strconv.FormatBool(v))
}

// DecodeFloat parses a finite decimal number.
func DecodeFloat(payload []byte) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: non-finite number %q", ErrInvalidPayload, payload)
	}
	return v, nil
}

// DecodeObject parses a JSON object payload.
func DecodeObject(payload []byte) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidPayload)
	}
	return out, nil
}
