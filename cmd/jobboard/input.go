package main

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decodeInput decodes a JSON document, rejecting unknown fields.
func decodeInput(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	return nil
}
