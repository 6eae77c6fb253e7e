package output

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteJSON marshals any result document with indentation for downstream tools.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}
