package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"dogedash/internal/core"
)

// Decode reads a dataset body: a JSON array whose elements are objects or
// null. Null elements become nil records.
func Decode(r io.Reader) ([]core.Record, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: body is null", ErrMalformedData)
	}
	records := make([]core.Record, len(raw))
	for i, item := range raw {
		if bytes.Equal(bytes.TrimSpace(item), []byte("null")) {
			continue
		}
		var rec core.Record
		if err := json.Unmarshal(item, &rec); err != nil {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrMalformedData, i)
		}
		records[i] = rec
	}
	return records, nil
}
