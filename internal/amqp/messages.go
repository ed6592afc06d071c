package amqp

import (
	"encoding/json"
	"time"
)

// DatasetLoaded announces the first successful load of a dataset kind.
type DatasetLoaded struct {
	Kind      string    `json:"kind"`
	Records   int       `json:"records"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDatasetLoaded creates a message stamped with the current time
func NewDatasetLoaded(kind string, records int, source string) *DatasetLoaded {
	return &DatasetLoaded{
		Kind:      kind,
		Records:   records,
		Source:    source,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *DatasetLoaded) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DatasetLoadedFromJSON creates a message from JSON bytes
func DatasetLoadedFromJSON(data []byte) (*DatasetLoaded, error) {
	var msg DatasetLoaded
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
