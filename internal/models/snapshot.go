package models

import (
	"time"

	"github.com/goccy/go-json"
)

// * Snapshot is the last successful response body for one resource request
type Snapshot struct {
	Resource  string          `json:"resource"`
	Key       string          `json:"key"`
	Body      json.RawMessage `json:"body"`
	FetchedAt time.Time       `json:"fetched_at"`
}
