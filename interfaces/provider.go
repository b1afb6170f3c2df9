package interfaces

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrUnknownCategory is returned by Samples when the category identifier does
// not map to any known data category.
var ErrUnknownCategory = errors.New("unknown data category")

// DataCategory describes one queryable category of on-device data.
type DataCategory struct {
	// Identifier is the stable machine-readable category name, e.g. "steps".
	Identifier string `json:"identifier"`

	// DisplayName is the human-readable category name.
	DisplayName string `json:"displayName"`

	// SampleCount is the number of items currently stored in this category.
	SampleCount int `json:"sampleCount"`
}

// DataProvider is the external data source queried by the transfer API. The
// provider owns the data domain and its encoding; this subsystem only pages
// through pre-encoded items.
type DataProvider interface {
	// Categories lists the available data categories with item counts.
	Categories(ctx context.Context) ([]DataCategory, error)

	// Samples returns up to limit pre-encoded items of the given category
	// starting at offset, together with the category's total item count.
	// Returns ErrUnknownCategory for an unrecognized identifier.
	Samples(ctx context.Context, category string, offset, limit int) (items []json.RawMessage, total int, err error)
}
