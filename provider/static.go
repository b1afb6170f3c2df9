// Package provider contains a static in-memory DataProvider used by the
// demo binary and the tests. Production deployments supply their own
// implementation of interfaces.DataProvider.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/vitalsync/device-transfer-backend/interfaces"
)

// Static serves pre-encoded samples from memory, keyed by category.
type Static struct {
	mu         sync.RWMutex
	categories []categoryData
}

type categoryData struct {
	identifier  string
	displayName string
	items       []json.RawMessage
}

// New creates an empty provider.
func New() *Static {
	return &Static{}
}

// NewDemo creates a provider seeded with a few small sample categories, so
// the binary serves something meaningful out of the box.
func NewDemo() *Static {
	p := New()
	p.AddCategory("steps", "Step Count", []json.RawMessage{
		json.RawMessage(`{"date":"2026-08-20","value":10412,"unit":"count"}`),
		json.RawMessage(`{"date":"2026-08-21","value":8377,"unit":"count"}`),
		json.RawMessage(`{"date":"2026-08-22","value":12050,"unit":"count"}`),
	})
	p.AddCategory("heart_rate", "Heart Rate", []json.RawMessage{
		json.RawMessage(`{"timestamp":"2026-08-22T07:31:00Z","value":58,"unit":"bpm"}`),
		json.RawMessage(`{"timestamp":"2026-08-22T12:02:00Z","value":74,"unit":"bpm"}`),
	})
	p.AddCategory("workouts", "Workouts", []json.RawMessage{
		json.RawMessage(`{"date":"2026-08-21","activity":"running","durationMinutes":42}`),
	})
	return p
}

// NewFromFile loads categories from a JSON file shaped as
// {"categories":[{"identifier":...,"displayName":...,"items":[...]}]}.
func NewFromFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading provider data: %w", err)
	}

	var file struct {
		Categories []struct {
			Identifier  string            `json:"identifier"`
			DisplayName string            `json:"displayName"`
			Items       []json.RawMessage `json:"items"`
		} `json:"categories"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decoding provider data: %w", err)
	}

	p := New()
	for _, c := range file.Categories {
		p.AddCategory(c.Identifier, c.DisplayName, c.Items)
	}
	return p, nil
}

// AddCategory registers (or replaces) a category and its items.
func (p *Static) AddCategory(identifier, displayName string, items []json.RawMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.categories {
		if p.categories[i].identifier == identifier {
			p.categories[i] = categoryData{identifier, displayName, items}
			return
		}
	}
	p.categories = append(p.categories, categoryData{identifier, displayName, items})
}

// Categories implements interfaces.DataProvider.
func (p *Static) Categories(ctx context.Context) ([]interfaces.DataCategory, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]interfaces.DataCategory, 0, len(p.categories))
	for _, c := range p.categories {
		out = append(out, interfaces.DataCategory{
			Identifier:  c.identifier,
			DisplayName: c.displayName,
			SampleCount: len(c.items),
		})
	}
	return out, nil
}

// Samples implements interfaces.DataProvider.
func (p *Static) Samples(ctx context.Context, category string, offset, limit int) ([]json.RawMessage, int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, c := range p.categories {
		if c.identifier != category {
			continue
		}
		total := len(c.items)
		if offset < 0 {
			offset = 0
		}
		if offset >= total {
			return []json.RawMessage{}, total, nil
		}
		end := offset + limit
		if limit <= 0 || end > total {
			end = total
		}
		return c.items[offset:end], total, nil
	}
	return nil, 0, fmt.Errorf("%w: %q", interfaces.ErrUnknownCategory, category)
}
