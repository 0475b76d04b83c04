package model

import "time"

// FieldValue is one reconciled field on a fused candidate, with the
// provenance and confidence fusion derived from source agreement.
type FieldValue struct {
	Value      any       `json:"value"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// FusedCandidate is the reconciled view of one real-world person or
// company, built from one or more raw records. A candidate never contains
// records fusion determined to refer to different real-world entities.
type FusedCandidate struct {
	ID         string                `json:"id"`
	EntityType EntityType            `json:"entity_type"`
	Fields     map[string]FieldValue `json:"fields"`
	Providers  []string              `json:"providers"` // provenance, in contribution order
	Records    int                   `json:"records"`   // raw records merged into this candidate
}

// Str returns a canonical field as a string, or "" when absent.
func (c FusedCandidate) Str(key string) string {
	if fv, ok := c.Fields[key]; ok {
		if s, ok := fv.Value.(string); ok {
			return s
		}
	}
	return ""
}

// Int returns a canonical field as an int, or 0 when absent.
func (c FusedCandidate) Int(key string) int {
	fv, ok := c.Fields[key]
	if !ok {
		return 0
	}
	switch v := fv.Value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Confidence returns the per-field confidence, or 0 when the field is unset.
func (c FusedCandidate) Confidence(key string) float64 {
	if fv, ok := c.Fields[key]; ok {
		return fv.Confidence
	}
	return 0
}

// HasProvider reports whether the given provider contributed to this
// candidate.
func (c FusedCandidate) HasProvider(name string) bool {
	for _, p := range c.Providers {
		if p == name {
			return true
		}
	}
	return false
}

// QualityScore is the 0-100 completeness/confidence score attached to a
// candidate, with the per-field breakdown used for display and for
// cache-eviction decisions.
type QualityScore struct {
	Overall   int                     `json:"overall"`
	PerField  map[string]FieldQuality `json:"per_field"`
	Freshness float64                 `json:"freshness"` // 0-1 recency factor
}

// FieldQuality is one field's contribution to the quality score.
type FieldQuality struct {
	Present    bool    `json:"present"`
	Confidence float64 `json:"confidence"`
	Weight     float64 `json:"weight"`
}
