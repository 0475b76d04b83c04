// Package fusion reconciles raw provider records into deduplicated
// candidates. Matching is deliberately conservative: records that cannot
// be tied to the same real person through an external ID, an exact
// name+employer match, or a domain-anchored fuzzy match stay separate,
// because a false merge poisons every downstream score.
package fusion

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/sells-group/buyergroup-cli/internal/model"
)

// Fuser groups raw records into candidates and resolves field conflicts
// through the provider reliability ranking.
type Fuser struct {
	rel       *Reliability
	threshold float64 // token-set similarity needed by the fuzzy stage
}

// New creates a fuser. A nil reliability table uses the defaults; a zero
// threshold uses 0.6.
func New(rel *Reliability, threshold float64) *Fuser {
	if rel == nil {
		rel = DefaultReliability()
	}
	if threshold <= 0 {
		threshold = 0.6
	}
	return &Fuser{rel: rel, threshold: threshold}
}

// cluster accumulates the raw records fusion decided describe one entity.
type cluster struct {
	entityType model.EntityType
	records    []model.RawRecord
}

// Fuse merges records referring to the same real-world entity and
// resolves each field to a single value with provenance and confidence.
// The same input always produces the same output, in the same order.
func (f *Fuser) Fuse(records []model.RawRecord) []model.FusedCandidate {
	var clusters []*cluster
	for _, rec := range records {
		if c := f.match(clusters, rec); c != nil {
			c.records = append(c.records, rec)
			continue
		}
		clusters = append(clusters, &cluster{entityType: rec.EntityType, records: []model.RawRecord{rec}})
	}

	out := make([]model.FusedCandidate, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, f.resolve(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// match runs the three-stage cascade against existing clusters:
// external ID, then normalized name+employer, then email domain anchored
// by token-set name similarity. No stage passing means no merge.
func (f *Fuser) match(clusters []*cluster, rec model.RawRecord) *cluster {
	recID := rec.Str(model.FieldExternalID)
	recName := Normalize(rec.Str(model.FieldName))
	recEmployer := Normalize(rec.Str(model.FieldEmployer))
	recDomain := recordDomain(rec)

	for _, c := range clusters {
		if c.entityType != rec.EntityType {
			continue
		}
		for _, existing := range c.records {
			if recID != "" && recID == existing.Str(model.FieldExternalID) {
				return c
			}

			name := Normalize(existing.Str(model.FieldName))
			if recName == "" || name == "" {
				continue
			}

			employer := Normalize(existing.Str(model.FieldEmployer))
			if recName == name && recEmployer != "" && recEmployer == employer {
				return c
			}

			domain := recordDomain(existing)
			if recDomain != "" && recDomain == domain &&
				TokenSimilarity(recName, name) >= f.threshold {
				return c
			}
		}
	}
	return nil
}

// resolve picks a winner per field: best reliability rank first, most
// recent fetch on rank ties. Confidence reflects rank plus how many
// distinct providers agreed on the winning value.
func (f *Fuser) resolve(c *cluster) model.FusedCandidate {
	fields := make(map[string]model.FieldValue)
	providerSeen := make(map[string]bool)
	var providers []string

	for _, rec := range c.records {
		if !providerSeen[rec.Provider] {
			providerSeen[rec.Provider] = true
			providers = append(providers, rec.Provider)
		}
		for key, value := range rec.Fields {
			if value == nil || value == "" {
				continue
			}
			current, exists := fields[key]
			if !exists || f.wins(key, rec, current) {
				fields[key] = model.FieldValue{
					Value:     value,
					Source:    rec.Provider,
					FetchedAt: rec.FetchedAt,
				}
			}
		}
	}

	for key, fv := range fields {
		fv.Confidence = f.rel.Confidence(key, fv.Source, f.agreeing(c, key, fv.Value))
		fields[key] = fv
	}

	return model.FusedCandidate{
		ID:         candidateID(c.entityType, fields),
		EntityType: c.entityType,
		Fields:     fields,
		Providers:  providers,
		Records:    len(c.records),
	}
}

// wins reports whether rec's value for key beats the current winner.
func (f *Fuser) wins(key string, rec model.RawRecord, current model.FieldValue) bool {
	challenger := f.rel.Rank(key, rec.Provider)
	incumbent := f.rel.Rank(key, current.Source)
	if challenger != incumbent {
		return challenger < incumbent
	}
	return rec.FetchedAt.After(current.FetchedAt)
}

// agreeing counts distinct providers whose records carry the same
// normalized value for key.
func (f *Fuser) agreeing(c *cluster, key string, winner any) int {
	want := Normalize(fmt.Sprint(winner))
	seen := make(map[string]bool)
	for _, rec := range c.records {
		v, ok := rec.Fields[key]
		if !ok || v == nil {
			continue
		}
		if Normalize(fmt.Sprint(v)) == want {
			seen[rec.Provider] = true
		}
	}
	return len(seen)
}

// candidateID derives a stable UUID from the identity fields, so re-fusing
// the same records yields the same candidate IDs.
func candidateID(et model.EntityType, fields map[string]model.FieldValue) string {
	key := string(et)
	for _, field := range []string{model.FieldExternalID, model.FieldName, model.FieldEmployer, model.FieldDomain} {
		if fv, ok := fields[field]; ok {
			key += "|" + Normalize(fmt.Sprint(fv.Value))
		} else {
			key += "|"
		}
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

func recordDomain(rec model.RawRecord) string {
	if d := rec.Str(model.FieldDomain); d != "" {
		return Normalize(d)
	}
	return EmailDomain(rec.Str(model.FieldEmail))
}
