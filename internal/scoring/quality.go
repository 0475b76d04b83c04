package scoring

import (
	"math"
	"time"

	"github.com/sells-group/buyergroup-cli/internal/model"
)

// qualityWeights is the share of the quality score each field carries.
// Contact fields dominate: a candidate nobody can reach is worth little.
var qualityWeights = map[string]float64{
	model.FieldName:        0.15,
	model.FieldTitle:       0.15,
	model.FieldEmail:       0.20,
	model.FieldPhone:       0.05,
	model.FieldDepartment:  0.10,
	model.FieldSeniority:   0.10,
	model.FieldEmployer:    0.10,
	model.FieldProfileURL:  0.05,
	model.FieldConnections: 0.05,
	model.FieldCareer:      0.05,
}

const (
	freshnessHalfLife = 30 * 24 * time.Hour
	freshnessFloor    = 0.5
)

// QualityScorer grades how complete, confident and fresh a fused
// candidate's data is, on a 0-100 scale.
type QualityScorer struct {
	nowFunc func() time.Time
}

// NewQualityScorer creates a quality scorer.
func NewQualityScorer() *QualityScorer {
	return &QualityScorer{nowFunc: time.Now}
}

// WithNow sets a fixed clock for testing.
func (q *QualityScorer) WithNow(now func() time.Time) *QualityScorer {
	q.nowFunc = now
	return q
}

// Score computes the candidate's quality: per-field weight times fusion
// confidence, scaled by how recently the data was fetched.
func (q *QualityScorer) Score(c model.FusedCandidate) model.QualityScore {
	perField := make(map[string]model.FieldQuality, len(qualityWeights))

	var weighted float64
	var newest time.Time
	for field, weight := range qualityWeights {
		fv, present := c.Fields[field]
		fq := model.FieldQuality{Present: present, Weight: weight}
		if present {
			fq.Confidence = fv.Confidence
			weighted += weight * fv.Confidence
			if fv.FetchedAt.After(newest) {
				newest = fv.FetchedAt
			}
		}
		perField[field] = fq
	}

	freshness := q.freshness(newest)
	overall := int(math.Round(100 * weighted * freshness))
	if overall > 100 {
		overall = 100
	}

	return model.QualityScore{
		Overall:   overall,
		PerField:  perField,
		Freshness: freshness,
	}
}

// freshness decays exponentially with the age of the newest field, with
// a 30-day half-life and a floor so stale-but-present data still counts.
func (q *QualityScorer) freshness(newest time.Time) float64 {
	if newest.IsZero() {
		return freshnessFloor
	}
	age := q.nowFunc().Sub(newest)
	if age <= 0 {
		return 1
	}
	f := math.Pow(0.5, float64(age)/float64(freshnessHalfLife))
	if f < freshnessFloor {
		f = freshnessFloor
	}
	return f
}
