package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/buyergroup-cli/internal/model"
)

func candidateWith(fetched time.Time, conf float64, fields ...string) model.FusedCandidate {
	c := model.FusedCandidate{
		ID:         "c1",
		EntityType: model.EntityPerson,
		Fields:     map[string]model.FieldValue{},
	}
	for _, f := range fields {
		c.Fields[f] = model.FieldValue{Value: "x", Confidence: conf, FetchedAt: fetched}
	}
	return c
}

func TestQuality_FullFreshCandidateScoresHigh(t *testing.T) {
	now := time.Now()
	q := NewQualityScorer().WithNow(func() time.Time { return now })

	c := candidateWith(now, 0.95,
		model.FieldName, model.FieldTitle, model.FieldEmail, model.FieldPhone,
		model.FieldDepartment, model.FieldSeniority, model.FieldEmployer,
		model.FieldProfileURL, model.FieldConnections, model.FieldCareer)

	score := q.Score(c)
	assert.GreaterOrEqual(t, score.Overall, 90)
	assert.LessOrEqual(t, score.Overall, 100)
	assert.Equal(t, 1.0, score.Freshness)
}

func TestQuality_MissingContactFieldsCostMost(t *testing.T) {
	now := time.Now()
	q := NewQualityScorer().WithNow(func() time.Time { return now })

	full := q.Score(candidateWith(now, 0.9,
		model.FieldName, model.FieldTitle, model.FieldEmail, model.FieldDepartment))
	noEmail := q.Score(candidateWith(now, 0.9,
		model.FieldName, model.FieldTitle, model.FieldDepartment))
	noDept := q.Score(candidateWith(now, 0.9,
		model.FieldName, model.FieldTitle, model.FieldEmail))

	assert.Greater(t, full.Overall, noEmail.Overall)
	assert.Greater(t, noDept.Overall, noEmail.Overall)
	assert.False(t, noEmail.PerField[model.FieldEmail].Present)
}

func TestQuality_StaleDataDecays(t *testing.T) {
	now := time.Now()
	q := NewQualityScorer().WithNow(func() time.Time { return now })

	fresh := q.Score(candidateWith(now, 0.9, model.FieldName, model.FieldTitle, model.FieldEmail))
	stale := q.Score(candidateWith(now.Add(-60*24*time.Hour), 0.9,
		model.FieldName, model.FieldTitle, model.FieldEmail))

	assert.Greater(t, fresh.Overall, stale.Overall)
	assert.GreaterOrEqual(t, stale.Freshness, freshnessFloor)
}

func TestQuality_EmptyCandidate(t *testing.T) {
	q := NewQualityScorer()
	score := q.Score(model.FusedCandidate{Fields: map[string]model.FieldValue{}})
	assert.Equal(t, 0, score.Overall)
}
