package fusion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/buyergroup-cli/internal/model"
)

func personRecord(provider string, fetched time.Time, fields map[string]any) model.RawRecord {
	return model.RawRecord{
		Provider:   provider,
		EntityType: model.EntityPerson,
		Fields:     fields,
		FetchedAt:  fetched,
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "zoe munoz", Normalize("  Zoë   MUÑOZ "))
	assert.Equal(t, "jane smith", Normalize("Jane Smith"))
}

func TestTokenSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, TokenSimilarity("Jane Smith", "Smith, Jane"))
	assert.InDelta(t, 0.5, TokenSimilarity("Jane Ann Smith", "Jane Smith Jr"), 0.2)
	assert.Equal(t, 0.0, TokenSimilarity("", "Jane Smith"))
}

func TestEmailDomain(t *testing.T) {
	assert.Equal(t, "acme.com", EmailDomain("jane@ACME.com"))
	assert.Equal(t, "", EmailDomain("not-an-email"))
	assert.Equal(t, "", EmailDomain("@acme.com"))
}

func TestFuse_MergesOnExternalID(t *testing.T) {
	now := time.Now()
	f := New(nil, 0.6)

	out := f.Fuse([]model.RawRecord{
		personRecord("companygraph", now, map[string]any{
			model.FieldExternalID: "cg-1", model.FieldName: "Jane Smith", model.FieldTitle: "CFO",
		}),
		personRecord("peopledata", now, map[string]any{
			model.FieldExternalID: "cg-1", model.FieldName: "J. Smith", model.FieldEmail: "jane@acme.com",
		}),
	})

	require.Len(t, out, 1)
	assert.Equal(t, 2, out[0].Records)
	assert.Equal(t, "CFO", out[0].Str(model.FieldTitle))
	assert.Equal(t, "jane@acme.com", out[0].Str(model.FieldEmail))
	assert.True(t, out[0].HasProvider("companygraph"))
	assert.True(t, out[0].HasProvider("peopledata"))
}

func TestFuse_MergesOnNameAndEmployer(t *testing.T) {
	now := time.Now()
	f := New(nil, 0.6)

	out := f.Fuse([]model.RawRecord{
		personRecord("companygraph", now, map[string]any{
			model.FieldName: "Jane Smith", model.FieldEmployer: "Acme Corp",
		}),
		personRecord("peopledata", now, map[string]any{
			model.FieldName: "jane smith", model.FieldEmployer: "ACME CORP",
		}),
	})

	assert.Len(t, out, 1)
}

func TestFuse_SameNameDifferentEmployerStaysSeparate(t *testing.T) {
	now := time.Now()
	f := New(nil, 0.6)

	out := f.Fuse([]model.RawRecord{
		personRecord("companygraph", now, map[string]any{
			model.FieldName: "Jane Smith", model.FieldEmployer: "Acme Corp",
		}),
		personRecord("peopledata", now, map[string]any{
			model.FieldName: "Jane Smith", model.FieldEmployer: "Globex Inc",
		}),
	})

	assert.Len(t, out, 2)
}

func TestFuse_FuzzyStageNeedsDomainAnchor(t *testing.T) {
	now := time.Now()
	f := New(nil, 0.6)

	// Same email domain and similar-enough names: merge.
	out := f.Fuse([]model.RawRecord{
		personRecord("companygraph", now, map[string]any{
			model.FieldName: "Jane A. Smith", model.FieldEmail: "jane@acme.com",
		}),
		personRecord("contactverify", now, map[string]any{
			model.FieldName: "Jane Smith", model.FieldEmail: "jsmith@acme.com",
		}),
	})
	assert.Len(t, out, 1)

	// Similar names without a shared domain stay separate.
	out = f.Fuse([]model.RawRecord{
		personRecord("companygraph", now, map[string]any{
			model.FieldName: "Jane A. Smith", model.FieldEmail: "jane@acme.com",
		}),
		personRecord("contactverify", now, map[string]any{
			model.FieldName: "Jane Smith", model.FieldEmail: "jsmith@globex.com",
		}),
	})
	assert.Len(t, out, 2)
}

func TestFuse_BelowThresholdStaysSeparate(t *testing.T) {
	now := time.Now()
	f := New(nil, 0.9)

	out := f.Fuse([]model.RawRecord{
		personRecord("companygraph", now, map[string]any{
			model.FieldName: "Jane Ann Smith", model.FieldEmail: "jane@acme.com",
		}),
		personRecord("contactverify", now, map[string]any{
			model.FieldName: "Jane Smith", model.FieldEmail: "jsmith@acme.com",
		}),
	})
	assert.Len(t, out, 2)
}

func TestFuse_ReliabilityPicksFieldWinner(t *testing.T) {
	now := time.Now()
	f := New(nil, 0.6)

	out := f.Fuse([]model.RawRecord{
		personRecord("peopledata", now.Add(time.Hour), map[string]any{
			model.FieldExternalID: "x", model.FieldName: "Jane Smith",
			model.FieldEmail: "old@acme.com", model.FieldTitle: "VP Finance",
		}),
		personRecord("contactverify", now, map[string]any{
			model.FieldExternalID: "x", model.FieldName: "Jane Smith",
			model.FieldEmail: "jane@acme.com",
		}),
	})

	require.Len(t, out, 1)
	// contactverify outranks peopledata for email even though its record
	// is older; title comes from the only provider that has one.
	assert.Equal(t, "jane@acme.com", out[0].Str(model.FieldEmail))
	assert.Equal(t, "contactverify", out[0].Fields[model.FieldEmail].Source)
	assert.Equal(t, "VP Finance", out[0].Str(model.FieldTitle))
}

func TestFuse_RankTieGoesToMostRecent(t *testing.T) {
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fresh := old.Add(30 * 24 * time.Hour)
	f := New(nil, 0.6)

	out := f.Fuse([]model.RawRecord{
		personRecord("companygraph", old, map[string]any{
			model.FieldExternalID: "x", model.FieldName: "Jane Smith", model.FieldTitle: "Controller",
		}),
		personRecord("companygraph", fresh, map[string]any{
			model.FieldExternalID: "x", model.FieldName: "Jane Smith", model.FieldTitle: "CFO",
		}),
	})

	require.Len(t, out, 1)
	assert.Equal(t, "CFO", out[0].Str(model.FieldTitle))
}

func TestFuse_AgreementRaisesConfidence(t *testing.T) {
	now := time.Now()
	f := New(nil, 0.6)

	solo := f.Fuse([]model.RawRecord{
		personRecord("companygraph", now, map[string]any{
			model.FieldExternalID: "x", model.FieldName: "Jane Smith", model.FieldTitle: "CFO",
		}),
	})
	corroborated := f.Fuse([]model.RawRecord{
		personRecord("companygraph", now, map[string]any{
			model.FieldExternalID: "x", model.FieldName: "Jane Smith", model.FieldTitle: "CFO",
		}),
		personRecord("peopledata", now, map[string]any{
			model.FieldExternalID: "x", model.FieldName: "Jane Smith", model.FieldTitle: "CFO",
		}),
	})

	require.Len(t, solo, 1)
	require.Len(t, corroborated, 1)
	assert.Greater(t,
		corroborated[0].Confidence(model.FieldTitle),
		solo[0].Confidence(model.FieldTitle))
}

func TestFuse_Deterministic(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	records := []model.RawRecord{
		personRecord("companygraph", now, map[string]any{
			model.FieldName: "Jane Smith", model.FieldEmployer: "Acme Corp",
		}),
		personRecord("companygraph", now, map[string]any{
			model.FieldName: "Bob Jones", model.FieldEmployer: "Acme Corp",
		}),
	}

	f := New(nil, 0.6)
	first := f.Fuse(records)
	second := f.Fuse(records)
	assert.Equal(t, first, second)
}
