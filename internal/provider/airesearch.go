package provider

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/buyergroup-cli/internal/model"
	"github.com/sells-group/buyergroup-cli/internal/planner"
	"github.com/sells-group/buyergroup-cli/pkg/anthropic"
)

const researchSystemPrompt = `You are a B2B sales research analyst. Given a
person's role at a company, produce concise intelligence for a seller
approaching them. Respond with only a JSON object with three string
fields: "motivations" (what this person is likely optimizing for),
"pain_points" (problems their role typically struggles with) and
"outreach_angle" (one concrete way to open a conversation).`

// AIResearchAdapter generates narrative intelligence per candidate:
// motivations, pain points and an outreach angle.
type AIResearchAdapter struct {
	client anthropic.Client
	model  string
}

// NewAIResearchAdapter wires the Anthropic client. An empty model uses
// the fast tier.
func NewAIResearchAdapter(client anthropic.Client, modelID string) *AIResearchAdapter {
	if modelID == "" {
		modelID = "claude-haiku-4-5-20251001"
	}
	return &AIResearchAdapter{client: client, model: modelID}
}

func (a *AIResearchAdapter) Name() string { return planner.ProviderAIResearch }

func (a *AIResearchAdapter) Operations() []string {
	return []string{planner.OpDeepResearch}
}

func (a *AIResearchAdapter) CostEstimate(string) float64 { return 0.08 }

func (a *AIResearchAdapter) Fetch(ctx context.Context, q Query) ([]model.RawRecord, float64, error) {
	if q.Operation != planner.OpDeepResearch {
		return nil, 0, eris.Errorf("airesearch: unsupported operation %s", q.Operation)
	}
	if q.Candidate == nil {
		return nil, 0, eris.New("airesearch: deep_research needs a candidate")
	}

	prompt := buildResearchPrompt(q)
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: 1024,
		System:    researchSystemPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, 0, err
	}

	cost := resp.Usage.EstimateCost(a.model)
	resp.Usage.LogCost(a.model, "deep_research")

	var parsed struct {
		Motivations   string `json:"motivations"`
		PainPoints    string `json:"pain_points"`
		OutreachAngle string `json:"outreach_angle"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &parsed); err != nil {
		// Cost was incurred even though the output is unusable.
		return nil, cost, eris.Wrap(err, "airesearch: parse response")
	}

	record := model.RawRecord{
		Provider:   a.Name(),
		EntityType: model.EntityPerson,
		Fields: map[string]any{
			model.FieldName:        q.Candidate.Str(model.FieldName),
			model.FieldExternalID:  q.Candidate.Str(model.FieldExternalID),
			model.FieldEmployer:    q.Candidate.Str(model.FieldEmployer),
			model.FieldMotivations: parsed.Motivations,
			model.FieldPainPoints:  parsed.PainPoints,
			model.FieldOutreach:    parsed.OutreachAngle,
		},
		CostUSD:   cost,
		FetchedAt: time.Now(),
	}
	return []model.RawRecord{record}, cost, nil
}

func buildResearchPrompt(q Query) string {
	var b strings.Builder
	b.WriteString("Person: " + q.Candidate.Str(model.FieldName) + "\n")
	b.WriteString("Title: " + q.Candidate.Str(model.FieldTitle) + "\n")
	b.WriteString("Company: " + q.CompanyName + "\n")
	if dept := q.Candidate.Str(model.FieldDepartment); dept != "" {
		b.WriteString("Department: " + dept + "\n")
	}
	if career := q.Candidate.Str(model.FieldCareer); career != "" {
		b.WriteString("Career history: " + career + "\n")
	}
	return b.String()
}

// extractJSON tolerates prose or fencing around the JSON object.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}
	return text[start : end+1]
}
