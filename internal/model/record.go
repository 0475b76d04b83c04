package model

import "time"

// EntityType distinguishes person records from company records.
type EntityType string

const (
	EntityPerson  EntityType = "person"
	EntityCompany EntityType = "company"
)

// Canonical field keys shared across providers. Adapters translate their
// native response shapes into these keys; nothing provider-native crosses
// the adapter boundary.
const (
	FieldName        = "name"
	FieldTitle       = "title"
	FieldDepartment  = "department"
	FieldSeniority   = "seniority"
	FieldEmail       = "email"
	FieldPhone       = "phone"
	FieldProfileURL  = "profile_url"
	FieldEmployer    = "employer"
	FieldExternalID  = "external_id"
	FieldConnections = "connections"
	FieldDomain      = "domain"
	FieldMotivations = "motivations"
	FieldPainPoints  = "pain_points"
	FieldOutreach    = "outreach_angle"
	FieldCareer      = "career_history"
)

// RawRecord is one provider's view of an entity. It is owned by the
// adapter that produced it until handed to fusion.
type RawRecord struct {
	Provider   string         `json:"provider"`
	EntityType EntityType     `json:"entity_type"`
	Fields     map[string]any `json:"fields"`
	CostUSD    float64        `json:"cost_usd"`
	FetchedAt  time.Time      `json:"fetched_at"`
}

// Str returns a field value as a string, or "" when absent or not a string.
func (r RawRecord) Str(key string) string {
	if v, ok := r.Fields[key].(string); ok {
		return v
	}
	return ""
}

// Int returns a numeric field value as an int, tolerating the float64
// shape JSON decoding produces.
func (r RawRecord) Int(key string) int {
	switch v := r.Fields[key].(type) {
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
