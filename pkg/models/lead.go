package models

import "time"

// EnrichedData is the business intelligence extracted from a lead's website.
type EnrichedData struct {
	DMName     string   `json:"dm_name"`
	Role       string   `json:"role"`
	Email      string   `json:"email"`
	USPs       []string `json:"usps"`
	PainPoints []string `json:"pain_points"`
	BrandVoice string   `json:"brand_voice"`
}

// Lead is owned by the CRM; the engine only touches the fields below.
type Lead struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Company          string        `json:"company,omitempty"`
	Website          string        `json:"website,omitempty"`
	Email            string        `json:"email,omitempty"`
	EnrichedData     *EnrichedData `json:"enriched_data,omitempty"`
	AutomationStatus string        `json:"automation_status,omitempty"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// ContactEmail returns the lead's own email or the enriched decision maker's.
func (l *Lead) ContactEmail() string {
	if l.Email != "" {
		return l.Email
	}

	if l.EnrichedData != nil {
		return l.EnrichedData.Email
	}

	return ""
}

// LeadUpdate is a partial update of the engine-owned lead fields.
type LeadUpdate struct {
	EnrichedData     *EnrichedData
	AutomationStatus *string
}

// Apply writes the update onto lead.
func (u LeadUpdate) Apply(lead *Lead, now time.Time) {
	if u.EnrichedData != nil {
		enriched := *u.EnrichedData
		lead.EnrichedData = &enriched
	}

	if u.AutomationStatus != nil {
		lead.AutomationStatus = *u.AutomationStatus
	}

	lead.UpdatedAt = now
}
