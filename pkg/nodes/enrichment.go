package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quasarerp/automations/pkg/capabilities"
	"github.com/quasarerp/automations/pkg/models"
)

const enrichmentPrompt = `You are a B2B sales researcher. From the website text of a small business, extract:
the decision maker's name (dm_name) and role, a contact email if one is published,
the business's unique selling points (usps), likely marketing pain points (pain_points)
and a short description of its brand voice (brand_voice). Use empty strings or empty
lists when the information is not present. Answer with JSON only.`

// Enricher extracts business intelligence about a lead from its website.
type Enricher struct {
	fetcher   capabilities.Fetcher
	completer capabilities.Completer
}

// NewEnricher creates an Enricher.
func NewEnricher(fetcher capabilities.Fetcher, completer capabilities.Completer) *Enricher {
	return &Enricher{fetcher: fetcher, completer: completer}
}

// Execute enriches the lead. Missing websites and failed fetches are logged and
// skipped; a failed or malformed completion is returned as an error.
func (e *Enricher) Execute(ctx context.Context, req Request) (Outcome, error) {
	outcome := AdvanceOn(models.HandleSource)

	website := capabilities.NormalizeURL(req.Lead.Website)
	if website == "" {
		outcome.Warn("Enrichment skipped: lead has no website")

		return outcome, nil
	}

	outcome.Info("Enrichment started for %s", website)

	text := capabilities.ExtractText(e.fetcher.Fetch(ctx, website), capabilities.MaxPageText)
	if text == "" {
		outcome.Warn("Enrichment skipped: could not read website content")

		return outcome, nil
	}

	content, err := e.completer.Complete(ctx, enrichmentPrompt,
		fmt.Sprintf("Business: %s\nWebsite: %s\n\n%s", req.Lead.Name, website, text),
		capabilities.EnrichmentShape)
	if err != nil {
		return Outcome{}, fmt.Errorf("enrichment failed: %w", err)
	}

	var enriched models.EnrichedData

	err = json.Unmarshal(content, &enriched)
	if err != nil {
		return Outcome{}, fmt.Errorf("enrichment failed: %w: %w", capabilities.ErrMalformedResponse, err)
	}

	outcome.LeadUpdate = &models.LeadUpdate{EnrichedData: &enriched}

	if enriched.DMName != "" {
		outcome.Info("Enrichment complete: decision maker %s (%s)", enriched.DMName, enriched.Role)
	} else {
		outcome.Info("Enrichment complete: no decision maker found")
	}

	return outcome, nil
}
