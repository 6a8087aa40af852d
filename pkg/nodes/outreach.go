package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/quasarerp/automations/pkg/capabilities"
	"github.com/quasarerp/automations/pkg/credentials"
	"github.com/quasarerp/automations/pkg/models"
	"github.com/quasarerp/automations/pkg/template"
)

const outreachPrompt = `You are an expert cold email copywriter for a digital marketing agency.
Write a short, personal, plain-text email to the lead below. Follow the operator's
subject and body guidance, use the research notes to personalise it, match the
lead's brand voice and never invent facts. Answer with JSON {"subject", "body"} only.`

// Outreacher sends a personalised cold email to a lead.
type Outreacher struct {
	credentials credentials.Store
	completer   capabilities.Completer
	mailer      capabilities.Mailer
}

// NewOutreacher creates an Outreacher.
func NewOutreacher(
	store credentials.Store,
	completer capabilities.Completer,
	mailer capabilities.Mailer,
) *Outreacher {
	return &Outreacher{credentials: store, completer: completer, mailer: mailer}
}

// Execute sends the email. It pauses when the mail credential is absent or
// rejected.
func (o *Outreacher) Execute(ctx context.Context, req Request, data models.OutreachData) (Outcome, error) {
	token, err := o.credentials.Get(ctx, credentials.KindMail)
	if err != nil {
		return Outcome{}, fmt.Errorf("outreach failed: %w", err)
	}

	if token == "" {
		outcome := Outcome{Kind: Pause}
		outcome.Warn("Outreach paused: mail account not connected")

		return outcome, nil
	}

	to := req.Lead.ContactEmail()
	if to == "" {
		return Outcome{}, fmt.Errorf("outreach failed: %w", ErrNoRecipient)
	}

	subject, err := template.RenderForLead(data.Subject, req.Lead)
	if err != nil {
		return Outcome{}, fmt.Errorf("outreach failed: %w", err)
	}

	body, err := template.RenderForLead(data.Body, req.Lead)
	if err != nil {
		return Outcome{}, fmt.Errorf("outreach failed: %w", err)
	}

	content, err := o.completer.Complete(ctx, outreachPrompt, outreachBrief(req.Lead, subject, body),
		capabilities.OutreachShape)
	if err != nil {
		return Outcome{}, fmt.Errorf("outreach failed: %w", err)
	}

	var email struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}

	err = json.Unmarshal(content, &email)
	if err != nil {
		return Outcome{}, fmt.Errorf("outreach failed: %w: %w", capabilities.ErrMalformedResponse, err)
	}

	threadID, err := o.mailer.Send(ctx, token, to, email.Subject, email.Body)
	if errors.Is(err, capabilities.ErrCredentialRejected) {
		outcome := Outcome{Kind: Pause}
		outcome.Warn("Outreach paused: mail account rejected the credential, reconnect it to resume")

		return outcome, nil
	}

	if err != nil {
		return Outcome{}, fmt.Errorf("outreach failed: %w", err)
	}

	outcome := AdvanceOn(models.HandleSource)
	outcome.LastThreadID = threadID
	outcome.Info("Email sent to %s: %q", to, email.Subject)

	return outcome, nil
}

func outreachBrief(lead *models.Lead, subject, body string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Lead: %s\n", lead.Name)

	if lead.Company != "" {
		fmt.Fprintf(&b, "Company: %s\n", lead.Company)
	}

	if lead.Website != "" {
		fmt.Fprintf(&b, "Website: %s\n", lead.Website)
	}

	if enriched := lead.EnrichedData; enriched != nil {
		fmt.Fprintf(&b, "Decision maker: %s (%s)\n", enriched.DMName, enriched.Role)
		fmt.Fprintf(&b, "USPs: %s\n", strings.Join(enriched.USPs, "; "))
		fmt.Fprintf(&b, "Pain points: %s\n", strings.Join(enriched.PainPoints, "; "))
		fmt.Fprintf(&b, "Brand voice: %s\n", enriched.BrandVoice)
	}

	fmt.Fprintf(&b, "\nSubject guidance: %s\nBody guidance: %s\n", subject, body)

	return b.String()
}
