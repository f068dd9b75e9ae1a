package diagnostics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/paperlyzer/analysis-service/internal/webhook"
)

// CheckWebhookWiring is the name of the webhook wiring check.
const CheckWebhookWiring = "webhook_wiring"

// Prober probes the configured webhook endpoints.
type Prober interface {
	Probe(ctx context.Context) []webhook.ProbeResult
}

// WebhookWiringCheck verifies the n8n webhook endpoints answer HTTP.
// A 404 from a reachable host means the workflow's webhook node is not
// registered, which is the most common misconfiguration.
type WebhookWiringCheck struct {
	prober Prober
}

// NewWebhookWiringCheck creates the webhook wiring check.
func NewWebhookWiringCheck(prober Prober) *WebhookWiringCheck {
	return &WebhookWiringCheck{prober: prober}
}

// Name implements Check.
func (c *WebhookWiringCheck) Name() string { return CheckWebhookWiring }

// Run implements Check.
func (c *WebhookWiringCheck) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	for _, probe := range c.prober.Probe(ctx) {
		switch {
		case !probe.Reachable:
			detail := "endpoint unreachable"
			if probe.Error != "" {
				detail = probe.Error
			}
			result.Findings = append(result.Findings, Finding{
				Check:    c.Name(),
				Severity: SeverityWarning,
				Entity:   fmt.Sprintf("webhook %s (%s)", probe.Endpoint, probe.URL),
				Detail:   detail,
			})
		case probe.StatusCode == http.StatusNotFound:
			result.Findings = append(result.Findings, Finding{
				Check:    c.Name(),
				Severity: SeverityWarning,
				Entity:   fmt.Sprintf("webhook %s (%s)", probe.Endpoint, probe.URL),
				Detail:   "host reachable but webhook path not registered (HTTP 404)",
			})
		default:
			result.Findings = append(result.Findings, Finding{
				Check:    c.Name(),
				Severity: SeverityInfo,
				Entity:   fmt.Sprintf("webhook %s", probe.Endpoint),
				Detail:   fmt.Sprintf("reachable, HTTP %d in %s", probe.StatusCode, probe.Latency.Round(time.Millisecond)),
			})
		}
	}

	return result, nil
}
