package notifier

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"custom-alerts-service/internal/models"
)

// renderedAlert is a trigger record enriched with the display labels the
// templates need.
type renderedAlert struct {
	Name       string
	SiteID     int64
	Metric     string
	ReportName string
	Value      string
	Condition  string
}

var textEmailTemplate = texttemplate.Must(texttemplate.New("email_text").Parse(
	`{{range .}}{{.Name}} has been triggered as the metric {{.Metric}}{{if .ReportName}} in report {{.ReportName}}{{end}} on site {{.SiteID}} is {{.Value}} which {{.Condition}}.
{{end}}`))

var htmlEmailTemplate = htmltemplate.Must(htmltemplate.New("email_html").Parse(
	`<html><body>
<p>The following alerts have been triggered:</p>
<ul>
{{range .}}<li><strong>{{.Name}}</strong>: the metric {{.Metric}}{{if .ReportName}} in report {{.ReportName}}{{end}} on site {{.SiteID}} is {{.Value}} which {{.Condition}}.</li>
{{end}}</ul>
</body></html>
`))

// renderEmail renders the consolidated HTML and plain-text bodies for one
// recipient's group. Record order is the group's order (ascending alert id).
func (n *Notifier) renderEmail(ctx context.Context, group []models.TriggeredAlert) (htmlBody, textBody string) {
	enriched := n.enrich(ctx, group)

	var html, text bytes.Buffer
	if err := htmlEmailTemplate.Execute(&html, enriched); err != nil {
		n.logger.Errorf("Failed to render HTML email: %v", err)
	}
	if err := textEmailTemplate.Execute(&text, enriched); err != nil {
		n.logger.Errorf("Failed to render text email: %v", err)
	}
	return html.String(), text.String()
}

// renderSms renders the terse single-line SMS body for one recipient's group.
func (n *Notifier) renderSms(ctx context.Context, group []models.TriggeredAlert) string {
	enriched := n.enrich(ctx, group)

	parts := make([]string, 0, len(enriched))
	for _, a := range enriched {
		parts = append(parts, fmt.Sprintf("%s: %s is %s (site %d)", a.Name, a.Metric, a.Value, a.SiteID))
	}
	return strings.Join(parts, " / ")
}

// enrich resolves display labels for each record. A failing metadata lookup
// falls back to the raw identifiers instead of aborting the message.
func (n *Notifier) enrich(ctx context.Context, group []models.TriggeredAlert) []renderedAlert {
	enriched := make([]renderedAlert, 0, len(group))
	for _, record := range group {
		a := renderedAlert{
			Name:       record.Name,
			SiteID:     record.SiteID,
			Metric:     record.Metric,
			ReportName: record.Report,
			Value:      formatValue(record.ValueNew),
			Condition:  conditionPhrase(record),
		}

		if record.Report != "" {
			if name, err := n.meta.DisplayName(ctx, record.Report); err == nil && name != "" {
				a.ReportName = name
			} else if err != nil {
				n.logger.Warnf("No display name for report %s: %v", record.Report, err)
			}
		}
		if label, err := n.meta.MetricLabel(ctx, record.Report, record.Metric); err == nil && label != "" {
			a.Metric = label
		} else if err != nil {
			n.logger.Warnf("No label for metric %s: %v", record.Metric, err)
		}

		enriched = append(enriched, a)
	}
	return enriched
}

// conditionPhrase spells out why the alert fired, from the snapshot.
func conditionPhrase(t models.TriggeredAlert) string {
	threshold := formatNumber(t.MetricThreshold)
	old := formatValue(t.ValueOld)

	switch t.MetricCondition {
	case models.MetricGreaterThan:
		return fmt.Sprintf("is greater than %s", threshold)
	case models.MetricLessThan:
		return fmt.Sprintf("is less than %s", threshold)
	case models.MetricMatches:
		return fmt.Sprintf("matches %s", threshold)
	case models.MetricIncreased:
		return fmt.Sprintf("increased from %s", old)
	case models.MetricDecreased:
		return fmt.Sprintf("decreased from %s", old)
	case models.MetricChanged:
		return fmt.Sprintf("changed from %s", old)
	case models.MetricIncreasedMoreThan:
		return fmt.Sprintf("increased more than %s%% from %s", threshold, old)
	case models.MetricDecreasedMoreThan:
		return fmt.Sprintf("decreased more than %s%% from %s", threshold, old)
	default:
		return fmt.Sprintf("satisfied %s %s", t.MetricCondition, threshold)
	}
}

func formatValue(v *float64) string {
	if v == nil {
		return "none"
	}
	return formatNumber(*v)
}

func formatNumber(v float64) string {
	return fmt.Sprintf("%g", v)
}
