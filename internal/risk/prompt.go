package risk

import (
	"bytes"
	"fmt"
	"text/template"
)

var promptTmpl = template.Must(template.New("risk").Parse(`You are an expert release manager assessing deployment risk.

Changes Summary: {{.Summary}}

File Types: {{range $i, $n := .FileTypes.Names}}{{if $i}}, {{end}}{{$n}}{{end}}

Lines Changed: {{.TotalChanges}}

Assess the risk of deploying this change to production. Consider database schema
changes, API contract changes, authentication changes, infrastructure changes,
breaking changes and data migrations.

Respond with a JSON object only:
{
  "risk_score": 0-100,
  "confidence_percentage": 0-100,
  "risk_factors": ["factor1"],
  "recommendations": ["rec1"],
  "requires_manual_review": true|false
}

Risk Score: 0-20=low, 21-50=medium, 51-75=high, 76-100=critical
Confidence: likelihood that this deployment will succeed
`))

func renderPrompt(in Input) (string, error) {
	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, in); err != nil {
		return "", fmt.Errorf("render risk prompt: %w", err)
	}
	return buf.String(), nil
}
