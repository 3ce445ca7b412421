package synth

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

var promptTmpl = template.Must(template.New("synth").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`You are an expert test automation engineer.

Change: {{.Title}}

Acceptance Criteria:
{{range .AcceptanceCriteria}}- {{.}}
{{end}}
Code Changes:
{{.Diff}}

File Types Modified: {{join .FileTypes ", "}}

Generate integration and automation test scenarios based on the acceptance criteria and code changes.

Respond with a JSON object only:
{
  "integration_tests": [
    {"name": "test_name", "description": "what this tests", "steps": ["step1"], "expected_outcomes": ["outcome1"], "priority": "high|medium|low"}
  ],
  "automation_tests": [
    {"name": "test_name", "description": "what this tests", "scenario": ["action1"], "assertions": ["assert1"], "priority": "high|medium|low"}
  ],
  "e2e_flows": [
    {"name": "user_journey_name", "description": "what user journey this tests", "steps": ["step1"], "data_setup": ["setup1"]}
  ]
}
`))

func renderPrompt(in Input) (string, error) {
	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, in); err != nil {
		return "", fmt.Errorf("render synth prompt: %w", err)
	}
	return buf.String(), nil
}
