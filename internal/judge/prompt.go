// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package judge

import (
	"bytes"
	"text/template"
)

// stagingPromptTmpl is sent with every image. It asks for one JSON object so
// that parseVerdict can read the reply from either backend.
var stagingPromptTmpl = template.Must(template.New("staging").Parse(`You are staging the estrous cycle of a laboratory mouse from a photograph of the external vaginal opening.

Choose exactly one stage:
- Proestrus: opening gaping, tissue swollen, pink to red and moist, striations may be visible on the dorsal and ventral lips.
- Estrus: opening gaping, tissue less swollen and less moist than proestrus, pink, prominent striations.
- Metestrus: opening not gaping, tissue not swollen, pale and dry, white cellular debris may line the inner edge.
- Diestrus: opening small and closed, tissue not swollen, no striations, may be moist.

Respond with a JSON object and nothing else:
{"stage": "<Proestrus|Estrus|Metestrus|Diestrus|Uncertain>", "confidence": <0.0-1.0>, "features": {"swelling": "...", "color": "...", "moisture": "...", "opening": "...", "striations": "..."}, "rationale": "<one sentence>"}

Use "Uncertain" only if the opening is not visible.
`))

// renderPrompt executes the staging prompt template.
func renderPrompt() (string, error) {
	var buf bytes.Buffer
	if err := stagingPromptTmpl.Execute(&buf, nil); err != nil {
		return "", err
	}
	return buf.String(), nil
}
