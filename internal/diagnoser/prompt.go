package diagnoser

import (
	"encoding/json"
	"fmt"

	"github.com/aqrpole/kube-ai-sre-agent/internal/model"
)

// systemPrompt frames the assistant role for every backend. Kept short on
// purpose: the incident context carries the facts.
const systemPrompt = "You are an SRE incident analysis assistant.\n" +
	"Provide short cause and memory recommendation."

// userPrompt renders the incident context as indented JSON under a fixed
// instruction line.
func userPrompt(cx model.IncidentContext) (string, error) {
	body, err := json.MarshalIndent(cx, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling incident context: %w", err)
	}
	return "Look at the Kubernetes incident:\n\n" + string(body), nil
}
