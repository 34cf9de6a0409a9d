// internal/orchestrator/prompt.go
package orchestrator

import (
	"fmt"
	"strings"

	"query-orchestrator/internal/models"
)

// buildSynthesisPrompt assembles the answer-generation prompt from the
// query, recent history, and fused evidence. An extra instruction is
// appended on validation retries.
func buildSynthesisPrompt(query *models.Query, evidence *models.FusedEvidence, extraInstruction string) string {
	var parts []string

	parts = append(parts, "You are a helpful assistant. Answer the user's question based ONLY on the provided evidence.")

	if len(query.History) > 0 {
		parts = append(parts, "\nRecent conversation:")
		history := query.History
		if len(history) > 6 {
			history = history[len(history)-6:]
		}
		for _, turn := range history {
			parts = append(parts, fmt.Sprintf("%s: %s", turn.Role, turn.Text))
		}
	}

	parts = append(parts, fmt.Sprintf("\nUser Question: %s", query.Text))

	if evidence != nil && !evidence.Empty() {
		parts = append(parts, "\nEvidence:")
		for _, item := range evidence.Items {
			parts = append(parts, fmt.Sprintf("- [%s] %s", item.ProviderID, item.Payload))
		}
	} else {
		parts = append(parts, "\nEvidence: none available.")
	}

	parts = append(parts, "\nInstructions:")
	parts = append(parts, "- Use only facts present in the evidence")
	parts = append(parts, "- If the evidence is empty or insufficient, say clearly that you do not have current data")
	parts = append(parts, "- Do not invent dates, numbers, or names")
	parts = append(parts, "- Keep the response concise and conversational")
	if extraInstruction != "" {
		parts = append(parts, "- "+extraInstruction)
	}

	parts = append(parts, "\nAnswer:")

	return strings.Join(parts, "\n")
}
