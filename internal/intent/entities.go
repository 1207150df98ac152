package intent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/slotwise/booking-assistant/internal/llm"
)

const entityPromptTemplate = `Extract from: %q
Return JSON: {"date": "YYYY-MM-DD", "time": "HH:MM", "duration": minutes, "title": "purpose", "urgency": "High/Medium/Low", "participants": number}`

// ExtractEntities pulls structured details out of the utterance with a
// second model call. Extraction is best-effort: any failure returns an
// empty map, never an error, because the date parser downstream does not
// depend on it.
func (c *Classifier) ExtractEntities(ctx context.Context, text string) map[string]any {
	resp, err := c.client.Complete(ctx, llm.Request{
		Model:       c.modelID,
		Messages:    []llm.ChatMessage{{Role: llm.ChatRoleUser, Content: fmt.Sprintf(entityPromptTemplate, text)}},
		MaxTokens:   256,
		Temperature: 0,
	})
	if err != nil {
		c.logger.Debug("entity extraction skipped", "error", err.Error())
		return map[string]any{}
	}

	raw := extractJSON(resp.Text)
	if raw == "" {
		return map[string]any{}
	}
	var entities map[string]any
	if err := json.Unmarshal([]byte(raw), &entities); err != nil {
		c.logger.Debug("entity extraction parse failed", "error", err.Error())
		return map[string]any{}
	}
	return entities
}
