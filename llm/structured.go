package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/lexcodex/planform/framework"
)

// DefaultRetries is how many extra attempts a structured call gets after the
// first response fails to parse or validate.
const DefaultRetries = 2

// StructuredCaller drives every planning-phase LLM call: compose prompt,
// request JSON constrained to a schema, repair and validate the response,
// and decode it into the caller's typed value. One helper, one error kind.
type StructuredCaller struct {
	Model   framework.LanguageModel
	Retries int
}

// NewStructuredCaller builds a caller with the default retry budget.
func NewStructuredCaller(model framework.LanguageModel) *StructuredCaller {
	return &StructuredCaller{Model: model, Retries: DefaultRetries}
}

// Call sends the system and user prompts, asks for output matching schema,
// and decodes into out. Parse or validation failures consume the retry
// budget, with the failure reason fed back to the model; when the budget is
// exhausted the call fails with AgentError.
func (c *StructuredCaller) Call(ctx context.Context, system, user string, schema map[string]interface{}, out interface{}) error {
	messages := []framework.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
	compiled, err := compileSchema(schema)
	if err != nil {
		return framework.AgentErr("invalid output schema", err)
	}
	var lastErr error
	attempts := c.Retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := c.Model.Chat(ctx, messages, &framework.LLMOptions{ResponseSchema: schema})
		if err != nil {
			lastErr = err
			continue
		}
		doc, err := decodeJSON(resp.Text)
		if err != nil {
			lastErr = err
			messages = appendRepairTurn(messages, resp.Text, "response was not valid JSON: "+err.Error())
			continue
		}
		if err := compiled.Validate(doc); err != nil {
			lastErr = err
			messages = appendRepairTurn(messages, resp.Text, "response did not match the required schema: "+err.Error())
			continue
		}
		// Re-encode the validated document so out gets exactly what passed
		// the schema, not the raw text.
		data, err := json.Marshal(doc)
		if err != nil {
			lastErr = err
			continue
		}
		if err := json.Unmarshal(data, out); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return framework.AgentErr("structured llm call failed after retries", lastErr)
}

// decodeJSON extracts the first JSON document from the model output,
// stripping markdown fences and repairing near-miss JSON before giving up.
func decodeJSON(text string) (interface{}, error) {
	candidate := stripFences(text)
	var doc interface{}
	if err := json.Unmarshal([]byte(candidate), &doc); err == nil {
		return doc, nil
	}
	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(repaired), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

func appendRepairTurn(messages []framework.Message, response, problem string) []framework.Message {
	return append(messages,
		framework.Message{Role: "assistant", Content: response},
		framework.Message{Role: "user", Content: "The previous " + problem + ". Reply again with only the corrected JSON."},
	)
}

func compileSchema(schema map[string]interface{}) (*jsonschema.Schema, error) {
	// Round-trip through encoding/json so the compiler sees plain decoded
	// values rather than whatever the caller built the map from.
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, err
	}
	return c.Compile("schema.json")
}

// ObjectSchema is a small helper for building the per-phase output schemas:
// an object with the given properties, all of which are required, and no
// additional keys allowed.
func ObjectSchema(properties map[string]interface{}) map[string]interface{} {
	required := make([]string, 0, len(properties))
	for name := range properties {
		required = append(required, name)
	}
	return map[string]interface{}{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

// ArraySchema builds a schema for a JSON array of items.
func ArraySchema(items map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":  "array",
		"items": items,
	}
}

// StringSchema is the scalar string schema.
func StringSchema() map[string]interface{} {
	return map[string]interface{}{"type": "string"}
}

// StringArraySchema is an array-of-strings schema.
func StringArraySchema() map[string]interface{} {
	return ArraySchema(StringSchema())
}
