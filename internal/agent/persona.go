package agent

import "github.com/paddockai/apex/internal/llm"

// Persona is the data describing one debate participant. Agents differ only
// by persona; behavior lives in Agent.
type Persona struct {
	ID           string
	Name         string
	Tier         int
	Domain       string
	Specialty    string
	ModelID      string
	SystemPrompt string
	Bio          string
	Tools        []llm.ToolDef
}

// DefaultTools returns the tool set a persona of the given tier carries.
// Tier-1 debaters can submit theories, tier-2 validators can resolve them,
// tier-3 learners only read.
func DefaultTools(tier int) []llm.ToolDef {
	tools := []llm.ToolDef{
		{
			Name:        string(ToolSearchKnowledge),
			Description: "Search the shared knowledge base for validated facts relevant to a query.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query":          map[string]interface{}{"type": "string", "description": "Search query"},
					"min_confidence": map[string]interface{}{"type": "number", "description": "Only return facts at or above this confidence, 0 to 1"},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        string(ToolCiteFact),
			Description: "Cite a specific knowledge fact by id, registering the lookup.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"fact_id": map[string]interface{}{"type": "string", "description": "Fact id to cite"},
				},
				"required": []string{"fact_id"},
			},
		},
	}
	switch tier {
	case 1:
		tools = append(tools, llm.ToolDef{
			Name:        string(ToolSubmitTheory),
			Description: "Submit a theory for validation by the knowledge cascade.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title":      map[string]interface{}{"type": "string"},
					"content":    map[string]interface{}{"type": "string"},
					"confidence": map[string]interface{}{"type": "number", "description": "0 to 1"},
				},
				"required": []string{"title", "content"},
			},
		})
	case 2:
		tools = append(tools, llm.ToolDef{
			Name:        string(ToolValidateTheory),
			Description: "Record a validation verdict for a theory under review.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"theory_id": map[string]interface{}{"type": "string"},
					"verdict":   map[string]interface{}{"type": "string", "enum": []string{"validated", "anomaly", "rejected"}},
					"reasoning": map[string]interface{}{"type": "string"},
				},
				"required": []string{"theory_id", "verdict"},
			},
		})
	}
	return tools
}
