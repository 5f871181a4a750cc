package voice

import "context"

// ToolHandler runs a tool call. ctx is cancelled when the session ends.
type ToolHandler func(ctx context.Context, args map[string]any) (string, error)

// Tool is a function the remote model can invoke during a session.
type Tool struct {
	// Name is the unique identifier for the tool (e.g., "start_research").
	Name string `json:"name"`

	// Description helps the model decide when to call the tool.
	Description string `json:"description"`

	// Parameters is a JSON schema object:
	//   map[string]any{
	//       "type": "object",
	//       "properties": map[string]any{
	//           "subject": map[string]any{"type": "string"},
	//       },
	//       "required": []string{"subject"},
	//   }
	Parameters map[string]any `json:"parameters"`

	Handler ToolHandler `json:"-"`
}

// Declaration returns the part of t that is sent to the remote endpoint.
func (t Tool) Declaration() ToolDeclaration {
	return ToolDeclaration{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
}

// ToolDeclaration is a tool as announced when the session opens.
type ToolDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolCall is an invocation requested by the remote model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResponse answers exactly one ToolCall.
type ToolResponse struct {
	ID     string
	Name   string
	Result string

	// Failed is set when the result describes an error.
	Failed bool
}
