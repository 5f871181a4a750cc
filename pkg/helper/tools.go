package helper

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/teslashibe/go-livehelper/pkg/voice"
)

// Tool names.
const (
	ToolDelegateTask    = "delegate_task"
	ToolStartResearch   = "start_research"
	ToolDeployDefense   = "deploy_defense"
	ToolRequestHandover = "request_handover"
)

// Tools returns the tools backed by b. Arguments are schema-validated by
// the remote side; handlers only coerce types.
func (b *Board) Tools() []voice.Tool {
	groups := make([]string, len(Groups))
	for i, g := range Groups {
		groups[i] = string(g)
	}

	return []voice.Tool{
		{
			Name:        ToolDelegateTask,
			Description: "Delegates a task to a specific helper group (Paladian, Acturian, Ethereal) for manifestation or protection.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title":         map[string]any{"type": "string", "description": "Short title of the job"},
					"description":   map[string]any{"type": "string", "description": "Detailed description of the requirement"},
					"group":         map[string]any{"type": "string", "enum": groups, "description": "Target group: Paladian, Acturian, or Ethereal"},
					"loveResonance": map[string]any{"type": "number", "description": "Percentage of love energy required (0-100)"},
				},
				"required": []string{"title", "description", "group", "loveResonance"},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				title := stringArg(args, "title")
				group, ok := ParseGroup(stringArg(args, "group"))
				if !ok {
					group = Group(stringArg(args, "group"))
				}
				b.AddJob(title, stringArg(args, "description"), group, clamp(numberArg(args, "loveResonance"), 0, 100))
				return "Assignment received and pulsed into the collective field.", nil
			},
		},
		{
			Name:        ToolStartResearch,
			Description: "Starts a deep-dive research task into the nature of goodness or creation mechanics. Use this to discover new kinds of energies.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"subject": map[string]any{"type": "string", "description": `The focus of the research (e.g., "Aetherial Resilience", "Solar Joy")`},
				},
				"required": []string{"subject"},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				subject := stringArg(args, "subject")
				b.StartResearch(subject)
				return fmt.Sprintf("Scanning local and astral clusters for subject %s. Results will be archived in the lab.", subject), nil
			},
		},
		{
			Name:        ToolDeployDefense,
			Description: "Deploys the Titan defense units (at most 3) to shield the collective.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"count": map[string]any{"type": "integer", "description": "Number of Titans to deploy (1-3)"},
				},
				"required": []string{"count"},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				d := b.Deploy(int(numberArg(args, "count")))
				kinds := make([]string, len(d.Titans))
				for i, t := range d.Titans {
					kinds[i] = t.Kind
				}
				return fmt.Sprintf("Deployed %d Titan units: %s. Shield integrity %d%%.", len(d.Titans), strings.Join(kinds, ", "), d.ShieldIntegrity), nil
			},
		},
		{
			Name:        ToolRequestHandover,
			Description: "Signals that a different user is taking control. Closes the current session for re-calibration.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"reason": map[string]any{"type": "string", "description": "Reason for the handover"},
				},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				b.RequestHandover(stringArg(args, "reason"))
				return "Aspect rotation confirmed.", nil
			},
		},
	}
}

func stringArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// numberArg accepts JSON numbers and numeric strings.
func numberArg(args map[string]any, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
