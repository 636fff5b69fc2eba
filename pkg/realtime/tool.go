package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// FunctionTool is a callable function exposed to the model. The parameter
// schema is derived from the argument type, so the wire definition and
// the invoke signature cannot drift apart.
type FunctionTool struct {
	// Name is the function name the model calls.
	Name string

	// Description describes what the function does.
	Description string

	// Parameters is the JSON Schema for the arguments.
	Parameters *jsonschema.Schema

	invoke func(ctx context.Context, argsJSON string) (string, error)
}

// NewFunctionTool builds a tool whose parameter schema is generated from
// Args. The returned output value is serialized to JSON for the
// function_call_output item.
func NewFunctionTool[Args any](name, description string, fn func(ctx context.Context, args Args) (any, error)) (*FunctionTool, error) {
	schema, err := jsonschema.For[Args](nil)
	if err != nil {
		return nil, wrapError(err, "derive parameter schema")
	}

	return &FunctionTool{
		Name:        name,
		Description: description,
		Parameters:  schema,
		invoke: func(ctx context.Context, argsJSON string) (string, error) {
			var args Args
			if err := repairUnmarshal([]byte(argsJSON), &args); err != nil {
				return "", fmt.Errorf("unmarshal %q: %w", argsJSON, err)
			}
			out, err := fn(ctx, args)
			if err != nil {
				return "", err
			}
			encoded, err := json.Marshal(out)
			if err != nil {
				return "", wrapError(err, "marshal tool output")
			}
			return string(encoded), nil
		},
	}, nil
}

// Definition returns the wire tool definition for session or response
// configuration.
func (t *FunctionTool) Definition() Tool {
	return Tool{
		Type:        "function",
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Parameters,
	}
}

// Call invokes the tool with a raw argument string and returns the
// serialized output.
func (t *FunctionTool) Call(ctx context.Context, argsJSON string) (string, error) {
	return t.invoke(ctx, argsJSON)
}

// ToolDefinitions maps tools to their wire definitions.
func ToolDefinitions(tools []*FunctionTool) []Tool {
	defs := make([]Tool, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, t.Definition())
	}
	return defs
}

// HandleFunctionCall runs a finalized accumulated call through the tool
// set and appends the output to the conversation. The arguments string is
// parsed here, when consumed, never during streaming.
func HandleFunctionCall(ctx context.Context, s Session, tools []*FunctionTool, call *FunctionCallAccum) (*ConversationItem, error) {
	if !call.Done() {
		return nil, fmt.Errorf("realtime: function call %s still streaming", call.CallID())
	}

	name := call.Name()
	var tool *FunctionTool
	for _, t := range tools {
		if t.Name == name {
			tool = t
			break
		}
	}
	if tool == nil {
		return nil, fmt.Errorf("realtime: no tool named %q", name)
	}

	output, err := tool.Call(ctx, call.Arguments())
	if err != nil {
		return nil, err
	}
	return s.AddFunctionCallOutput(ctx, call.CallID(), output)
}
