package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/rhuss/modelapi/pkg/api"
)

func TestFunctions_Execute(t *testing.T) {
	fns := NewFunctions()
	fns.Register(api.ToolInfo{Name: "add"}, func(_ context.Context, args map[string]any) (string, error) {
		a, _ := args["a"].(float64)
		b, _ := args["b"].(float64)
		if a+b == 4 {
			return "4", nil
		}
		return "", errors.New("wrong arithmetic")
	})
	fns.Register(api.ToolInfo{Name: "boom"}, func(context.Context, map[string]any) (string, error) {
		panic("kaboom")
	})

	if fns.Register(api.ToolInfo{Name: "add"}, nil) {
		t.Error("duplicate registration should be refused")
	}
	if !fns.CanExecute("add") || fns.CanExecute("sub") {
		t.Error("CanExecute mismatch")
	}

	tests := []struct {
		name     string
		call     api.ToolCall
		wantText string
		wantErr  string
	}{
		{"success", api.ToolCall{ID: "c1", Function: "add", Arguments: map[string]any{"a": 1.0, "b": 3.0}}, "4", ""},
		{"function error", api.ToolCall{ID: "c2", Function: "add"}, "Error: wrong arithmetic", ErrorTypeExecution},
		{"panic", api.ToolCall{ID: "c3", Function: "boom"}, `Error: internal error: tool "boom" panicked`, ErrorTypeExecution},
		{"unknown", api.ToolCall{ID: "c4", Function: "sub"}, `Error: no function handles tool "sub"`, ErrorTypeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := fns.Execute(context.Background(), tt.call)
			if err != nil {
				t.Fatalf("Execute returned error: %v", err)
			}
			if msg.Role != api.RoleTool || msg.ToolCallID != tt.call.ID || msg.Function != tt.call.Function {
				t.Errorf("message identity = %+v", msg)
			}
			if msg.Text() != tt.wantText {
				t.Errorf("Text() = %q, want %q", msg.Text(), tt.wantText)
			}
			if tt.wantErr != "" && (msg.Error == nil || msg.Error.Type != tt.wantErr) {
				t.Errorf("Error = %+v, want type %q", msg.Error, tt.wantErr)
			}
		})
	}
}

func TestFunctions_ToolsInRegistrationOrder(t *testing.T) {
	fns := NewFunctions()
	fns.Register(api.ToolInfo{Name: "zeta"}, nil)
	fns.Register(api.ToolInfo{Name: "alpha"}, nil)

	infos, _ := fns.Tools(context.Background())
	if len(infos) != 2 || infos[0].Name != "zeta" {
		t.Errorf("Tools() = %+v", infos)
	}
	if names := fns.Names(); names[0] != "alpha" {
		t.Errorf("Names() = %v, want sorted", names)
	}
}

func TestFunctions_Kind(t *testing.T) {
	if k := NewFunctions().Kind(); k != ToolKindFunction {
		t.Errorf("Kind() = %v, want function", k)
	}
}
