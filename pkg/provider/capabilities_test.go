package provider

import (
	"testing"

	"github.com/rhuss/modelapi/pkg/api"
)

func TestValidateCapabilities(t *testing.T) {
	tools := []api.ToolInfo{{Name: "add"}}

	tests := []struct {
		name      string
		caps      Capabilities
		tools     []api.ToolInfo
		choice    api.ToolChoice
		wantParam string
	}{
		{
			name: "text request with minimal caps",
			caps: Capabilities{},
		},
		{
			name:      "tools without tool calling support",
			caps:      Capabilities{},
			tools:     tools,
			wantParam: "tools",
		},
		{
			name:   "tools with choice none and no support",
			caps:   Capabilities{},
			tools:  tools,
			choice: api.ToolChoiceNone,
		},
		{
			name:  "tools with tool calling support",
			caps:  Capabilities{ToolCalling: true},
			tools: tools,
		},
		{
			name:      "forced choice unsupported",
			caps:      Capabilities{ToolCalling: true},
			tools:     tools,
			choice:    api.ToolChoiceForced("add"),
			wantParam: "tool_choice",
		},
		{
			name:   "forced choice supported",
			caps:   Capabilities{ToolCalling: true, ForcedToolChoice: true},
			tools:  tools,
			choice: api.ToolChoiceForced("add"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCapabilities(tt.caps, tt.tools, tt.choice)
			if tt.wantParam == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error for param %q", tt.wantParam)
			}
			if err.Param != tt.wantParam {
				t.Errorf("Param = %q, want %q", err.Param, tt.wantParam)
			}
		})
	}
}

func TestSupportedTools(t *testing.T) {
	tools := []api.ToolInfo{{Name: "add"}}

	got, choice := SupportedTools(Capabilities{}, tools, api.ToolChoiceForced("add"))
	if got != nil || !choice.IsNone() {
		t.Errorf("without tool calling: tools=%v choice=%v", got, choice)
	}
	if err := ValidateCapabilities(Capabilities{}, got, choice); err != nil {
		t.Errorf("dropped request still invalid: %v", err)
	}

	got, choice = SupportedTools(Capabilities{ToolCalling: true}, tools, api.ToolChoiceAuto)
	if len(got) != 1 || choice != api.ToolChoiceAuto {
		t.Errorf("with tool calling: tools=%v choice=%v", got, choice)
	}
}
