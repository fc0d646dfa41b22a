package server

import (
	"testing"

	"github.com/justkk/Diabetic-retinopathy/internal/config"
	"github.com/justkk/Diabetic-retinopathy/internal/motion"
)

func toolByName(t *testing.T, name string) Tool {
	t.Helper()
	for _, tool := range GetToolDefinitions() {
		if tool.Name == name {
			return tool
		}
	}
	t.Fatalf("tool %s not found", name)
	return Tool{}
}

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	expectedTools := []string{
		"image_load",
		"image_dimensions",
		"gmp_generate",
		"gmp_interference_variance",
		"fundus_mask",
	}
	if len(tools) != len(expectedTools) {
		t.Errorf("tool count: got %d, want %d", len(tools), len(expectedTools))
	}

	toolMap := make(map[string]Tool)
	for _, tool := range tools {
		if _, dup := toolMap[tool.Name]; dup {
			t.Errorf("duplicate tool %s", tool.Name)
		}
		toolMap[tool.Name] = tool
	}
	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("InputSchema type: got %v, want 'object'", tool.InputSchema["type"])
			}
			props, ok := tool.InputSchema["properties"].(map[string]interface{})
			if !ok || len(props) == 0 {
				t.Fatal("InputSchema properties missing")
			}

			required, ok := tool.InputSchema["required"].([]string)
			if !ok || len(required) != 1 || required[0] != "path" {
				t.Errorf("required: got %v, want [path]", tool.InputSchema["required"])
			}
			for _, r := range required {
				if _, ok := props[r]; !ok {
					t.Errorf("required parameter %s has no property", r)
				}
			}
		})
	}
}

func TestToolDefinitions_CoalesceEnum(t *testing.T) {
	for _, name := range []string{"gmp_generate", "gmp_interference_variance"} {
		props := toolByName(t, name).InputSchema["properties"].(map[string]interface{})
		prop, ok := props["coalesce"].(map[string]interface{})
		if !ok {
			t.Fatalf("%s: coalesce property missing", name)
		}
		enum, ok := prop["enum"].([]string)
		if !ok || len(enum) != 3 || enum[0] != "MAX" || enum[1] != "MIN" || enum[2] != "MEAN" {
			t.Errorf("%s: coalesce enum got %v", name, prop["enum"])
		}
	}
}

// The advertised defaults must match what the server applies when an
// argument is omitted.
func TestToolDefinitions_DefaultsMatchConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	tests := []struct {
		tool   string
		param  string
		expect interface{}
	}{
		{"gmp_generate", "angle_min", cfg.GMP.Angles.Min},
		{"gmp_generate", "angle_step", cfg.GMP.Angles.Step},
		{"gmp_generate", "angle_max", cfg.GMP.Angles.Max},
		{"gmp_interference_variance", "angle_min", cfg.Aggregate.Angles.Min},
		{"gmp_interference_variance", "angle_step", cfg.Aggregate.Angles.Step},
		{"gmp_interference_variance", "angle_max", cfg.Aggregate.Angles.Max},
		{"gmp_interference_variance", "num_pivots", cfg.Aggregate.NumPivots},
		{"gmp_interference_variance", "apply_mask", cfg.Aggregate.ApplyMask},
	}

	for _, tt := range tests {
		props := toolByName(t, tt.tool).InputSchema["properties"].(map[string]interface{})
		param, ok := props[tt.param].(map[string]interface{})
		if !ok {
			t.Errorf("%s.%s: parameter not found", tt.tool, tt.param)
			continue
		}
		if got := param["default"]; got != tt.expect {
			t.Errorf("%s.%s: default got %v (%T), want %v (%T)", tt.tool, tt.param, got, got, tt.expect, tt.expect)
		}
	}
}

func TestToolDefinitions_FundusThresholdRange(t *testing.T) {
	props := toolByName(t, "fundus_mask").InputSchema["properties"].(map[string]interface{})
	threshold := props["threshold"].(map[string]interface{})
	if threshold["minimum"] != -1 || threshold["maximum"] != 255 {
		t.Errorf("threshold range: got [%v, %v], want [-1, 255]", threshold["minimum"], threshold["maximum"])
	}
}

func TestToolDefinitions_NumPivotsRange(t *testing.T) {
	props := toolByName(t, "gmp_interference_variance").InputSchema["properties"].(map[string]interface{})
	numPivots := props["num_pivots"].(map[string]interface{})
	if numPivots["minimum"] != 1 || numPivots["maximum"] != motion.MaxPivots {
		t.Errorf("num_pivots range: got [%v, %v], want [1, %d]", numPivots["minimum"], numPivots["maximum"], motion.MaxPivots)
	}
}

func TestHandleToolsList(t *testing.T) {
	s := newTestServer()
	resp := s.handleToolsList(&MCPRequest{JSONRPC: "2.0", ID: 1})

	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	toolsList, ok := result["tools"].([]Tool)
	if !ok {
		t.Fatal("tools should be a slice of Tool")
	}
	if len(toolsList) != len(GetToolDefinitions()) {
		t.Errorf("Tool count: got %d, want %d", len(toolsList), len(GetToolDefinitions()))
	}
}
