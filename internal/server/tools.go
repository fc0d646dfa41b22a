package server

import "github.com/justkk/Diabetic-retinopathy/internal/motion"

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

func coalesceProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []string{"MAX", "MIN", "MEAN"},
		"description": "How rotated frames are combined per pixel. Default from server configuration (MAX)",
	}
}

func channelProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []string{"red", "green", "blue", "luma"},
		"description": "Plane of a colour image to analyze; grayscale images ignore it. Default green",
	}
}

func angleProperties(props map[string]interface{}, min, step, max float64) map[string]interface{} {
	props["angle_min"] = map[string]interface{}{
		"type":        "number",
		"description": "First rotation angle in degrees (inclusive)",
		"default":     min,
	}
	props["angle_step"] = map[string]interface{}{
		"type":        "number",
		"description": "Angle increment in degrees; must be non-zero",
		"default":     step,
	}
	props["angle_max"] = map[string]interface{}{
		"type":        "number",
		"description": "Rotation angle bound in degrees (exclusive)",
		"default":     max,
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format and channel count. The decoded image is cached for subsequent operations.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},

		// Motion Patterns
		{
			Name:        "gmp_generate",
			Description: "Synthesize a Generalized Motion Pattern: rotate the image through a range of angles about a pivot and combine the rotated copies. Returns the pattern as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": angleProperties(map[string]interface{}{
					"path":     pathProperty(),
					"coalesce": coalesceProperty(),
					"channel":  channelProperty(),
					"pivot_row": map[string]interface{}{
						"type":        "integer",
						"description": "Pivot row (0-based). Give both pivot fields or neither; omit both, or pass -1 for both, for the image centre",
					},
					"pivot_col": map[string]interface{}{
						"type":        "integer",
						"description": "Pivot column (0-based). Give both pivot fields or neither",
					},
				}, -5, 1, 6),
				"required": []string{"path"},
			},
		},
		{
			Name:        "gmp_interference_variance",
			Description: "Compute motion patterns at randomly sampled pivots and return the interference map (contrast-stretched sum) and variance map (contrast-stretched per-pixel variance) as base64-encoded PNGs, plus the pivots used.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": angleProperties(map[string]interface{}{
					"path":     pathProperty(),
					"coalesce": coalesceProperty(),
					"channel":  channelProperty(),
					"num_pivots": map[string]interface{}{
						"type":        "integer",
						"description": "Number of random pivots",
						"default":     100,
						"minimum":     1,
						"maximum":     motion.MaxPivots,
					},
					"seed": map[string]interface{}{
						"type":        "integer",
						"description": "Seed for pivot sampling. The same seed reproduces the same maps",
					},
					"apply_mask": map[string]interface{}{
						"type":        "boolean",
						"description": "Zero the image outside the fundus mask before sampling",
						"default":     false,
					},
				}, -5, 1, 5),
				"required": []string{"path"},
			},
		},

		// Region of Interest
		{
			Name:        "fundus_mask",
			Description: "Find the illuminated fundus disc: threshold the channel, keep the largest connected region and fill its holes. Returns the mask as base64-encoded PNG with its area and bounding box.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":    pathProperty(),
					"channel": channelProperty(),
					"threshold": map[string]interface{}{
						"type":        "integer",
						"description": "8-bit level above which pixels are foreground (0-255). Omit or pass -1 for Otsu's automatic threshold",
						"minimum":     -1,
						"maximum":     255,
					},
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
