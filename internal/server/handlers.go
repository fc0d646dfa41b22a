package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/justkk/Diabetic-retinopathy/internal/detection"
	"github.com/justkk/Diabetic-retinopathy/internal/imaging"
	"github.com/justkk/Diabetic-retinopathy/internal/motion"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "gmp_generate").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// errInvalidArguments marks arguments that could not be decoded.
var errInvalidArguments = errors.New("invalid arguments")

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Arguments the tool rejects (undecodable JSON, invalid parameters, pivots or
// channels that do not fit the image) return code -32602. Any other tool
// failure returns code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	start := time.Now()
	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool failed", "tool", params.Name, "err", err)
		if isParameterError(err) {
			return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
		}
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}
	s.logger.Debug("tool done", "tool", params.Name, "elapsed", time.Since(start).Round(time.Millisecond))

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

func isParameterError(err error) bool {
	return errors.Is(err, errInvalidArguments) ||
		errors.Is(err, motion.ErrInvalidParameter) ||
		errors.Is(err, imaging.ErrShapeMismatch)
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies the server configuration for omitted parameters
//  3. Loads images from cache as needed
//  4. Calls the appropriate imaging/motion/detection function
//  5. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)

	// Motion Patterns
	case "gmp_generate":
		return s.handleGMPGenerate(ctx, args)
	case "gmp_interference_variance":
		return s.handleInterferenceVariance(ctx, args)

	// Region of Interest
	case "fundus_mask":
		return s.handleFundusMask(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing arguments", errInvalidArguments)
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidArguments, err)
	}
	return nil
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Motion Pattern Handlers ===

// patternArgs holds the arguments shared by both motion pattern tools.
// Pointer fields distinguish an omitted value from an explicit zero.
type patternArgs struct {
	Path      string   `json:"path"`
	Coalesce  string   `json:"coalesce"`
	AngleMin  *float64 `json:"angle_min"`
	AngleStep *float64 `json:"angle_step"`
	AngleMax  *float64 `json:"angle_max"`
	Channel   string   `json:"channel"`
}

// resolve fills omitted arguments from the given defaults.
func (a patternArgs) resolve(policy motion.Coalesce, angles motion.AngleRange, channel imaging.Channel) (motion.Coalesce, motion.AngleRange, imaging.Channel, error) {
	var err error
	if a.Coalesce != "" {
		if policy, err = motion.ParseCoalesce(a.Coalesce); err != nil {
			return 0, angles, 0, err
		}
	}
	if a.AngleMin != nil {
		angles.Min = *a.AngleMin
	}
	if a.AngleStep != nil {
		angles.Step = *a.AngleStep
	}
	if a.AngleMax != nil {
		angles.Max = *a.AngleMax
	}
	if a.Channel != "" {
		if channel, err = imaging.ParseChannel(a.Channel); err != nil {
			return 0, angles, 0, err
		}
	}
	return policy, angles, channel, nil
}

type gmpGenerateArgs struct {
	patternArgs
	PivotRow *int `json:"pivot_row"`
	PivotCol *int `json:"pivot_col"`
}

// GMPResult is the result of the gmp_generate tool.
type GMPResult struct {
	Coalesce   string            `json:"coalesce"`
	Angles     motion.AngleRange `json:"angles"`
	AngleCount int               `json:"angle_count"`
	Pivot      motion.Pivot      `json:"pivot"`
	Channel    string            `json:"channel"`
	*imaging.EncodedImage
}

func (s *Server) handleGMPGenerate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a gmpGenerateArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	policy, angles, channel, err := a.resolve(s.cfg.GMP.Coalesce, s.cfg.GMP.Angles, s.cfg.GMP.Channel)
	if err != nil {
		return nil, err
	}
	pivot := s.cfg.GMP.Pivot()
	if (a.PivotRow == nil) != (a.PivotCol == nil) {
		return nil, fmt.Errorf("%w: pivot_row and pivot_col must be given together", errInvalidArguments)
	}
	if a.PivotRow != nil {
		pivot = motion.Pivot{Row: *a.PivotRow, Col: *a.PivotCol}
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	gen := s.gen
	if channel != s.cfg.GMP.Channel {
		opts := s.cfg.GeneratorOptions(s.logger)
		opts.Channel = channel
		gen = motion.NewGenerator(opts)
	}
	gmp, err := gen.Generate(ctx, img, policy, angles, pivot)
	if err != nil {
		return nil, err
	}

	enc, err := imaging.EncodePNGBase64(gmp)
	if err != nil {
		return nil, err
	}
	b := gmp.Bounds()
	return &GMPResult{
		Coalesce:     policy.String(),
		Angles:       angles,
		AngleCount:   angles.Count(),
		Pivot:        pivot.Resolve(b.Dy(), b.Dx()),
		Channel:      channel.String(),
		EncodedImage: enc,
	}, nil
}

type interferenceVarianceArgs struct {
	patternArgs
	NumPivots *int    `json:"num_pivots"`
	Seed      *uint64 `json:"seed"`
	ApplyMask *bool   `json:"apply_mask"`
}

// InterferenceVarianceResult is the result of the gmp_interference_variance tool.
type InterferenceVarianceResult struct {
	Coalesce        string                `json:"coalesce"`
	Angles          motion.AngleRange     `json:"angles"`
	NumPivots       int                   `json:"num_pivots"`
	Pivots          []motion.Pivot        `json:"pivots"`
	Masked          bool                  `json:"masked"`
	InterferenceMap *imaging.EncodedImage `json:"interference_map"`
	VarianceMap     *imaging.EncodedImage `json:"variance_map"`
}

func (s *Server) handleInterferenceVariance(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a interferenceVarianceArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	policy, angles, channel, err := a.resolve(s.cfg.Aggregate.Coalesce, s.cfg.Aggregate.Angles, s.cfg.GMP.Channel)
	if err != nil {
		return nil, err
	}
	numPivots := s.cfg.Aggregate.NumPivots
	if a.NumPivots != nil {
		numPivots = *a.NumPivots
	}
	applyMask := s.cfg.Aggregate.ApplyMask
	if a.ApplyMask != nil {
		applyMask = *a.ApplyMask
	}

	opts := s.cfg.AggregateOptions(s.logger)
	opts.Channel = channel
	if a.Seed != nil {
		opts.Rand = motion.NewRand(*a.Seed)
	}
	agg := motion.NewAggregator(opts)

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	var maps *motion.Maps
	if applyMask {
		maps, err = s.aggregateMasked(ctx, agg, img, channel, numPivots, policy, angles)
	} else {
		maps, err = agg.Aggregate(ctx, img, numPivots, policy, angles)
	}
	if err != nil {
		return nil, err
	}

	interference, err := imaging.EncodePNGBase64(maps.Interference)
	if err != nil {
		return nil, err
	}
	variance, err := imaging.EncodePNGBase64(maps.Variance)
	if err != nil {
		return nil, err
	}
	return &InterferenceVarianceResult{
		Coalesce:        policy.String(),
		Angles:          angles,
		NumPivots:       numPivots,
		Pivots:          maps.Pivots,
		Masked:          applyMask,
		InterferenceMap: interference,
		VarianceMap:     variance,
	}, nil
}

// aggregateMasked zeroes the working channel outside the fundus mask before
// aggregating.
func (s *Server) aggregateMasked(ctx context.Context, agg *motion.Aggregator, img image.Image, channel imaging.Channel, numPivots int, policy motion.Coalesce, angles motion.AngleRange) (*motion.Maps, error) {
	src, mask, err := detection.MaskedChannel(img, channel, s.cfg.Mask)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("fundus mask applied", "area", mask.Area(), "threshold", mask.Threshold)
	return agg.AggregateGrid(ctx, src, numPivots, policy, angles)
}

// === Region of Interest Handlers ===

type fundusMaskArgs struct {
	Path      string `json:"path"`
	Threshold *int   `json:"threshold"`
	Channel   string `json:"channel"`
}

// BoundsResult is an inclusive top-left, exclusive bottom-right rectangle.
type BoundsResult struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// FundusMaskResult is the result of the fundus_mask tool.
type FundusMaskResult struct {
	Threshold int          `json:"threshold"`
	Area      int          `json:"area"`
	Coverage  float64      `json:"coverage"`
	Bounds    BoundsResult `json:"bounds"`
	*imaging.EncodedImage
}

func (s *Server) handleFundusMask(args json.RawMessage) (interface{}, error) {
	var a fundusMaskArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	opts := s.cfg.Mask
	if a.Threshold != nil {
		opts.Threshold = *a.Threshold
	}
	if a.Channel != "" {
		ch, err := imaging.ParseChannel(a.Channel)
		if err != nil {
			return nil, err
		}
		opts.Channel = ch
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	mask, err := detection.FundusMask(img, opts)
	if err != nil {
		return nil, err
	}

	enc, err := imaging.EncodePNGBase64(mask.Image())
	if err != nil {
		return nil, err
	}
	b := mask.Bounds()
	area := mask.Area()
	return &FundusMaskResult{
		Threshold:    mask.Threshold,
		Area:         area,
		Coverage:     float64(area) / float64(mask.Width*mask.Height),
		Bounds:       BoundsResult{X1: b.Min.X, Y1: b.Min.Y, X2: b.Max.X, Y2: b.Max.Y},
		EncodedImage: enc,
	}, nil
}
