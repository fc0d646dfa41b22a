package main

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/justkk/Diabetic-retinopathy/internal/config"
	"github.com/justkk/Diabetic-retinopathy/internal/detection"
	"github.com/justkk/Diabetic-retinopathy/internal/imaging"
	"github.com/justkk/Diabetic-retinopathy/internal/motion"
)

var (
	optGMPOutput          string
	optInterferenceOutput string
	optVarianceOutput     string
	optMaskOutput         string
	optSaveConfig         string
)

var gmpCmd = &cobra.Command{
	Use:   "gmp <image>",
	Short: "Write the motion pattern of one image",
	Long: `Rotate the image through the configured angles about the pivot and combine
the rotated copies with the coalesce policy (MAX, MIN or MEAN).

Examples:

  retina-gmp gmp fundus.jpg -o gmp.png
  retina-gmp gmp fundus.jpg --coalesce MEAN --angle-min -10 --angle-max 11 --pivot-row 120 --pivot-col 200
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		img, err := imaging.NewImageCache(1).Load(args[0])
		if err != nil {
			return err
		}

		start := time.Now()
		gen := motion.NewGenerator(cfg.GeneratorOptions(logger))
		gmp, err := gen.Generate(ctx, img, cfg.GMP.Coalesce, cfg.GMP.Angles, cfg.GMP.Pivot())
		if err != nil {
			return err
		}
		if err := save(gmp, optGMPOutput); err != nil {
			return err
		}
		logger.Info("motion pattern written",
			"coalesce", cfg.GMP.Coalesce,
			"angles", cfg.GMP.Angles,
			"pivot", cfg.GMP.Pivot().Resolve(gmp.Rect.Dy(), gmp.Rect.Dx()),
			"elapsed", time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var intvarCmd = &cobra.Command{
	Use:   "intvar <image>",
	Short: "Write the interference and variance maps of one image",
	Long: `Draw random pivots, compute a motion pattern at each, and write the
contrast-stretched sum (interference) and per-pixel variance of the patterns.

A non-zero --seed makes the pivots, and so both maps, reproducible.

Examples:

  retina-gmp intvar fundus.jpg --num-pivots 100 --seed 42
  retina-gmp intvar fundus.jpg --mask --interference int.png --variance var.png
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		img, err := imaging.NewImageCache(1).Load(args[0])
		if err != nil {
			return err
		}

		start := time.Now()
		agg := motion.NewAggregator(cfg.AggregateOptions(logger))
		a := cfg.Aggregate
		var maps *motion.Maps
		if a.ApplyMask {
			src, mask, err := detection.MaskedChannel(img, cfg.GMP.Channel, cfg.Mask)
			if err != nil {
				return err
			}
			logger.Info("fundus mask applied", "area", humanize.Comma(int64(mask.Area())), "threshold", mask.Threshold)
			maps, err = agg.AggregateGrid(ctx, src, a.NumPivots, a.Coalesce, a.Angles)
			if err != nil {
				return err
			}
		} else if maps, err = agg.Aggregate(ctx, img, a.NumPivots, a.Coalesce, a.Angles); err != nil {
			return err
		}

		for path, m := range map[string]*image.Gray{
			optInterferenceOutput: maps.Interference,
			optVarianceOutput:     maps.Variance,
		} {
			if err := save(m, path); err != nil {
				return err
			}
		}
		logger.Info("maps written",
			"pivots", len(maps.Pivots),
			"workers", a.Workers,
			"elapsed", time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var maskCmd = &cobra.Command{
	Use:   "mask <image>",
	Short: "Write the fundus mask of one image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := imaging.NewImageCache(1).Load(args[0])
		if err != nil {
			return err
		}
		mask, err := detection.FundusMask(img, cfg.Mask)
		if err != nil {
			return err
		}
		if err := save(mask.Image(), optMaskOutput); err != nil {
			return err
		}
		logger.Info("fundus mask written",
			"threshold", mask.Threshold,
			"area", humanize.Comma(int64(mask.Area())),
			"bounds", mask.Bounds())
		return nil
	},
}

var iniCmd = &cobra.Command{
	Use:   "ini <file> [section]",
	Short: "Inspect or apply an INI parameter file",
	Long: `With only a file, print its sections as JSON.

With a section, overlay the section's parameters onto the current
configuration and print the result as YAML, or write it with --save for use
with --config.

Examples:

  retina-gmp ini params.ini
  retina-gmp ini params.ini messidor --save messidor.yaml
`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sections, err := config.ParseINI(args[0])
		if err != nil {
			return err
		}
		if len(args) == 1 {
			out, err := json.MarshalIndent(sections, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		ignored, err := sections.Apply(cfg, args[1])
		if err != nil {
			return err
		}
		if len(ignored) > 0 {
			logger.Warn("keys without a parameter were ignored", "section", args[1], "keys", ignored)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("section %s: %w", args[1], err)
		}

		if optSaveConfig != "" {
			if err := config.SaveConfig(cfg, optSaveConfig); err != nil {
				return err
			}
			logger.Info("configuration written", "path", optSaveConfig)
			return nil
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

// save writes img and logs the size of the written file.
func save(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return err
	}
	if fi, err := os.Stat(path); err == nil {
		logger.Debug("image saved", "path", path, "size", humanize.Bytes(uint64(fi.Size())))
	}
	return nil
}

func init() {
	d := config.DefaultConfig()

	flags := gmpCmd.Flags()
	flags.StringVarP(&optGMPOutput, "output", "o", "gmp.png", "Output image (format from extension)")
	flags.String("coalesce", d.GMP.Coalesce.String(), "Coalesce policy: MAX, MIN or MEAN")
	flags.Float64("angle-min", d.GMP.Angles.Min, "First rotation angle in degrees")
	flags.Float64("angle-step", d.GMP.Angles.Step, "Angle increment in degrees")
	flags.Float64("angle-max", d.GMP.Angles.Max, "Exclusive angle bound in degrees")
	flags.Int("pivot-row", d.GMP.PivotRow, "Pivot row; -1 with --pivot-col -1 is the centre")
	flags.Int("pivot-col", d.GMP.PivotCol, "Pivot column")
	flags.String("channel", d.GMP.Channel.String(), "Channel of colour images: red, green, blue or luma")
	flags.String("interpolation", d.GMP.Rotation.Interpolation.String(), "Rotation resampling: nearest or bilinear")
	flags.Float64("fill", d.GMP.Rotation.Fill, "Intensity in [0,1] for pixels rotated in from outside")
	for name, key := range map[string]string{
		"coalesce":      "gmp.coalesce",
		"angle-min":     "gmp.angles.min",
		"angle-step":    "gmp.angles.step",
		"angle-max":     "gmp.angles.max",
		"pivot-row":     "gmp.pivot_row",
		"pivot-col":     "gmp.pivot_col",
		"channel":       "gmp.channel",
		"interpolation": "gmp.rotation.interpolation",
		"fill":          "gmp.rotation.fill",
	} {
		keyFlag(flags, name, key)
	}

	flags = intvarCmd.Flags()
	flags.StringVar(&optInterferenceOutput, "interference", "interference.png", "Interference map output")
	flags.StringVar(&optVarianceOutput, "variance", "variance.png", "Variance map output")
	flags.Int("num-pivots", d.Aggregate.NumPivots, "Number of random pivots")
	flags.String("coalesce", d.Aggregate.Coalesce.String(), "Coalesce policy: MAX, MIN or MEAN")
	flags.Float64("angle-min", d.Aggregate.Angles.Min, "First rotation angle in degrees")
	flags.Float64("angle-step", d.Aggregate.Angles.Step, "Angle increment in degrees")
	flags.Float64("angle-max", d.Aggregate.Angles.Max, "Exclusive angle bound in degrees")
	flags.Uint64("seed", d.Aggregate.Seed, "Pivot sampling seed; 0 draws a random one")
	flags.Int("workers", d.Aggregate.Workers, "Patterns computed concurrently")
	flags.String("variance-mode", d.Aggregate.Variance.String(), "Variance accumulator: online or stack")
	flags.Bool("mask", d.Aggregate.ApplyMask, "Zero the image outside the fundus mask first")
	flags.String("channel", d.GMP.Channel.String(), "Channel of colour images: red, green, blue or luma")
	for name, key := range map[string]string{
		"num-pivots":    "aggregate.num_pivots",
		"coalesce":      "aggregate.coalesce",
		"angle-min":     "aggregate.angles.min",
		"angle-step":    "aggregate.angles.step",
		"angle-max":     "aggregate.angles.max",
		"seed":          "aggregate.seed",
		"workers":       "aggregate.workers",
		"variance-mode": "aggregate.variance",
		"mask":          "aggregate.apply_mask",
		"channel":       "gmp.channel",
	} {
		keyFlag(flags, name, key)
	}

	flags = maskCmd.Flags()
	flags.StringVarP(&optMaskOutput, "output", "o", "mask.png", "Output image (format from extension)")
	flags.Int("threshold", d.Mask.Threshold, "8-bit foreground level; -1 for Otsu")
	flags.String("channel", d.Mask.Channel.String(), "Channel thresholded: red, green, blue or luma")
	keyFlag(flags, "threshold", "mask.threshold")
	keyFlag(flags, "channel", "mask.channel")

	iniCmd.Flags().StringVar(&optSaveConfig, "save", "", "Write the resulting configuration as YAML")

	rootCmd.AddCommand(gmpCmd, intvarCmd, maskCmd, iniCmd)
}
