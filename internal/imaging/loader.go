package imaging

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of decoded images an ImageCache keeps when
// constructed with a non-positive size.
const DefaultCacheSize = 32

// ImageCache keeps recently decoded images keyed by file path.
//
// The cache is bounded: once it holds its configured number of images, loading
// another evicts the least recently used one. Fundus photographs are large, so
// an unbounded map would grow without limit in a long-running server.
//
// ImageCache is safe for concurrent use by multiple goroutines.
//
// # Example Usage
//
//	cache := imaging.NewImageCache(16)
//	img, err := cache.Load("/path/to/fundus.jpg")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cache.Evict("/path/to/fundus.jpg") // Optional: free memory
type ImageCache struct {
	images *lru.Cache[string, image.Image]
}

// NewImageCache creates an empty cache holding at most size images.
// A non-positive size selects DefaultCacheSize.
func NewImageCache(size int) *ImageCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	images, err := lru.New[string, image.Image](size)
	if err != nil {
		// lru.New only fails for non-positive sizes, excluded above.
		panic(err)
	}
	return &ImageCache{images: images}
}

// Load retrieves an image from the cache or decodes it from disk if not cached.
//
// Parameters:
//   - path: Absolute or relative file path to the image. Supported formats are
//     those registered by github.com/disintegration/imaging (PNG, JPEG, GIF,
//     TIFF, BMP). EXIF orientation is applied on decode.
//
// Returns:
//   - image.Image: The decoded image. The concrete type depends on the file
//     (e.g., *image.Gray for grayscale PNGs, *image.YCbCr for JPEGs).
//   - error: Non-nil if the file cannot be opened or decoded.
//
// The image is cached using the exact path string provided.
func (c *ImageCache) Load(path string) (image.Image, error) {
	if img, ok := c.images.Get(path); ok {
		return img, nil
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}

	c.images.Add(path, img)
	return img, nil
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int { return c.images.Len() }

// Clear removes all images from the cache.
func (c *ImageCache) Clear() { c.images.Purge() }

// Evict removes a specific image from the cache by its path.
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) { c.images.Remove(path) }

// ImageInfo contains metadata about a loaded image file.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Depth is the number of selectable channels: 1 for grayscale, 3 for colour.
	Depth int `json:"depth"`

	// Format is the detected image format, based on file extension.
	Format string `json:"format"`

	// ColorDepth indicates the bit depth per channel: "8-bit" or "16-bit".
	ColorDepth string `json:"color_depth"`

	// HasAlpha indicates whether the decoded image carries an alpha channel.
	HasAlpha bool `json:"has_alpha"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image and returns metadata about it.
//
// The image is loaded into the cache (if not already cached), so a following
// analysis call on the same path does not decode it again.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		format = "png"
	case ".jpg", ".jpeg":
		format = "jpeg"
	case ".gif":
		format = "gif"
	case ".tif", ".tiff":
		format = "tiff"
	case ".bmp":
		format = "bmp"
	}

	hasAlpha := false
	colorDepth := "8-bit"
	switch img.(type) {
	case *image.RGBA, *image.NRGBA:
		hasAlpha = true
	case *image.RGBA64, *image.NRGBA64:
		hasAlpha = true
		colorDepth = "16-bit"
	case *image.Gray16:
		colorDepth = "16-bit"
	}

	bounds := img.Bounds()
	return &ImageInfo{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Depth:         Depth(img),
		Format:        format,
		ColorDepth:    colorDepth,
		HasAlpha:      hasAlpha,
		FileSizeBytes: stat.Size(),
	}, nil
}

// DimensionsResult contains the width and height of an image.
type DimensionsResult struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GetDimensions returns the dimensions of an image without additional metadata.
func GetDimensions(cache *ImageCache, path string) (*DimensionsResult, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return &DimensionsResult{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
