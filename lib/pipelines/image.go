// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipelines

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"

	"github.com/antflydb/lector/lib/backends"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// ImageProcessor prepares cropped line images for the recognition
// encoder. Lines are scaled to the target height preserving aspect ratio,
// padded on the right with white up to the target width, and normalized
// into an NCHW float tensor.
type ImageProcessor struct {
	Config *backends.ImageConfig
}

// NewImageProcessor creates an ImageProcessor with the given configuration.
func NewImageProcessor(config *backends.ImageConfig) *ImageProcessor {
	if config == nil {
		config = backends.DefaultImageConfig()
	}
	return &ImageProcessor{Config: config}
}

// DecodeImage decodes an image from bytes using the registered decoders
// (PNG, JPEG, GIF, BMP, TIFF, WebP).
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// DecodeImageReader decodes an image from a reader.
func DecodeImageReader(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// Process preprocesses one line image.
// Returns pixel values in NCHW format [channels, height, width] as a flat slice.
func (p *ImageProcessor) Process(img image.Image) ([]float32, error) {
	img = p.resizeLine(img)
	return p.toTensor(img), nil
}

// ProcessBatch preprocesses multiple line images.
// Returns pixel values in NCHW format [batch, channels, height, width] as a flat slice.
func (p *ImageProcessor) ProcessBatch(images []image.Image) ([]float32, error) {
	if len(images) == 0 {
		return nil, nil
	}

	c, h, w := p.Config.Channels, p.Config.Height, p.Config.Width
	result := make([]float32, len(images)*c*h*w)

	for i, img := range images {
		pixels, err := p.Process(img)
		if err != nil {
			return nil, fmt.Errorf("processing image %d: %w", i, err)
		}
		copy(result[i*c*h*w:], pixels)
	}

	return result, nil
}

// resizeLine scales a line crop to the target height preserving aspect
// ratio, then pads the right edge with white up to the target width. A
// line wider than the target after scaling is squeezed to fit instead.
func (p *ImageProcessor) resizeLine(img image.Image) image.Image {
	bounds := img.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()
	targetWidth, targetHeight := p.Config.Width, p.Config.Height

	if srcWidth == targetWidth && srcHeight == targetHeight {
		return img
	}
	if srcWidth == 0 || srcHeight == 0 {
		return image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	}

	scaledWidth := srcWidth * targetHeight / srcHeight
	if scaledWidth > targetWidth || scaledWidth == 0 {
		scaledWidth = targetWidth
	}
	scaled := resize(img, scaledWidth, targetHeight)
	if scaledWidth == targetWidth {
		return scaled
	}
	return padRight(scaled, targetWidth, color.White)
}

// toTensor converts an image to a normalized float tensor in NCHW format.
func (p *ImageProcessor) toTensor(img image.Image) []float32 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	channels := p.Config.Channels

	pixels := make([]float32, channels*height*width)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			r, g, b, _ := c.RGBA()

			// Convert from 0-65535 to 0-255, then apply rescale factor
			rf := float32(r>>8) * p.Config.RescaleFactor
			gf := float32(g>>8) * p.Config.RescaleFactor
			bf := float32(b>>8) * p.Config.RescaleFactor

			// Normalize with mean and std
			rf = (rf - p.Config.Mean[0]) / p.Config.Std[0]
			gf = (gf - p.Config.Mean[1]) / p.Config.Std[1]
			bf = (bf - p.Config.Mean[2]) / p.Config.Std[2]

			pixels[0*height*width+y*width+x] = rf
			pixels[1*height*width+y*width+x] = gf
			pixels[2*height*width+y*width+x] = bf
		}
	}

	return pixels
}

// padRight pads an image on the right edge to the target width with a
// fill color.
func padRight(img image.Image, targetWidth int, fill color.Color) image.Image {
	bounds := img.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()
	if srcWidth >= targetWidth {
		return img
	}

	padded := image.NewRGBA(image.Rect(0, 0, targetWidth, srcHeight))
	for y := 0; y < srcHeight; y++ {
		for x := 0; x < srcWidth; x++ {
			padded.Set(x, y, img.At(bounds.Min.X+x, bounds.Min.Y+y))
		}
		for x := srcWidth; x < targetWidth; x++ {
			padded.Set(x, y, fill)
		}
	}
	return padded
}

// resize performs bilinear interpolation to resize an image.
func resize(img image.Image, targetWidth, targetHeight int) image.Image {
	bounds := img.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()

	if srcWidth == targetWidth && srcHeight == targetHeight {
		return img
	}

	resized := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))

	xRatio := float64(srcWidth) / float64(targetWidth)
	yRatio := float64(srcHeight) / float64(targetHeight)

	for y := 0; y < targetHeight; y++ {
		for x := 0; x < targetWidth; x++ {
			srcX := float64(x) * xRatio
			srcY := float64(y) * yRatio
			resized.Set(x, y, bilinearInterpolate(img, srcX, srcY, bounds))
		}
	}

	return resized
}

// bilinearInterpolate performs bilinear interpolation at floating-point coordinates.
func bilinearInterpolate(img image.Image, x, y float64, bounds image.Rectangle) color.Color {
	x0 := int(x)
	y0 := int(y)
	x1 := x0 + 1
	y1 := y0 + 1

	if x0 < bounds.Min.X {
		x0 = bounds.Min.X
	}
	if y0 < bounds.Min.Y {
		y0 = bounds.Min.Y
	}
	if x1 >= bounds.Max.X {
		x1 = bounds.Max.X - 1
	}
	if y1 >= bounds.Max.Y {
		y1 = bounds.Max.Y - 1
	}

	c00 := img.At(x0, y0)
	c01 := img.At(x0, y1)
	c10 := img.At(x1, y0)
	c11 := img.At(x1, y1)

	xWeight := x - float64(x0)
	yWeight := y - float64(y0)

	r00, g00, b00, a00 := c00.RGBA()
	r01, g01, b01, a01 := c01.RGBA()
	r10, g10, b10, a10 := c10.RGBA()
	r11, g11, b11, a11 := c11.RGBA()

	r := interpolate(r00, r01, r10, r11, xWeight, yWeight)
	g := interpolate(g00, g01, g10, g11, xWeight, yWeight)
	b := interpolate(b00, b01, b10, b11, xWeight, yWeight)
	a := interpolate(a00, a01, a10, a11, xWeight, yWeight)

	return color.RGBA64{
		R: uint16(r),
		G: uint16(g),
		B: uint16(b),
		A: uint16(a),
	}
}

// interpolate performs bilinear interpolation on a single value.
func interpolate(v00, v01, v10, v11 uint32, xWeight, yWeight float64) float64 {
	top := float64(v00)*(1-xWeight) + float64(v10)*xWeight
	bottom := float64(v01)*(1-xWeight) + float64(v11)*xWeight
	return top*(1-yWeight) + bottom*yWeight
}

// CropMargin removes uniform color margins from a line crop. tolerance
// specifies how much color variation is allowed in the margin.
func CropMargin(img image.Image, tolerance uint32) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	refColor := img.At(bounds.Min.X, bounds.Min.Y)
	refR, refG, refB, _ := refColor.RGBA()

	left := 0
	right := width - 1
	top := 0
	bottom := height - 1

	for x := 0; x < width; x++ {
		if columnHasContent(img, bounds, x, 0, height, refR, refG, refB, tolerance) {
			left = x
			break
		}
	}
	for x := width - 1; x >= left; x-- {
		if columnHasContent(img, bounds, x, 0, height, refR, refG, refB, tolerance) {
			right = x
			break
		}
	}
	for y := 0; y < height; y++ {
		if rowHasContent(img, bounds, y, left, right, refR, refG, refB, tolerance) {
			top = y
			break
		}
	}
	for y := height - 1; y >= top; y-- {
		if rowHasContent(img, bounds, y, left, right, refR, refG, refB, tolerance) {
			bottom = y
			break
		}
	}

	return cropImage(img, left, top, right-left+1, bottom-top+1)
}

func columnHasContent(img image.Image, bounds image.Rectangle, x, yStart, yEnd int, refR, refG, refB, tolerance uint32) bool {
	for y := yStart; y < yEnd; y++ {
		if !isMarginColor(img.At(bounds.Min.X+x, bounds.Min.Y+y), refR, refG, refB, tolerance) {
			return true
		}
	}
	return false
}

func rowHasContent(img image.Image, bounds image.Rectangle, y, xStart, xEnd int, refR, refG, refB, tolerance uint32) bool {
	for x := xStart; x <= xEnd; x++ {
		if !isMarginColor(img.At(bounds.Min.X+x, bounds.Min.Y+y), refR, refG, refB, tolerance) {
			return true
		}
	}
	return false
}

// cropImage extracts a rectangular region from an image.
func cropImage(img image.Image, x, y, width, height int) image.Image {
	bounds := img.Bounds()
	cropped := image.NewRGBA(image.Rect(0, 0, width, height))

	for dy := 0; dy < height; dy++ {
		for dx := 0; dx < width; dx++ {
			srcX := bounds.Min.X + x + dx
			srcY := bounds.Min.Y + y + dy
			if srcX < bounds.Max.X && srcY < bounds.Max.Y {
				cropped.Set(dx, dy, img.At(srcX, srcY))
			}
		}
	}

	return cropped
}

// isMarginColor checks if a color matches the margin reference within tolerance.
func isMarginColor(c color.Color, refR, refG, refB, tolerance uint32) bool {
	r, g, b, _ := c.RGBA()
	return absDiff(r, refR) <= tolerance &&
		absDiff(g, refG) <= tolerance &&
		absDiff(b, refB) <= tolerance
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
