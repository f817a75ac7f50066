package ocr

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// DecodeImage decodes png, jpeg, gif, bmp or tiff from path.
func DecodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Grayscale converts img to 8-bit luminance.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

// OtsuThreshold picks the threshold that maximises between-class variance of
// the luminance histogram.
func OtsuThreshold(gray *image.Gray) uint8 {
	var hist [256]int
	b := gray.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := gray.Pix[(y-b.Min.Y)*gray.Stride:]
		for x := 0; x < b.Dx(); x++ {
			hist[row[x]]++
		}
	}

	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}

	var sum float64
	for i, c := range hist {
		sum += float64(i * c)
	}

	var sumB, maxVar float64
	var wB int
	var threshold uint8
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > maxVar {
			maxVar = between
			threshold = uint8(t)
		}
	}
	return threshold
}

// Binarize maps pixels above the Otsu threshold to white and the rest to black.
func Binarize(img image.Image) *image.Gray {
	gray := Grayscale(img)
	t := OtsuThreshold(gray)
	for i, v := range gray.Pix {
		if v > t {
			gray.Pix[i] = 255
		} else {
			gray.Pix[i] = 0
		}
	}
	return gray
}

// BinarizeFile writes a binarized PNG copy of the image at path into tempDir
// and returns its path. The caller owns the file.
func BinarizeFile(path, tempDir string) (string, error) {
	img, err := DecodeImage(path)
	if err != nil {
		return "", err
	}

	out, err := os.CreateTemp(tempDir, "binarized-*.png")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := out.Name()
	if err := png.Encode(out, Binarize(img)); err != nil {
		out.Close()
		os.Remove(name)
		return "", fmt.Errorf("encode binarized image: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return name, nil
}
