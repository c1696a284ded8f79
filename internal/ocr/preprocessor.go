package ocr

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
)

// Preprocessor cleans up scanned images before OCR. Every pipeline degrades
// to the original bytes when ImageMagick is missing or fails; a worse scan
// still beats no scan.
type Preprocessor struct{}

// NewPreprocessor creates a new image preprocessor
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{}
}

// PreprocessImage reads and enhances an image file for better OCR reading
func (p *Preprocessor) PreprocessImage(imagePath string) ([]byte, error) {
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, err
	}
	return p.PreprocessImageFromBytes(imageData)
}

// PreprocessImageFromBytes applies the standard invoice pipeline: downscale,
// grayscale, auto-contrast, light denoise, sharpen.
func (p *Preprocessor) PreprocessImageFromBytes(imageData []byte) ([]byte, error) {
	processed, err := runMagick("factura", imageData, []string{
		"-resize", "2000x2000>",
		"-colorspace", "Gray",
		"-normalize",
		"-contrast-stretch", "2%x1%",
		"-despeckle",
		"-sharpen", "0x1",
		"-unsharp", "0x0.5+0.5+0",
		"-quality", "95",
	})
	if err != nil {
		log.Printf("Preprocessing failed, using original image: %v", err)
		return imageData, nil
	}
	return processed, nil
}

// PreprocessForTicket targets thermal receipts. Faded thermal print needs an
// adaptive threshold and harder contrast than a laser-printed invoice; a
// failure here falls back to the standard pipeline rather than the raw bytes.
func (p *Preprocessor) PreprocessForTicket(imageData []byte) ([]byte, error) {
	processed, err := runMagick("ticket", imageData, []string{
		"-resize", "2500x2500>",
		"-colorspace", "Gray",
		"-lat", "50x50+10%",
		"-contrast-stretch", "5%x2%",
		"-despeckle",
		"-despeckle",
		"-sharpen", "0x2",
		"-quality", "95",
	})
	if err != nil {
		log.Printf("Ticket preprocessing failed, trying standard pipeline: %v", err)
		return p.PreprocessImageFromBytes(imageData)
	}
	return processed, nil
}

// runMagick writes the image to a temp file, runs ImageMagick with the given
// filter arguments and returns the processed bytes. Prefers the v7 "magick"
// binary, falls back to v6 "convert".
func runMagick(prefix string, imageData []byte, filters []string) ([]byte, error) {
	tmpDir := os.TempDir()
	inputFile := filepath.Join(tmpDir, fmt.Sprintf("%s_in_%d.jpg", prefix, os.Getpid()))
	outputFile := filepath.Join(tmpDir, fmt.Sprintf("%s_out_%d.jpg", prefix, os.Getpid()))

	if err := os.WriteFile(inputFile, imageData, 0644); err != nil {
		return nil, err
	}
	defer os.Remove(inputFile)
	defer os.Remove(outputFile)

	args := append([]string{inputFile}, filters...)
	args = append(args, outputFile)

	var cmd *exec.Cmd
	if _, err := exec.LookPath("magick"); err == nil {
		cmd = exec.Command("magick", args...)
	} else {
		cmd = exec.Command("convert", args...)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("imagemagick failed: %v - %s", err, stderr.String())
	}

	return os.ReadFile(outputFile)
}
