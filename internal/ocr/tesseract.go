package ocr

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// TesseractOCR extracts text from invoices and receipts using the tesseract
// CLI. When the binary is not installed the engine reports itself as
// unavailable and the pipeline falls back to AI vision mode.
type TesseractOCR struct {
	language string
}

// NewTesseractOCR creates a new Tesseract OCR instance
func NewTesseractOCR(language string) *TesseractOCR {
	if language == "" {
		language = "spa" // Spanish invoices by default
	}
	return &TesseractOCR{
		language: language,
	}
}

// Available reports whether the tesseract binary can be found on PATH
func (t *TesseractOCR) Available() bool {
	_, err := exec.LookPath("tesseract")
	return err == nil
}

// ExtractText performs OCR on preprocessed image bytes
func (t *TesseractOCR) ExtractText(imageBytes []byte) (string, float64, error) {
	if !t.Available() {
		return "", 0, fmt.Errorf("tesseract not installed")
	}

	tmpDir := os.TempDir()
	inputFile := filepath.Join(tmpDir, fmt.Sprintf("ocr_in_%d.jpg", os.Getpid()))
	if err := os.WriteFile(inputFile, imageBytes, 0644); err != nil {
		return "", 0, fmt.Errorf("failed to write temp image: %w", err)
	}
	defer os.Remove(inputFile)

	// "stdout" makes tesseract print the recognized text instead of writing
	// an output file. PSM 4 (single column of variable-size text) works well
	// for both formal invoices and thermal receipts.
	cmd := exec.Command("tesseract", inputFile, "stdout", "-l", t.language, "--psm", "4")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", 0, fmt.Errorf("tesseract failed: %w - %s", err, stderr.String())
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return "", 0, nil
	}

	// The plain CLI does not report per-word confidences. A coarse score
	// based on text volume is enough for the pipeline to decide whether the
	// OCR pass is usable or vision mode should take over.
	confidence := 0.5
	if len(text) > 200 {
		confidence = 0.8
	}
	return text, confidence, nil
}
