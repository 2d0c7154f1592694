// Package ocr reads the ticket number off a photographed paper ticket.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"sk3-portal/internal/lifecycle"
)

// NotFound is recorded as the ticket number when the recognized text holds no
// digits.
const NotFound = "NOT_FOUND"

type Recognizer interface {
	Recognize(ctx context.Context, image []byte, filename string) (string, error)
}

// RecognizerFunc adapts a plain function to Recognizer.
type RecognizerFunc func(ctx context.Context, image []byte, filename string) (string, error)

func (f RecognizerFunc) Recognize(ctx context.Context, image []byte, filename string) (string, error) {
	return f(ctx, image, filename)
}

// ExtractTicketNumber returns the first contiguous run of ASCII digits. When
// there is none it returns NotFound and an *lifecycle.OcrExtractionError.
func ExtractTicketNumber(text string) (string, error) {
	start := -1
	for i := 0; i < len(text); i++ {
		isDigit := text[i] >= '0' && text[i] <= '9'
		switch {
		case isDigit && start < 0:
			start = i
		case !isDigit && start >= 0:
			return text[start:i], nil
		}
	}
	if start >= 0 {
		return text[start:], nil
	}
	return NotFound, &lifecycle.OcrExtractionError{Text: text}
}

// TesseractRecognizer shells out to the tesseract CLI.
type TesseractRecognizer struct {
	Path string
	Lang string
}

func NewTesseractRecognizer(path, lang string) *TesseractRecognizer {
	if path == "" {
		path = "tesseract"
	}
	if lang == "" {
		lang = "eng"
	}
	return &TesseractRecognizer{Path: path, Lang: lang}
}

func (r *TesseractRecognizer) Recognize(ctx context.Context, image []byte, filename string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("empty image")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".png"
	}
	tmp, err := os.CreateTemp("", "sk3-ticket-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(image); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp image: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Path, tmp.Name(), "stdout", "-l", r.Lang)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
