package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// runTesseract feeds an image payload to the tesseract binary over stdin
// and reads the recognized text from stdout.
func (e *Extractor) runTesseract(ctx context.Context, image []byte) (string, error) {
	cmd := exec.CommandContext(ctx, e.cfg.OCRBinary, "stdin", "stdout")
	cmd.Stdin = bytes.NewReader(image)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%s: %s: %w", e.cfg.OCRBinary, msg, err)
		}
		return "", fmt.Errorf("%s: %w", e.cfg.OCRBinary, err)
	}
	return stdout.String(), nil
}
