// Package ocr wraps the external rasterization and text-recognition
// collaborators (poppler's pdftoppm and tesseract) behind a stubable
// Runner. Page rendering and whole-page or region-restricted recognition
// are the only capabilities exposed; engine internals stay outside.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "spa+eng"
	TessdataDir   string

	DPI         int // rasterization DPI, default 144
	JPEGQuality int // page image quality, default 90
}

type Engine struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "spa+eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 144
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 90
	}
	return &Engine{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// WithRunner swaps the command runner; tests stub external binaries here.
func (e *Engine) WithRunner(r Runner) *Engine {
	e.runner = r
	return e
}

// RenderPage rasterizes a single page (1-based) of the source PDF to a JPEG
// at outPath.
func (e *Engine) RenderPage(ctx context.Context, pdfPath string, pageIndex int, outPath string) error {
	if pageIndex < 1 {
		return fmt.Errorf("page index must be 1-based, got %d", pageIndex)
	}
	prefix := strings.TrimSuffix(outPath, ".jpg")
	n := strconv.Itoa(pageIndex)
	// pdftoppm -r <dpi> -jpeg -jpegopt quality=<q> -f N -l N -singlefile <in.pdf> <prefix>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm,
		"-r", strconv.Itoa(e.cfg.DPI),
		"-jpeg", "-jpegopt", "quality="+strconv.Itoa(e.cfg.JPEGQuality),
		"-f", n, "-l", n, "-singlefile",
		pdfPath, prefix)
	if err != nil {
		return fmt.Errorf("pdftoppm page %d: %w (%s)", pageIndex, err, truncate(string(errb), 512))
	}
	if _, statErr := os.Stat(outPath); statErr != nil {
		return fmt.Errorf("pdftoppm produced no image for page %d: %v", pageIndex, statErr)
	}
	return nil
}

// PageText runs OCR over the full page image.
func (e *Engine) PageText(ctx context.Context, imagePath string) (string, error) {
	return e.tesseract(ctx, imagePath)
}

// RegionText runs OCR restricted to a pixel rectangle of the page image.
// Coordinates are clamped to the image bounds; a degenerate region yields
// empty text. The result is whitespace-collapsed.
func (e *Engine) RegionText(ctx context.Context, imagePath string, region Rect) (string, error) {
	cropPath, empty, err := cropToTemp(imagePath, region)
	if err != nil {
		return "", fmt.Errorf("crop region: %w", err)
	}
	if empty {
		return "", nil
	}
	defer func() {
		if rmErr := os.Remove(cropPath); rmErr != nil {
			e.logger.Warn("remove temp crop failed", "path", cropPath, "error", rmErr)
		}
	}()

	txt, err := e.tesseract(ctx, cropPath)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(collapseWS(txt)), nil
}

func (e *Engine) tesseract(ctx context.Context, path string) (string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w (%s)", err, truncate(string(errb), 512))
	}
	return string(out), nil
}

// tempCropPattern keeps crops distinguishable from page images in /tmp.
func tempCropPattern(imagePath string) string {
	base := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	return "arch-crop-" + base + "-*.png"
}
