package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Paths  PathsConfig
	OCR    OCRConfig
	Vision VisionConfig
}

// PathsConfig holds the working-tree layout. Every component receives the
// paths it needs at construction; there are no process-wide directory globals.
type PathsConfig struct {
	InputDir     string // source PDFs land here
	DocumentsDir string // per-archive working folders (images + ledger)
	TaxonomyDir  string // classified year/month/type tree
	BundlesDir   string // delivery bundles (ENTREGABLES)
	CatalogDir   string // archive catalog database
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Pdftoppm      string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract     string // binary name or absolute path; if empty -> "tesseract"
	TesseractLang string // default "spa+eng"
	TessdataDir   string
	DPI           int // rasterization DPI, default 144 (the scale the crop regions assume)
	JPEGQuality   int // page image quality, default 90
}

// VisionConfig holds settings for the remote RUT-table extraction service.
type VisionConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			InputDir:     getEnv("INPUT_DIR", "input"),
			DocumentsDir: getEnv("DOCUMENTS_DIR", "documentos"),
			TaxonomyDir:  getEnv("TAXONOMY_DIR", "pdfs_estructurados"),
			BundlesDir:   getEnv("BUNDLES_DIR", "ENTREGABLES"),
			CatalogDir:   getEnv("CATALOG_DIR", "data"),
		},
		OCR: OCRConfig{
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "spa+eng"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			DPI:           getEnvAsInt("RENDER_DPI", 144),
			JPEGQuality:   getEnvAsInt("RENDER_JPEG_QUALITY", 90),
		},
		Vision: VisionConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ValidateVision checks the configuration needed before any remote vision
// call is made. Surfaced once at the start of the operation that needs it.
func (c *Config) ValidateVision() error {
	if c.Vision.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	return nil
}
