// Package vision extracts the RUT/nombre table from a page region using an
// OpenAI-compatible vision model. The reply handling is deliberately
// tolerant: models wrap, nest, or decorate the JSON in many ways.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jbarria/archivador/internal/common"
	"github.com/jbarria/archivador/internal/ocr"
	"github.com/jbarria/archivador/internal/textnorm"
)

// Entry is one row of the extracted table.
type Entry struct {
	RUT    string `json:"rut"`
	Nombre string `json:"nombre"`
}

const systemPrompt = "Eres un extractor OCR que SOLO devuelve JSON valido."

const userPrompt = "Analiza la imagen (que es un RECORTE del area de interes) que contiene " +
	"una TABLA con RUTs y nombres.\n\n" +
	"Instrucciones estrictas:\n" +
	"- Devuelve SOLO la informacion de la TABLA (ignora timbres, sellos, encabezados, pie de pagina o cualquier otro texto fuera de la tabla).\n" +
	"- Entrega un JSON **solo** con una lista de objetos: [{\"rut\":\"..\",\"nombre\":\"..\"}, ...]\n" +
	"- Si el nombre no esta visible en la celda de la tabla, omitelo o usa \"\".\n" +
	"- Normaliza RUT chileno con puntos y guion (ej: 12.345.678-9). DV puede ser K.\n" +
	"- Normaliza NOMBRES en mayusculas, sin tildes si vienen inconsistentes.\n" +
	"- No incluyas comentarios, no incluyas explicaciones, no envuelvas en una clave 'items': devuelve directamente la lista JSON."

type Client struct {
	cfg    common.VisionConfig
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg common.VisionConfig, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// ExtractTable sends the (optionally cropped) page image to the model and
// returns the table rows. A zero region means the whole image. RUTs are
// re-normalized locally and nombres uppercased regardless of what the model
// returns.
func (c *Client) ExtractTable(ctx context.Context, imagePath string, region ocr.Rect) ([]Entry, error) {
	rid := uuid.New().String()
	start := time.Now()

	if c.cfg.APIKey == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "vision api key not configured", nil)
	}

	imgBytes, err := cropJPEG(imagePath, region)
	if err != nil {
		return nil, fmt.Errorf("prepare image: %w", err)
	}
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(imgBytes)

	c.logger.Info("vision.extract.start",
		"req_id", rid, "model", c.cfg.Model, "image", imagePath, "bytes", len(imgBytes))

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": userPrompt},
				{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
			}},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.logger.Error("vision.extract.http_error",
			"req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return nil, fmt.Errorf("no choices in model response")
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)

	items, ok := unwrap(content)
	if !ok {
		c.logger.Error("vision.extract.not_json", "req_id", rid, "raw_len", len(content))
		return nil, &ParseError{Raw: content}
	}

	entries := make([]Entry, 0, len(items))
	for i, item := range items {
		if err := validateEntry(item); err != nil {
			c.logger.Warn("vision.extract.item_dropped", "req_id", rid, "index", i, "error", err)
			continue
		}
		var e Entry
		if err := json.Unmarshal(item, &e); err != nil {
			c.logger.Warn("vision.extract.item_dropped", "req_id", rid, "index", i, "error", err)
			continue
		}
		entries = append(entries, normalizeEntry(e))
	}

	c.logger.Info("vision.extract.ok",
		"req_id", rid, "entries", len(entries), "dropped", len(items)-len(entries),
		"elapsed_ms", time.Since(start).Milliseconds())
	return entries, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision http error: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("vision response body close error", "error", cerr)
		}
	}()

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vision status %d: %s", resp.StatusCode, buf.String())
	}
	return buf.Bytes(), nil
}

func normalizeEntry(e Entry) Entry {
	rut := textnorm.ExtractRut(e.RUT)
	if rut == "" {
		rut = strings.ToUpper(strings.TrimSpace(e.RUT))
	}
	return Entry{
		RUT:    rut,
		Nombre: strings.ToUpper(textnorm.CollapseWS(e.Nombre)),
	}
}

// cropJPEG loads the image and re-encodes the requested region as JPEG.
// A zero region selects the whole image.
func cropJPEG(imagePath string, region ocr.Rect) ([]byte, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", imagePath, err)
	}

	bounds := img.Bounds()
	if !region.Zero() {
		r := image.Rect(region.X0, region.Y0, region.X1, region.Y1).Intersect(bounds)
		if r.Empty() {
			return nil, fmt.Errorf("region outside image bounds")
		}
		type subImager interface {
			SubImage(image.Rectangle) image.Image
		}
		si, ok := img.(subImager)
		if !ok {
			return nil, fmt.Errorf("image type does not support cropping")
		}
		img = si.SubImage(r)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92}); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	return buf.Bytes(), nil
}
