package vision

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbarria/archivador/internal/common"
	"github.com/jbarria/archivador/internal/ocr"
)

func writeTestImage(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(5, 5, color.Black)

	path := filepath.Join(t.TempDir(), "0001.jpg")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, nil))
	return path
}

func chatReply(content string) []byte {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return b
}

func TestExtractTableParsesAndNormalizes(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(chatReply(`[{"rut":"12,345,678-9","nombre":"juan  perez"},{"nombre":"sin rut"}]`))
	}))
	defer srv.Close()

	c := NewClient(common.VisionConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4o-mini"}, nil)
	entries, err := c.ExtractTable(context.Background(), writeTestImage(t), ocr.Rect{})
	require.NoError(t, err)

	// second item lacks a rut and is dropped; the first is re-normalized
	require.Len(t, entries, 1)
	assert.Equal(t, "12.345.678-9", entries[0].RUT)
	assert.Equal(t, "JUAN PEREZ", entries[0].Nombre)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotBody["model"])
	rf := gotBody["response_format"].(map[string]any)
	assert.Equal(t, "json_object", rf["type"])
}

func TestExtractTableCropsRegion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(chatReply(`[]`))
	}))
	defer srv.Close()

	c := NewClient(common.VisionConfig{APIKey: "sk-test", BaseURL: srv.URL}, nil)
	entries, err := c.ExtractTable(context.Background(), writeTestImage(t), ocr.Rect{X0: 0, Y0: 0, X1: 10, Y1: 10})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExtractTableRegionOutsideBounds(t *testing.T) {
	c := NewClient(common.VisionConfig{APIKey: "sk-test", BaseURL: "http://unused"}, nil)
	_, err := c.ExtractTable(context.Background(), writeTestImage(t), ocr.Rect{X0: 500, Y0: 500, X1: 600, Y1: 600})
	assert.Error(t, err)
}

func TestExtractTableNonJSONReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(chatReply("lo siento, no puedo leer la tabla"))
	}))
	defer srv.Close()

	c := NewClient(common.VisionConfig{APIKey: "sk-test", BaseURL: srv.URL}, nil)
	_, err := c.ExtractTable(context.Background(), writeTestImage(t), ocr.Rect{})

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Raw, "lo siento")
}

func TestExtractTableServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(common.VisionConfig{APIKey: "sk-test", BaseURL: srv.URL}, nil)
	_, err := c.ExtractTable(context.Background(), writeTestImage(t), ocr.Rect{})
	assert.ErrorContains(t, err, "status 500")
}

func TestExtractTableMissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	c := NewClient(common.VisionConfig{BaseURL: "http://unused"}, nil)
	_, err := c.ExtractTable(context.Background(), writeTestImage(t), ocr.Rect{})
	assert.ErrorContains(t, err, "api key")
}
