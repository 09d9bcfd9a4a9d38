// rutai extracts the RUT/nombre table from a page image region using the
// configured vision model. It prints ONLY JSON to stdout: the entry list on
// success, an {"error", ...} object otherwise.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/jbarria/archivador/internal/common"
	"github.com/jbarria/archivador/internal/ocr"
	"github.com/jbarria/archivador/internal/vision"
)

func main() {
	region := flag.String("region", "", "recorte x0,y0,x1,y1 en pixeles (opcional, por defecto la imagen completa)")
	flag.Parse()

	if flag.NArg() != 1 {
		printJSON(map[string]string{"error": "Uso: rutai [--region x0,y0,x1,y1] <imagen.jpg>"})
		return
	}
	imagePath := flag.Arg(0)
	if _, err := os.Stat(imagePath); err != nil {
		printJSON(map[string]string{"error": fmt.Sprintf("No existe la imagen: %s", imagePath)})
		return
	}

	rect, err := parseRegion(*region)
	if err != nil {
		printJSON(map[string]string{"error": err.Error()})
		return
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		printJSON(map[string]string{"error": fmt.Sprintf("error cargando .env: %v", err)})
		return
	}

	// only JSON may reach stdout
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.ValidateVision(); err != nil {
		printJSON(map[string]string{"error": "No se encontro OPENAI_API_KEY en el entorno"})
		return
	}

	client := vision.NewClient(cfg.Vision, logger)
	entries, err := client.ExtractTable(context.Background(), imagePath, rect)
	if err != nil {
		var perr *vision.ParseError
		if errors.As(err, &perr) {
			fmt.Println(string(perr.Marker()))
			return
		}
		printJSON(map[string]string{"error": fmt.Sprintf("OpenAI error: %v", err)})
		return
	}
	if entries == nil {
		entries = []vision.Entry{}
	}
	printJSON(entries)
}

func parseRegion(s string) (ocr.Rect, error) {
	if s == "" {
		return ocr.Rect{}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return ocr.Rect{}, fmt.Errorf("region invalida %q: se esperan 4 valores x0,y0,x1,y1", s)
	}
	vals := make([]int, 4)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return ocr.Rect{}, fmt.Errorf("region invalida %q: %q no es una coordenada", s, p)
		}
		vals[i] = n
	}
	r := ocr.Rect{X0: vals[0], Y0: vals[1], X1: vals[2], Y1: vals[3]}
	if r.X1 <= r.X0 || r.Y1 <= r.Y0 {
		return ocr.Rect{}, fmt.Errorf("region invalida %q: area vacia", s)
	}
	return r, nil
}

func printJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		fmt.Println(`{"error":"no se pudo serializar la salida"}`)
		return
	}
	fmt.Println(string(b))
}
