package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/jbarria/archivador/constants"
	"github.com/jbarria/archivador/internal/catalog"
	"github.com/jbarria/archivador/internal/common"
	"github.com/jbarria/archivador/internal/export"
	"github.com/jbarria/archivador/internal/ocr"
	"github.com/jbarria/archivador/internal/pipeline"
)

const usage = `Uso: archivador <comando> [opciones]

Comandos:
  ingest       renderiza las paginas de un PDF y crea el registro
  extract      extrae folio, rut, fecha y estado de cada pagina
  split        separa el PDF por folio y lo clasifica por anio/mes/tipo
  consolidate  arma el siguiente ENTREGABLE con planilla y PDFs
  list         muestra los archivos registrados en el catalogo
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "error cargando .env: %v\n", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	ctx := context.Background()

	cat, err := catalog.Open(cfg.Paths.CatalogDir)
	if err != nil {
		logger.Error("no se pudo abrir el catalogo", "error", err)
		os.Exit(1)
	}
	defer cat.Close()

	engine := ocr.NewEngine(ocr.Config{
		Pdftoppm:      cfg.OCR.Pdftoppm,
		Tesseract:     cfg.OCR.Tesseract,
		TesseractLang: cfg.OCR.TesseractLang,
		TessdataDir:   cfg.OCR.TessdataDir,
		DPI:           cfg.OCR.DPI,
		JPEGQuality:   cfg.OCR.JPEGQuality,
	}, logger)
	proc := pipeline.NewProcessor(cfg.Paths, engine, cat, logger)

	var runErr error
	switch os.Args[1] {
	case "ingest":
		runErr = runIngest(ctx, proc, os.Args[2:])
	case "extract":
		runErr = runExtract(ctx, proc, os.Args[2:])
	case "split":
		runErr = runSplit(ctx, proc, cat, os.Args[2:])
	case "consolidate":
		runErr = runConsolidate(ctx, cfg, cat, logger, os.Args[2:])
	case "list":
		runErr = runList(ctx, cat)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if runErr != nil {
		logger.Error("comando fallido", "cmd", os.Args[1], "error", runErr)
		os.Exit(1)
	}
}

func runIngest(ctx context.Context, proc *pipeline.Processor, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	pdf := fs.String("pdf", "", "PDF de origen (obligatorio)")
	_ = fs.Parse(args)
	if *pdf == "" {
		return fmt.Errorf("--pdf es obligatorio")
	}

	res, err := proc.Ingest(ctx, *pdf)
	if err != nil {
		return err
	}
	fmt.Printf("Archivo %s: %d paginas, %d renderizadas, %d ya existentes\n",
		res.Archive, res.Pages, res.Rendered, res.Skipped)
	printErrors(res.Errors)
	return nil
}

func runExtract(ctx context.Context, proc *pipeline.Processor, args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	archive := fs.String("archivo", "", "nombre del archivo ingresado (obligatorio)")
	_ = fs.Parse(args)
	if *archive == "" {
		return fmt.Errorf("--archivo es obligatorio")
	}

	res, err := proc.Extract(ctx, *archive)
	if err != nil {
		return err
	}
	fmt.Printf("Archivo %s: %d paginas, %d con folio, %d fallidas\n",
		res.Archive, res.Pages, res.WithFolio, res.Failed)
	printErrors(res.Errors)
	return nil
}

func runSplit(ctx context.Context, proc *pipeline.Processor, cat *catalog.Catalog, args []string) error {
	fs := flag.NewFlagSet("split", flag.ExitOnError)
	archive := fs.String("archivo", "", "nombre del archivo ingresado (obligatorio)")
	pdf := fs.String("pdf", "", "PDF de origen (por defecto, el registrado en el catalogo)")
	_ = fs.Parse(args)
	if *archive == "" {
		return fmt.Errorf("--archivo es obligatorio")
	}

	src := *pdf
	if src == "" {
		entry, err := cat.Get(ctx, *archive)
		if err != nil {
			return fmt.Errorf("archivo %s no registrado, indique --pdf: %w", *archive, err)
		}
		src = entry.SourcePath
	}

	res, err := proc.SplitClassify(ctx, *archive, src)
	if err != nil {
		return err
	}
	fmt.Printf("Archivo %s: %d documentos, %d clasificados, %d sin fecha, %d sin tipo\n",
		res.Archive, res.Documents, res.Taxonomy.Placed, res.Taxonomy.MissingDate, res.Taxonomy.MissingType)
	printErrors(res.Split.Errors)
	printErrors(res.Taxonomy.Errors)
	return nil
}

func runConsolidate(ctx context.Context, cfg *common.Config, cat *catalog.Catalog, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("consolidate", flag.ExitOnError)
	names := fs.String("archivos", "", "lista de archivos separada por comas (por defecto, todos los del catalogo)")
	_ = fs.Parse(args)

	var archives []string
	if *names != "" {
		for _, n := range strings.Split(*names, ",") {
			if n = strings.TrimSpace(n); n != "" {
				archives = append(archives, n)
			}
		}
	} else {
		entries, err := cat.List(ctx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			archives = append(archives, e.Name)
		}
		sort.Strings(archives)
	}
	if len(archives) == 0 {
		return fmt.Errorf("no hay archivos para consolidar")
	}

	cons := export.NewConsolidator(cfg.Paths.DocumentsDir, cfg.Paths.TaxonomyDir, cfg.Paths.BundlesDir, logger)
	res, err := cons.Consolidate(archives)
	if err != nil {
		return err
	}
	fmt.Printf("%s generado en %s: %d archivos, %d paginas, %d PDFs\n",
		res.Bundle, res.Dir, res.Archives, res.Rows, res.PDFs)
	printErrors(res.Errors)
	return nil
}

func runList(ctx context.Context, cat *catalog.Catalog) error {
	entries, err := cat.List(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("catalogo vacio")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%-30s %4d paginas  %-10s  %s\n",
			e.Name, e.Pages, statusLabel(e.Status), e.SourcePath)
	}
	return nil
}

func statusLabel(s constants.ArchiveStatus) string {
	return strings.ToLower(string(s))
}

func printErrors(errs []string) {
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "  aviso: %s\n", e)
	}
}
