package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/legal-simplifier/constants"
	"github.com/joseph-ayodele/legal-simplifier/internal/common"
	"github.com/joseph-ayodele/legal-simplifier/internal/entity"
	"github.com/joseph-ayodele/legal-simplifier/internal/export"
	"github.com/joseph-ayodele/legal-simplifier/internal/extract"
	"github.com/joseph-ayodele/legal-simplifier/internal/ingest"
	"github.com/joseph-ayodele/legal-simplifier/internal/pipeline"
	"github.com/joseph-ayodele/legal-simplifier/internal/simplify"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		file      = flag.String("file", "", "document to process (required)")
		format    = flag.String("format", "", "declared format; defaults to the file extension")
		rules     = flag.String("rules", "", "YAML simplifier rules file (optional)")
		sentences = flag.Int("sentences", 5, "maximum summary sentences")
		xlsxOut   = flag.String("xlsx", "", "also write an XLSX analysis to this path")
		noText    = flag.Bool("no-original", false, "omit the original text from the JSON output")
		logLevel  = flag.String("log-level", "warn", "log level")
		timeout   = flag.Duration("timeout", 2*time.Minute, "processing timeout")
	)
	flag.Parse()

	if *file == "" {
		printError("Error: --file is required\n")
		os.Exit(1)
	}

	logger := common.NewLogger(os.Stderr, *logLevel)

	raw, err := os.ReadFile(*file)
	if err != nil {
		printError("Error: read %s: %v\n", *file, err)
		os.Exit(1)
	}
	if int64(len(raw)) > constants.MaxUploadBytes {
		printError("Error: %s is larger than %d bytes\n", *file, constants.MaxUploadBytes)
		os.Exit(1)
	}

	declared := constants.NormalizeFormat(*format)
	if declared == "" {
		declared = constants.MapExtToFormat(filepath.Ext(*file))
	}
	if declared == "" {
		declared = ingest.DetectFormat(raw)
	}

	simp := simplify.MustDefault()
	if *rules != "" {
		rs, err := simplify.LoadRules(*rules)
		if err != nil {
			printError("Error: load rules: %v\n", err)
			os.Exit(1)
		}
		if simp, err = simplify.New(rs); err != nil {
			printError("Error: compile rules: %v\n", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	p := pipeline.New(extract.NewExtractor(extract.Config{MaxConcurrent: 1}, logger), simp, *sentences, logger)
	doc := &entity.Document{
		ID:             uuid.New(),
		Filename:       filepath.Base(*file),
		DeclaredFormat: declared,
		FileSize:       int64(len(raw)),
		Status:         constants.StatusUploaded,
		CreatedAt:      time.Now().UTC(),
	}
	if err := p.Process(ctx, doc, raw, false); err != nil {
		printError("Error: processing failed: %v\n", err)
		os.Exit(1)
	}

	exporter := export.NewService(nil, logger)
	opts := export.DefaultOptions()
	opts.Original = !*noText
	data, err := exporter.RenderJSON(doc, opts)
	if err != nil {
		printError("Error: render json: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))

	if *xlsxOut != "" {
		book, err := exporter.RenderXLSX(doc)
		if err != nil {
			printError("Error: render xlsx: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*xlsxOut, book, 0o644); err != nil {
			printError("Error: write %s: %v\n", *xlsxOut, err)
			os.Exit(1)
		}
		logger.Info("xlsx written", "path", *xlsxOut, "bytes", len(book))
	}
}
