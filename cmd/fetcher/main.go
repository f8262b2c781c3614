package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gaenroll/internal/cache"
	"gaenroll/internal/config"
	"gaenroll/internal/enrollment"
	"gaenroll/internal/exporter"
	"gaenroll/internal/gadoe"
	"gaenroll/internal/infrastructure"
	"gaenroll/internal/services"
	"gaenroll/internal/validation"
	"gaenroll/pkg/contracts/domain"
)

func main() {
	yearsFlag := flag.String("years", "", "school years to fetch: a year (2024), a range (2022-2024), or a comma list (2022,2024)")
	formatFlag := flag.String("format", "csv", "export format: csv | xlsx")
	outDir := flag.String("out", "", "directory for exported files (defaults to data/exports relative to executable)")
	noCache := flag.Bool("no-cache", false, "bypass the dataset cache and re-download")
	raw := flag.Bool("raw", false, "export the merged wide table per year instead of tidy records")
	flag.Parse()

	// Initialize paths first to get default directories
	paths, err := config.GetPaths()
	if err != nil {
		fmt.Printf("Error: Failed to initialize paths: %v\n", err)
		os.Exit(1)
	}

	// Use the centralized exports directory as default if not specified
	if *outDir == "" {
		*outDir = paths.ExportsDir
	}
	if !filepath.IsAbs(*outDir) {
		abs, err := filepath.Abs(*outDir)
		if err != nil {
			fmt.Printf("Error: Failed to resolve output directory: %v\n", err)
			os.Exit(1)
		}
		*outDir = abs
	}

	// Ensure all required directories exist
	if err := paths.EnsureDirectories(); err != nil {
		fmt.Printf("Error: Failed to create required directories: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Warning: Failed to load config, using defaults: %v\n", err)
		cfg = config.Default()
		cfg.Logging.FilePath = paths.GetLogPath("fetcher.log")
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Printf("Warning: Failed to initialize logger, using default: %v\n", err)
		logger = slog.Default()
	}

	years, err := parseYears(*yearsFlag)
	if err != nil {
		logger.Error("Invalid -years flag", slog.String("error", err.Error()))
		fmt.Printf("Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	format, err := exporter.ParseFormat(*formatFlag)
	if err != nil {
		logger.Error("Invalid -format flag", slog.String("error", err.Error()))
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	validator := validation.NewFileValidator(logger)
	if err := validator.ValidateOutputDirectory(*outDir); err != nil {
		logger.Error("Output directory validation failed", slog.String("error", err.Error()))
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Enrollment fetcher starting",
		slog.Any("years", years),
		slog.String("format", string(format)),
		slog.String("output_dir", *outDir),
		slog.Bool("no_cache", *noCache),
		slog.Bool("raw", *raw),
		slog.String("executable_dir", paths.ExecutableDir))

	// Build the acquisition stack. The configured cache dir is relative
	// to the executable unless given as an absolute path.
	cacheDir := cfg.Cache.Dir
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(paths.ExecutableDir, cacheDir)
	}
	store := cache.NewFileStore(cacheDir, logger)

	client := gadoe.NewClient(cfg.Source, logger)
	resolver := gadoe.NewResolver(client, logger)

	bounds := domain.YearRange{
		MinYear: cfg.Years.Min,
		MaxYear: cfg.Years.Max,
	}
	service := services.NewEnrollmentService(bounds, resolver, client, store, nil, logger)

	opts := services.DefaultFetchOptions()
	if *noCache {
		opts.UseCache = false
	}

	ctx := infrastructure.EnsureTraceID(context.Background())

	if *raw {
		if format != exporter.FormatCSV {
			logger.Warn("Raw export always writes CSV", slog.String("requested_format", string(format)))
		}
		if err := exportRaw(ctx, service, validator, years, opts, *outDir, logger); err != nil {
			logger.Error("Raw export failed", slog.String("error", err.Error()))
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	records, err := service.FetchEnrMulti(ctx, years, opts)
	if err != nil {
		logger.Error("Fetch failed", slog.String("error", err.Error()))
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	exp := exporter.NewEnrollmentExporter(paths)
	outPath := filepath.Join(*outDir, exporter.ExportFilename(years, format))

	written, err := exp.Export(records, outPath, format)
	if err != nil {
		logger.Error("Export failed", slog.String("error", err.Error()))
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if err := validator.ValidateFile(written); err != nil {
		logger.Error("Export verification failed", slog.String("error", err.Error()))
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Export complete",
		slog.Int("records", len(records)),
		slog.String("file", written))
	fmt.Printf("Wrote %d records to %s\n", len(records), written)
}

// exportRaw writes the merged wide table for each requested year as its
// own CSV file.
func exportRaw(ctx context.Context, service *services.EnrollmentService, validator *validation.FileValidator, years []int, opts services.FetchOptions, outDir string, logger *slog.Logger) error {
	for _, year := range years {
		table, err := service.FetchEnrRaw(ctx, year, opts)
		if err != nil {
			return err
		}

		path := filepath.Join(outDir, fmt.Sprintf("enrollment_raw_%d.csv", year))
		if err := writeRawTable(path, table); err != nil {
			return err
		}
		if err := validator.ValidateFile(path); err != nil {
			return err
		}

		logger.Info("Raw table exported",
			slog.Int("year", year),
			slog.Int("rows", table.Len()),
			slog.String("file", path))
		fmt.Printf("Wrote %d rows to %s\n", table.Len(), path)
	}
	return nil
}

// writeRawTable renders a schema-tolerant table as CSV. Missing cells
// stay empty.
func writeRawTable(path string, table *enrollment.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if len(table.Columns) == 0 {
		return nil
	}

	w := csv.NewWriter(f)
	if err := w.Write(table.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(table.Columns))
	for _, r := range table.Rows {
		for i, col := range table.Columns {
			row[i] = r[col]
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// parseYears expands the -years flag into an ordered year list.
// Accepted forms: "2024", "2022-2024", "2022,2024", and comma lists
// mixing both.
func parseYears(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("-years is required")
	}

	var years []int
	seen := make(map[int]bool)

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return nil, fmt.Errorf("invalid year %q in range %q", lo, part)
			}
			end, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return nil, fmt.Errorf("invalid year %q in range %q", hi, part)
			}
			if end < start {
				return nil, fmt.Errorf("invalid range %q: end before start", part)
			}
			for year := start; year <= end; year++ {
				if !seen[year] {
					seen[year] = true
					years = append(years, year)
				}
			}
			continue
		}

		year, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid year %q", part)
		}
		if !seen[year] {
			seen[year] = true
			years = append(years, year)
		}
	}

	if len(years) == 0 {
		return nil, fmt.Errorf("-years is required")
	}
	return years, nil
}
