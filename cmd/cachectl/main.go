package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"

	"gaenroll/internal/cache"
	"gaenroll/internal/config"
	"gaenroll/internal/infrastructure"
	"gaenroll/pkg/contracts/domain"
)

func main() {
	status := flag.Bool("status", false, "list cached datasets")
	clear := flag.Bool("clear", false, "remove cached datasets")
	year := flag.Int("year", 0, "limit -clear to one school year")
	flag.Parse()

	if *status == *clear {
		fmt.Println("Error: exactly one of -status or -clear is required")
		flag.Usage()
		os.Exit(1)
	}

	paths, err := config.GetPaths()
	if err != nil {
		fmt.Printf("Error: Failed to initialize paths: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Warning: Failed to load config, using defaults: %v\n", err)
		cfg = config.Default()
		cfg.Logging.FilePath = paths.GetLogPath("cachectl.log")
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Printf("Warning: Failed to initialize logger, using default: %v\n", err)
		logger = slog.Default()
	}

	cacheDir := cfg.Cache.Dir
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(paths.ExecutableDir, cacheDir)
	}
	store := cache.NewFileStore(cacheDir, logger)

	ctx := infrastructure.EnsureTraceID(context.Background())

	if *status {
		entries, err := store.Status(ctx)
		if err != nil {
			logger.Error("Cache status failed", slog.String("error", err.Error()))
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		renderStatus(os.Stdout, entries)
		return
	}

	var years []int
	if *year != 0 {
		years = append(years, *year)
	}

	removed, err := store.Clear(ctx, years...)
	if err != nil {
		logger.Error("Cache clear failed", slog.String("error", err.Error()))
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Cache cleared",
		slog.Any("years", years),
		slog.Int("removed", removed))
	if *year != 0 {
		fmt.Printf("Removed %d cached datasets for %d\n", removed, *year)
	} else {
		fmt.Printf("Removed %d cached datasets\n", removed)
	}
}

// renderStatus prints cached entries as a table plus a totals line.
func renderStatus(out *os.File, entries []domain.CacheEntryInfo) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "Cache is empty")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Year", "Dataset", "Size", "Modified"})

	var totalBytes int64
	for _, entry := range entries {
		t.AppendRow(table.Row{
			entry.Year,
			entry.Dataset,
			formatBytes(entry.SizeBytes),
			entry.ModifiedAt.Format("2006-01-02 15:04:05"),
		})
		totalBytes += entry.SizeBytes
	}

	t.SetStyle(table.StyleRounded)
	t.Render()

	fmt.Fprintf(out, "%d entries, %s total\n", len(entries), formatBytes(totalBytes))
}

// formatBytes renders a size in the nearest binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
