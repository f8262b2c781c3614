package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	apperrors "gaenroll/internal/errors"
	"gaenroll/pkg/contracts/domain"
)

// FileStore keeps one CSV file per cached (year, dataset) pair in a
// single directory. Writes go to a temp file in the same directory and
// are renamed into place, so readers never observe a partial entry.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore creates a filesystem-backed cache rooted at dir. The
// directory is created on first write, not here.
func NewFileStore(dir string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{dir: dir, logger: logger}
}

// Get reads the cached payload for a year's dataset. A missing file is a
// miss, not an error.
func (s *FileStore) Get(ctx context.Context, year int, dataset domain.Dataset) ([]byte, bool, error) {
	path := s.entryPath(year, dataset)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s.logger.DebugContext(ctx, "cache miss",
			slog.Int("year", year),
			slog.String("dataset", dataset.String()))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.NewStorageError("failed to read cache entry", err).
			WithContext("path", path)
	}

	s.logger.DebugContext(ctx, "cache hit",
		slog.Int("year", year),
		slog.String("dataset", dataset.String()),
		slog.Int("size_bytes", len(data)))
	return data, true, nil
}

// Put stores the payload by writing a temp file alongside the entry and
// renaming it into place. An existing entry is fully replaced.
func (s *FileStore) Put(ctx context.Context, year int, dataset domain.Dataset, data []byte) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return apperrors.NewStorageError("failed to create cache directory", err).
			WithContext("dir", s.dir)
	}

	path := s.entryPath(year, dataset)

	tmp, err := os.CreateTemp(s.dir, ".enrollment-*.tmp")
	if err != nil {
		return apperrors.NewStorageError("failed to create cache temp file", err).
			WithContext("dir", s.dir)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to write cache temp file", err).
			WithContext("path", tmpName)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to close cache temp file", err).
			WithContext("path", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to commit cache entry", err).
			WithContext("path", path)
	}

	s.logger.InfoContext(ctx, "cache entry written",
		slog.Int("year", year),
		slog.String("dataset", dataset.String()),
		slog.Int("size_bytes", len(data)),
		slog.String("path", path))
	return nil
}

// Status lists every cache entry found in the directory, ordered by year
// then dataset. Files that do not match the entry naming scheme are
// ignored. A missing cache directory yields an empty listing.
func (s *FileStore) Status(ctx context.Context) ([]domain.CacheEntryInfo, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read cache directory", err).
			WithContext("dir", s.dir)
	}

	var entries []domain.CacheEntryInfo
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() {
			continue
		}
		year, dataset, ok := parseFilename(dirEntry.Name())
		if !ok {
			continue
		}
		info, err := dirEntry.Info()
		if err != nil {
			s.logger.WarnContext(ctx, "failed to stat cache entry",
				slog.String("name", dirEntry.Name()),
				slog.String("error", err.Error()))
			continue
		}
		entries = append(entries, domain.CacheEntryInfo{
			Year:       year,
			Dataset:    dataset,
			Path:       filepath.Join(s.dir, dirEntry.Name()),
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Year != entries[j].Year {
			return entries[i].Year < entries[j].Year
		}
		return datasetRank(entries[i].Dataset) < datasetRank(entries[j].Dataset)
	})
	return entries, nil
}

// Clear removes the named years' entries, or every entry when no years
// are given. Files that do not belong to the cache are never touched.
func (s *FileStore) Clear(ctx context.Context, years ...int) (int, error) {
	entries, err := s.Status(ctx)
	if err != nil {
		return 0, err
	}

	wanted := make(map[int]bool, len(years))
	for _, year := range years {
		wanted[year] = true
	}

	removed := 0
	for _, entry := range entries {
		if len(years) > 0 && !wanted[entry.Year] {
			continue
		}
		if err := os.Remove(entry.Path); err != nil {
			return removed, apperrors.NewStorageError("failed to remove cache entry", err).
				WithContext("path", entry.Path)
		}
		removed++
	}

	s.logger.InfoContext(ctx, "cache cleared",
		slog.Int("removed", removed),
		slog.String("scope", clearScope(years)))
	return removed, nil
}

func (s *FileStore) entryPath(year int, dataset domain.Dataset) string {
	return filepath.Join(s.dir, Filename(year, dataset))
}

func clearScope(years []int) string {
	if len(years) == 0 {
		return "all"
	}
	return fmt.Sprintf("years %v", years)
}
