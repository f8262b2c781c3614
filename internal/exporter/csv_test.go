package exporter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gaenroll/internal/config"
)

// setupTestEnv builds a CSV writer over a throwaway directory tree.
func setupTestEnv(t *testing.T) (*CSVWriter, *config.Paths) {
	t.Helper()
	paths := config.PathsFor(t.TempDir())
	require.NoError(t, paths.EnsureDirectories())
	return NewCSVWriter(paths), paths
}

func TestNewCSVWriter(t *testing.T) {
	paths := &config.Paths{}
	writer := NewCSVWriter(paths)

	assert.NotNil(t, writer)
	assert.Equal(t, paths, writer.paths)
}

func TestCSVWriter_WriteCSV(t *testing.T) {
	writer, paths := setupTestEnv(t)

	tests := []struct {
		name     string
		filePath string
		options  WriteOptions
		validate func(t *testing.T, filePath string)
	}{
		{
			name:     "basic write with headers",
			filePath: "test_basic.csv",
			options: WriteOptions{
				Headers: []string{"district_code", "end_year", "subgroup"},
				Records: [][]string{
					{"601", "2024", "white"},
					{"602", "2024", "hispanic"},
				},
			},
			validate: func(t *testing.T, filePath string) {
				content, err := os.ReadFile(filePath)
				require.NoError(t, err)

				lines := strings.Split(strings.TrimSpace(string(content)), "\n")
				require.Len(t, lines, 3)
				assert.Equal(t, "district_code,end_year,subgroup", lines[0])
				assert.Equal(t, "601,2024,white", lines[1])
				assert.Equal(t, "602,2024,hispanic", lines[2])
			},
		},
		{
			name:     "write with BOM prefix",
			filePath: "test_bom.csv",
			options: WriteOptions{
				Headers:   []string{"district_code", "pct"},
				Records:   [][]string{{"601", "35.40"}},
				BOMPrefix: true,
			},
			validate: func(t *testing.T, filePath string) {
				content, err := os.ReadFile(filePath)
				require.NoError(t, err)

				assert.True(t, bytes.HasPrefix(content, []byte{0xEF, 0xBB, 0xBF}))

				lines := strings.Split(strings.TrimSpace(string(content[3:])), "\n")
				assert.Equal(t, "district_code,pct", lines[0])
				assert.Equal(t, "601,35.40", lines[1])
			},
		},
		{
			name:     "write without headers",
			filePath: "test_no_headers.csv",
			options: WriteOptions{
				Records: [][]string{
					{"a", "b"},
					{"c", "d"},
				},
			},
			validate: func(t *testing.T, filePath string) {
				content, err := os.ReadFile(filePath)
				require.NoError(t, err)

				lines := strings.Split(strings.TrimSpace(string(content)), "\n")
				require.Len(t, lines, 2)
				assert.Equal(t, "a,b", lines[0])
			},
		},
		{
			name:     "values with commas are quoted",
			filePath: "test_quoting.csv",
			options: WriteOptions{
				Headers: []string{"institution_name"},
				Records: [][]string{{"Druid Hills Academy, Main Campus"}},
			},
			validate: func(t *testing.T, filePath string) {
				content, err := os.ReadFile(filePath)
				require.NoError(t, err)
				assert.Contains(t, string(content), `"Druid Hills Academy, Main Campus"`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := writer.WriteCSV(tt.filePath, tt.options)
			require.NoError(t, err)
			tt.validate(t, paths.GetExportPath(tt.filePath))
		})
	}
}

func TestCSVWriter_AppendToCSV(t *testing.T) {
	writer, paths := setupTestEnv(t)

	require.NoError(t, writer.WriteSimpleCSV("append_test.csv",
		[]string{"year", "count"},
		[][]string{{"2023", "100"}}))
	require.NoError(t, writer.AppendToCSV("append_test.csv",
		[][]string{{"2024", "110"}}))

	content, err := os.ReadFile(paths.GetExportPath("append_test.csv"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(string(content), "\ufeff")), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "2024,110", lines[2])
}

func TestCSVWriter_ResolvePath(t *testing.T) {
	writer, paths := setupTestEnv(t)

	tests := []struct {
		name     string
		filePath string
		want     string
	}{
		{
			name:     "relative path lands in exports",
			filePath: "out.csv",
			want:     paths.GetExportPath("out.csv"),
		},
		{
			name:     "cache prefix lands in cache",
			filePath: "cache/enrollment_subgroup_2024.csv",
			want:     paths.GetCachePath("enrollment_subgroup_2024.csv"),
		},
		{
			name:     "absolute path passes through",
			filePath: filepath.Join(paths.DataDir, "elsewhere.csv"),
			want:     filepath.Join(paths.DataDir, "elsewhere.csv"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, writer.resolvePath(tt.filePath))
		})
	}
}

func TestCSVWriter_CreateStreamWriter(t *testing.T) {
	writer, paths := setupTestEnv(t)

	stream, err := writer.CreateStreamWriter("stream_test.csv", []string{"year", "subgroup"})
	require.NoError(t, err)

	require.NoError(t, stream.WriteRecord([]string{"2024", "white"}))
	require.NoError(t, stream.WriteRecord([]string{"2024", "hispanic"}))
	require.NoError(t, stream.Close())

	content, err := os.ReadFile(paths.GetExportPath("stream_test.csv"))
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(content, []byte{0xEF, 0xBB, 0xBF}))
	lines := strings.Split(strings.TrimSpace(string(content[3:])), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "year,subgroup", lines[0])
	assert.Equal(t, "2024,hispanic", lines[2])
}

func TestCSVWriter_WriteCreatesMissingDirectories(t *testing.T) {
	paths := config.PathsFor(t.TempDir())
	writer := NewCSVWriter(paths)

	err := writer.WriteSimpleCSV("nested.csv", []string{"a"}, [][]string{{"1"}})
	require.NoError(t, err)
	assert.FileExists(t, paths.GetExportPath("nested.csv"))
}
