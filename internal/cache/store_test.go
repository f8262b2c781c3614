package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gaenroll/pkg/contracts/domain"
)

// Both implementations satisfy the service-facing contract.
var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

func TestFilename(t *testing.T) {
	assert.Equal(t, "enrollment_subgroup_2024.csv", Filename(2024, domain.DatasetSubgroup))
	assert.Equal(t, "enrollment_grade_2011.csv", Filename(2011, domain.DatasetGrade))
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantYear    int
		wantDataset domain.Dataset
		wantOK      bool
	}{
		{
			name:        "subgroup entry",
			filename:    "enrollment_subgroup_2024.csv",
			wantYear:    2024,
			wantDataset: domain.DatasetSubgroup,
			wantOK:      true,
		},
		{
			name:        "grade entry",
			filename:    "enrollment_grade_2023.csv",
			wantYear:    2023,
			wantDataset: domain.DatasetGrade,
			wantOK:      true,
		},
		{
			name:     "unknown dataset",
			filename: "enrollment_bogus_2024.csv",
			wantOK:   false,
		},
		{
			name:     "wrong extension",
			filename: "enrollment_subgroup_2024.xlsx",
			wantOK:   false,
		},
		{
			name:     "unrelated file",
			filename: "notes.txt",
			wantOK:   false,
		},
		{
			name:     "temp file",
			filename: ".enrollment-123.tmp",
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			year, dataset, ok := parseFilename(tt.filename)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantYear, year)
				assert.Equal(t, tt.wantDataset, dataset)
			}
		})
	}
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, 2024, domain.DatasetSubgroup)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, 2024, domain.DatasetSubgroup, []byte("payload")))

	data, ok, err := store.Get(ctx, 2024, domain.DatasetSubgroup)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("payload"), data)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, 2024, domain.DatasetSubgroup, []byte("abc")))

	data, _, err := store.Get(ctx, 2024, domain.DatasetSubgroup)
	require.NoError(t, err)
	data[0] = 'x'

	again, _, err := store.Get(ctx, 2024, domain.DatasetSubgroup)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again, "mutating a returned payload must not poison the cache")
}

func TestMemoryStore_StatusOrdering(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, 2024, domain.DatasetGrade, []byte("1")))
	require.NoError(t, store.Put(ctx, 2023, domain.DatasetSubgroup, []byte("22")))
	require.NoError(t, store.Put(ctx, 2024, domain.DatasetSubgroup, []byte("333")))

	entries, err := store.Status(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, 2023, entries[0].Year)
	assert.Equal(t, 2024, entries[1].Year)
	assert.Equal(t, domain.DatasetSubgroup, entries[1].Dataset)
	assert.Equal(t, 2024, entries[2].Year)
	assert.Equal(t, domain.DatasetGrade, entries[2].Dataset)
	assert.Equal(t, int64(2), entries[0].SizeBytes)
}

func TestMemoryStore_Clear(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, 2023, domain.DatasetSubgroup, []byte("a")))
	require.NoError(t, store.Put(ctx, 2024, domain.DatasetSubgroup, []byte("b")))
	require.NoError(t, store.Put(ctx, 2024, domain.DatasetGrade, []byte("c")))

	removed, err := store.Clear(ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	entries, err := store.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
