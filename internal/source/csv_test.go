package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redmig/internal/domain"
)

const sampleCSV = `SubjectID,Geburtsdatum, Geschlecht
P-001,20.03.1985,Female
P-002,01.11.1990,Male
P-003,,`

func TestParseCSV(t *testing.T) {
	src, err := ParseCSV([]byte(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, []string{"SubjectID", "Geburtsdatum", "Geschlecht"}, src.Headers())
	assert.Equal(t, 3, src.Total())

	ctx := context.Background()
	row, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceRecord{
		"SubjectID":    "P-001",
		"Geburtsdatum": "20.03.1985",
		"Geschlecht":   "Female",
	}, row)

	_, err = src.Next(ctx)
	require.NoError(t, err)

	row, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", row["Geburtsdatum"])

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestParseCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty file", raw: ""},
		{name: "duplicate header", raw: "id,id\n1,2"},
		{name: "blank header", raw: "id,,x\n1,2,3"},
		{name: "ragged quoting", raw: "id,name\n1,\"unterminated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestOpenCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	src, err := OpenCSV(path)
	require.NoError(t, err)
	assert.Equal(t, 3, src.Total())

	_, err = OpenCSV(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}

func TestNextHonorsContext(t *testing.T) {
	src, err := ParseCSV([]byte(sampleCSV))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemorySource(t *testing.T) {
	rows := []domain.SourceRecord{
		{"SubjectID": "P-001"},
		{"SubjectID": "P-002"},
	}
	src := NewMemorySource([]string{"SubjectID"}, rows)
	assert.Equal(t, 2, src.Total())

	ctx := context.Background()
	first, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "P-001", first["SubjectID"])

	_, err = src.Next(ctx)
	require.NoError(t, err)
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}
