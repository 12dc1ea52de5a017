package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "aegis/internal/errors"
)

func buildZip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestLoadArchive(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"patients.csv": []byte("id,age\n1,34\n2,51\n"),
		"broken.csv":   nil, // zero-byte tabular entry
	})

	l := newTestLoader(t)
	res := l.Load(context.Background(), "bundle.zip", data, FormatZIP)
	require.True(t, res.OK(), "load failed: %v", res.Err)
	require.Nil(t, res.Dataset)
	require.Len(t, res.Entries, 2)

	byName := make(map[string]ArchiveEntry, len(res.Entries))
	for _, e := range res.Entries {
		byName[e.Name] = e
	}

	good := byName["patients.csv"]
	require.Nil(t, good.Err)
	require.NotNil(t, good.Dataset)
	assert.Equal(t, 2, good.Dataset.RowCount())
	assert.Equal(t, int64(17), good.Size)

	bad := byName["broken.csv"]
	require.NotNil(t, bad.Err)
	assert.Nil(t, bad.Dataset)
	assert.Equal(t, apperrors.KindEmptySource, bad.Err.Kind)
}

func TestLoadArchive_SkipsNonTabular(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"readme.txt":   []byte("not a dataset"),
		"subjects.csv": []byte("id\n1\n"),
	})

	l := newTestLoader(t)
	res := l.Load(context.Background(), "bundle.zip", data, FormatZIP)
	require.True(t, res.OK(), "load failed: %v", res.Err)
	require.Len(t, res.Entries, 2)

	for _, e := range res.Entries {
		switch e.Name {
		case "readme.txt":
			assert.Nil(t, e.Dataset)
			assert.Nil(t, e.Err)
		case "subjects.csv":
			assert.NotNil(t, e.Dataset)
		default:
			t.Fatalf("unexpected entry %q", e.Name)
		}
	}
}

func TestLoadArchive_NestedArchiveNotRecursed(t *testing.T) {
	inner := buildZip(t, map[string][]byte{"deep.csv": []byte("a\n1\n")})
	data := buildZip(t, map[string][]byte{"inner.zip": inner})

	l := newTestLoader(t)
	res := l.Load(context.Background(), "bundle.zip", data, FormatZIP)
	require.True(t, res.OK(), "load failed: %v", res.Err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "inner.zip", res.Entries[0].Name)
	assert.Nil(t, res.Entries[0].Dataset)
	assert.Nil(t, res.Entries[0].Err)
}

func TestLoadArchive_CorruptEntryDoesNotFailLoad(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"sheet.xlsx": []byte("this is not a workbook"),
		"ok.csv":     []byte("x\n1\n"),
	})

	l := newTestLoader(t)
	res := l.Load(context.Background(), "bundle.zip", data, FormatZIP)
	require.True(t, res.OK(), "load failed: %v", res.Err)
	require.Len(t, res.Entries, 2)

	byName := make(map[string]ArchiveEntry, len(res.Entries))
	for _, e := range res.Entries {
		byName[e.Name] = e
	}
	require.NotNil(t, byName["sheet.xlsx"].Err)
	assert.Equal(t, apperrors.KindDecode, byName["sheet.xlsx"].Err.Kind)
	require.NotNil(t, byName["ok.csv"].Dataset)
}

func TestLoadArchive_CorruptContainer(t *testing.T) {
	l := newTestLoader(t)
	res := l.Load(context.Background(), "bundle.zip", []byte("PK\x03\x04 definitely not a zip"), FormatZIP)
	require.NotNil(t, res.Err)
	assert.Equal(t, apperrors.KindArchive, res.Err.Kind)
}
