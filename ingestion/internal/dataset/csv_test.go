package dataset

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

const studentsCSV = `gender,race_ethnicity,math_score,reading_score
female,group B,72,72
female,group C,69,90
male,group A,47,57
male,"group C, extended",76,78
`

func TestIngestion_Dataset_Read(t *testing.T) {
	t.Parallel()

	ds, err := Read(strings.NewReader(studentsCSV))
	require.NoError(t, err)
	require.Equal(t, []string{"gender", "race_ethnicity", "math_score", "reading_score"}, ds.Header)
	require.Equal(t, 4, ds.Len())
	require.Equal(t, []string{"male", "group C, extended", "76", "78"}, ds.Rows[3])
}

func TestIngestion_Dataset_Read_StripsBOM(t *testing.T) {
	t.Parallel()

	ds, err := Read(bytes.NewReader(append([]byte{0xEF, 0xBB, 0xBF}, studentsCSV...)))
	require.NoError(t, err)
	require.Equal(t, "gender", ds.Header[0])
}

func TestIngestion_Dataset_Read_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "empty input", input: ""},
		{name: "ragged row", input: "a,b,c\n1,2,3\n4,5\n"},
		{name: "bare quote", input: "a,b\n1,\"x\"y\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Read(strings.NewReader(tt.input))
			require.Error(t, err)
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestIngestion_Dataset_Read_HeaderOnly(t *testing.T) {
	t.Parallel()

	ds, err := Read(strings.NewReader("a,b,c\n"))
	require.NoError(t, err)
	require.Equal(t, 0, ds.Len())
	require.Equal(t, []string{"a", "b", "c"}, ds.Columns())
}

func TestIngestion_Dataset_ReadFile_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := ReadFile(filepath.Join(dir, "missing.csv"))
	require.ErrorIs(t, err, fs.ErrNotExist)
	require.NotErrorIs(t, err, ErrMalformed)

	_, err = ReadFile(dir)
	require.ErrorIs(t, err, ErrIsDirectory)

	bad := filepath.Join(dir, "bad.csv.gz")
	require.NoError(t, os.WriteFile(bad, []byte("not gzip"), 0644))
	_, err = ReadFile(bad)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestIngestion_Dataset_ReadFile_Compressed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	want, err := Read(strings.NewReader(studentsCSV))
	require.NoError(t, err)

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, err = gw.Write([]byte(studentsCSV))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	gzPath := filepath.Join(dir, "students.csv.gz")
	require.NoError(t, os.WriteFile(gzPath, gz.Bytes(), 0644))

	var zs bytes.Buffer
	zw, err := zstd.NewWriter(&zs)
	require.NoError(t, err)
	_, err = zw.Write([]byte(studentsCSV))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	zstPath := filepath.Join(dir, "students.csv.zst")
	require.NoError(t, os.WriteFile(zstPath, zs.Bytes(), 0644))

	for _, path := range []string{gzPath, zstPath} {
		got, err := ReadFile(path)
		require.NoError(t, err, path)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("%s mismatch (-want +got):\n%s", filepath.Base(path), diff)
		}
	}
}

func TestIngestion_Dataset_WriteFile_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")

	ds, err := Read(strings.NewReader(studentsCSV))
	require.NoError(t, err)
	require.NoError(t, WriteFile(path, ds))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, studentsCSV, string(raw))

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, ds.Header, got.Header)
	require.Equal(t, ds.Len(), got.Len())
	if diff := cmp.Diff(ds.Rows, got.Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestIngestion_Dataset_Write_SingleEmptyField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		rows  int
	}{
		{name: "empty row between values", input: "a\n\"\"\nx\n", rows: 2},
		{name: "only empty rows", input: "a\n\"\"\n\"\"\n", rows: 2},
		{name: "empty header", input: "\"\"\n1\n", rows: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ds, err := Read(strings.NewReader(tt.input))
			require.NoError(t, err)
			require.Equal(t, tt.rows, ds.Len())

			var buf bytes.Buffer
			require.NoError(t, Write(&buf, ds))
			require.Equal(t, tt.input, buf.String())

			got, err := Read(&buf)
			require.NoError(t, err)
			require.Equal(t, ds.Len(), got.Len())
			if diff := cmp.Diff(ds, got); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIngestion_Dataset_WriteFile_Overwrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale,content\nthat,is\nmuch,longer\nthan,output\n"), 0644))

	require.NoError(t, WriteFile(path, New([]string{"a"}, [][]string{{"1"}})))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "a\n1\n", string(raw))
}

func TestIngestion_Dataset_WriteFile_MissingDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nope", "out.csv")
	err := WriteFile(path, New([]string{"a"}, nil))
	require.Error(t, err)
	require.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestIngestion_Dataset_Subset(t *testing.T) {
	t.Parallel()

	ds := New([]string{"id"}, [][]string{{"0"}, {"1"}, {"2"}, {"3"}})
	sub := ds.Subset([]int{3, 1})

	require.Equal(t, 2, sub.Len())
	require.Equal(t, [][]string{{"3"}, {"1"}}, sub.Rows)
	require.Equal(t, 4, ds.Len())
}
