package e2e

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/jikan/internal/batch"
	"github.com/hyperjump/jikan/internal/config"
	"github.com/hyperjump/jikan/internal/export"
	"github.com/hyperjump/jikan/internal/extract"
	"github.com/hyperjump/jikan/internal/models"
	"github.com/hyperjump/jikan/internal/reshape"
	"github.com/hyperjump/jikan/internal/server"
	"github.com/hyperjump/jikan/internal/storage"
)

var names = []string{"M1", "M2", "M3"}

// threeFormats writes one workbook per supported extension, each covering one date.
// Dates are deliberately out of chronological order across files.
func threeFormats(t *testing.T, dir string) []string {
	t.Helper()
	dates := map[string]string{".xlsx": "15/3/2024", ".ods": "2/3/2024", ".csv": "1/4/2024"}
	var paths []string
	for _, ext := range SupportedFileExtensions {
		content, err := MeterSheet{Dates: []string{dates[ext]}, Names: names}.Build(ext)
		require.NoError(t, err)
		path := filepath.Join(dir, "meters"+ext)
		require.NoError(t, os.WriteFile(path, content, 0600))
		paths = append(paths, path)
	}
	return paths
}

func TestE2E_TransformAcrossFormats(t *testing.T) {
	paths := threeFormats(t, t.TempDir())
	ext := extract.NewExtractor()
	var sources []models.Source
	for _, p := range paths {
		sources = append(sources, ext.Load(p)...)
	}

	proc := batch.NewProcessor(reshape.New(), batch.WithConcurrency(3))
	listed := proc.ListEntities(sources)
	assert.Equal(t, names, listed.ShortNames)
	assert.Empty(t, listed.Failures)

	res, err := proc.Transform(context.Background(), sources, []string{"M3", "M1"})
	require.NoError(t, err)
	assert.Empty(t, res.Failures)
	assert.Empty(t, res.Warnings)

	assert.Equal(t, []string{"2/3/2024", "15/3/2024", "1/4/2024"}, res.Table.Dates)
	require.Len(t, res.Table.Rows, 3*2*24)

	// File order (xlsx, ods, csv), then selection order (M3, M1), then hour.
	dateColumn := map[int]int{0: 1, 1: 0, 2: 2}
	for file := 0; file < 3; file++ {
		for sel, n := range []int{2, 0} {
			for h := 0; h < 24; h++ {
				row := res.Table.Rows[file*48+sel*24+h]
				require.Equal(t, names[n], row.ShortName)
				require.Equal(t, models.HourLabel(h), row.Time)
				want := make([]float64, 3)
				want[dateColumn[file]] = Reading(n, 0, h)
				require.Equal(t, want, row.Values, "file %d name %s hour %d", file, names[n], h)
				require.Equal(t, row.Sum(), row.GrandTotal)
			}
		}
	}

	var buf bytes.Buffer
	require.NoError(t, export.WriteCSV(&buf, res.Table))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"time", "2/3/2024", "15/3/2024", "1/4/2024", "Grand Total", "Short Name"}, records[0])
	assert.Len(t, records, 1+144)
}

func TestE2E_ArchiveIsolatesBadMembers(t *testing.T) {
	good, err := MeterSheet{Dates: []string{"1/3/2024", "2/3/2024"}, Names: names}.Build(".xlsx")
	require.NoError(t, err)
	noID := []byte("Meter,\"1/3/2024, 00:00\"\nM1,1\n")
	archive := Archive(
		Member{"__MACOSX/._a.xlsx", []byte("resource fork")},
		Member{"readings/a.xlsx", good},
		Member{"notes.txt", []byte("ignored")},
		Member{"b.csv", noID},
		Member{"c.xlsx", []byte("corrupt")},
	)

	sources := extract.NewExtractor().LoadBytes("upload.zip", archive)
	require.Len(t, sources, 3)
	assert.Equal(t, "upload.zip/readings/a.xlsx", sources[0].Name)

	proc := batch.NewProcessor(nil)
	res, err := proc.Transform(context.Background(), sources, []string{"M2"})
	require.NoError(t, err)
	require.Len(t, res.Failures, 2)
	assert.ErrorIs(t, res.Failures[0], models.ErrMalformedSchema)
	assert.ErrorIs(t, res.Failures[1], models.ErrSourceUnreadable)
	require.Len(t, res.Table.Rows, 24)
	assert.Equal(t, []float64{Reading(1, 0, 5), Reading(1, 1, 5)}, res.Table.Rows[5].Values)
}

func TestE2E_ServerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.DatabasePath = filepath.Join(dir, "results.db")
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	require.NoError(t, err)
	defer store.Close()

	srv := server.NewServer(extract.NewExtractor(), batch.NewProcessor(reshape.FromConfig(&cfg.Sheet)), store, cfg, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var members []Member
	for _, p := range threeFormats(t, dir) {
		content, err := os.ReadFile(p)
		require.NoError(t, err)
		members = append(members, Member{filepath.Base(p), content})
	}
	archive := Archive(members...)

	post := func(path string, fields map[string]string) *http.Response {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", "readings.zip")
		require.NoError(t, err)
		_, _ = part.Write(archive)
		for k, v := range fields {
			_ = mw.WriteField(k, v)
		}
		require.NoError(t, mw.Close())
		resp, err := http.Post(ts.URL+path, mw.FormDataContentType(), &body)
		require.NoError(t, err)
		return resp
	}

	resp := post("/api/v1/entities", nil)
	var listed batch.ListResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	resp.Body.Close()
	assert.Equal(t, names, listed.ShortNames)

	resp = post("/api/v1/transform", map[string]string{"short_names": "M2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Status  string   `json:"status"`
		FileURL string   `json:"file_url"`
		Rows    int      `json:"rows"`
		Dates   []string `json:"dates"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	assert.Equal(t, "success", out.Status)
	assert.Equal(t, 72, out.Rows)
	assert.Equal(t, []string{"2/3/2024", "15/3/2024", "1/4/2024"}, out.Dates)

	resp, err = http.Get(ts.URL + out.FileURL + "?format=csv")
	require.NoError(t, err)
	defer resp.Body.Close()
	records, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 73)
	assert.Equal(t, []string{"00:00", "0", "1000", "0", "1000", "M2"}, records[1])
}
