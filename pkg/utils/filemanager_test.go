package utils

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/iati-activity-converter/internal/types"
)

var fixedNow = time.Date(2017, 6, 1, 9, 30, 15, 0, time.UTC)

func newManager(t *testing.T) *FileManager {
	t.Helper()
	fm := NewFileManager(filepath.Join(t.TempDir(), "out"))
	fm.Now = func() time.Time { return fixedNow }
	fm.RunID = uuid.MustParse("7f1c1b2e-3c4d-4e5f-8a9b-0c1d2e3f4a5b")
	require.NoError(t, fm.EnsureDirectories())
	return fm
}

func document(group string) *types.Document {
	root := types.NewNode("iati-activities", "version", "2.01")
	root.Add("iati-activity", "hierarchy", "1").AddText("iati-identifier", "US-1-"+group)
	return &types.Document{Group: group, Name: "iati-activities-" + group + ".xml", Root: root}
}

func TestGenerateOutputFileName(t *testing.T) {
	tests := []struct {
		format string
		params map[string]string
		ext    string
		want   string
	}{
		{"iati-activities-{group}.xml", map[string]string{"group": "KE"}, ".xml", "iati-activities-KE.xml"},
		{"iati-{group}-{date}", map[string]string{"group": "298"}, ".xml", "iati-298-20170601.xml"},
		{"run_{timestamp}", nil, ".zip", "run_20170601_093015.zip"},
		{"run_{time}.ZIP", nil, ".zip", "run_093015.ZIP"},
		{"{uuid}", map[string]string{"uuid": "fixed"}, "", "fixed"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GenerateOutputFileName(tt.format, fixedNow, tt.params, tt.ext))
	}

	random := GenerateOutputFileName("{uuid}", fixedNow, nil, "")
	_, err := uuid.Parse(random)
	assert.NoError(t, err)
}

func TestWriteDocuments(t *testing.T) {
	fm := newManager(t)

	require.NoError(t, fm.Write(context.Background(), document("KE")))
	require.NoError(t, fm.Write(context.Background(), document("UG")))

	written := fm.Written()
	require.Len(t, written, 2)
	assert.Equal(t, filepath.Join(fm.OutputDir, "iati-activities-KE.xml"), written[0].Path)

	data, err := os.ReadFile(written[0].Path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte(`<?xml version="1.0" encoding="UTF-8"?>`)))
	assert.Contains(t, string(data), "<iati-identifier>US-1-KE</iati-identifier>")
	assert.Equal(t, len(data), written[0].Bytes)
}

func TestWriteUsesRunID(t *testing.T) {
	fm := newManager(t)
	doc := document("KE")
	doc.Name = "{uuid}-{group}.xml"

	require.NoError(t, fm.Write(context.Background(), doc))
	assert.Equal(t, fm.RunID.String()+"-KE.xml", filepath.Base(fm.Written()[0].Path))
}

func TestWriteRejectsSharedPath(t *testing.T) {
	fm := newManager(t)
	ke, ug := document("KE"), document("UG")
	ke.Name = "iati-{uuid}.xml"
	ug.Name = "iati-{uuid}.xml"

	require.NoError(t, fm.Write(context.Background(), ke))
	err := fm.Write(context.Background(), ug)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KE and UG")
	require.Len(t, fm.Written(), 1)

	data, err := os.ReadFile(fm.Written()[0].Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "US-1-KE")
}

func TestWriteDryRun(t *testing.T) {
	fm := newManager(t)
	fm.DryRun = true

	require.NoError(t, fm.Write(context.Background(), document("KE")))
	require.Len(t, fm.Written(), 1)
	assert.False(t, FileExists(fm.Written()[0].Path))
}

func TestWriteCancelled(t *testing.T) {
	fm := newManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, fm.Write(ctx, document("KE")), context.Canceled)
	assert.Empty(t, fm.Written())
}

func TestPackage(t *testing.T) {
	fm := newManager(t)

	_, err := fm.Package("empty.zip")
	require.Error(t, err)

	require.NoError(t, fm.Write(context.Background(), document("KE")))
	require.NoError(t, fm.Write(context.Background(), document("UG")))

	archive, err := fm.Package("iati-activities-{date}")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.OutputDir, "iati-activities-20170601.zip"), archive)

	for _, w := range fm.Written() {
		assert.False(t, FileExists(w.Path), "packaged files are removed")
	}

	zr, err := zip.OpenReader(archive)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"iati-activities-KE.xml", "iati-activities-UG.xml"}, names)
}

func TestWriteErrorLog(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteErrorLog(nil, dir, fixedNow)
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = WriteErrorLog([]ErrorLogEntry{{
		Severity: "warning", Table: "primary", RowNumber: 4,
		FieldName: "Award Transaction Value", FieldValue: "lots", Message: "amount is not numeric",
	}}, dir, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "error_log_20170601_093015.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Total Entries: 1")
	assert.Contains(t, string(data), "Row Number:     4")
	assert.Contains(t, string(data), "Value:          lots")
}

func TestWriteSummaryLog(t *testing.T) {
	dir := t.TempDir()
	summary := ProcessingSummary{
		RunID:          "run-1",
		Revision:       "2016",
		StartTime:      fixedNow,
		EndTime:        fixedNow.Add(2 * time.Second),
		InputFiles:     []string{"awards.xlsx"},
		Archive:        "out.zip",
		Groups:         []GroupSummary{{Group: "KE", OutputFile: "iati-activities-KE.xml", Rows: 3, Activities: 1, Awards: 2, Transactions: 2}},
		TotalRows:      3,
		Activities:     1,
		Awards:         2,
		Transactions:   2,
		ConvertTime:    40 * time.Millisecond,
		AvgPerActivity: 40 * time.Millisecond,
	}

	path, err := WriteSummaryLog(summary, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "processing_summary_20170601_093015.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "Run ID:         run-1")
	assert.Contains(t, out, "Duration:       2s")
	assert.Contains(t, out, "Groups:             1")
	assert.Contains(t, out, "Avg per Activity:   40ms")
	assert.Contains(t, out, "Group:        KE")
	assert.Contains(t, out, "Archive: out.zip")
}
