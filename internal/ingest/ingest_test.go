package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipts-extractor/internal/common"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "a.json")
	writeFile(t, jsonPath, `{"text":"TOTAL 12.50","textLines":[{"text":"TOTAL 12.50","boundingBox":[10,20,200,24],"confidence":0.9}],"detected_language":"en","success":true}`)
	txtPath := filepath.Join(dir, "b.TXT")
	writeFile(t, txtPath, "Corner Store\nTOTAL 12.50\n")

	r, err := Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "en", r.DetectedLanguage)
	require.Len(t, r.TextLines, 1)
	assert.Equal(t, 200.0, r.TextLines[0].BoundingBox.Width)

	r, err = Load(txtPath)
	require.NoError(t, err)
	assert.Empty(t, r.TextLines)
	assert.Equal(t, "Corner Store\nTOTAL 12.50\n", r.Text)
	assert.True(t, r.Success)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	writeFile(t, bad, `{"textLines": 3}`)
	img := filepath.Join(dir, "scan.png")
	writeFile(t, img, "png")

	tests := []struct {
		name string
		path string
		is   error
	}{
		{"malformed json", bad, common.ErrInvalidInput},
		{"unsupported extension", img, common.ErrInvalidInput},
		{"missing file", filepath.Join(dir, "missing.json"), os.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			assert.ErrorIs(t, err, tt.is)
		})
	}
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.json"), "{}")
	writeFile(t, filepath.Join(root, "a.txt"), "x")
	writeFile(t, filepath.Join(root, "nested", "c.json"), "{}")
	writeFile(t, filepath.Join(root, "scan.jpg"), "x")
	writeFile(t, filepath.Join(root, ".cache", "d.json"), "{}")
	writeFile(t, filepath.Join(root, ".e.json"), "{}")

	paths, stats, err := ScanDirectory(context.Background(), root, true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "b.json"),
		filepath.Join(root, "nested", "c.json"),
	}, paths)
	assert.Equal(t, uint32(3), stats.Matched)

	all, _, err := ScanDirectory(context.Background(), root, false)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestScanDirectoryErrors(t *testing.T) {
	_, _, err := ScanDirectory(context.Background(), " ", false)
	assert.Error(t, err)

	_, _, err = ScanDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"), false)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watcher event")
		return ""
	}
}

func TestWatch(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "existing.json")
	writeFile(t, existing, "{}")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := Watch(ctx, WatchConfig{
		Roots:       []string{root},
		InitialScan: true,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	assert.Equal(t, existing, receive(t, events))

	created := filepath.Join(root, "new.txt")
	writeFile(t, filepath.Join(root, "ignored.png"), "x")
	writeFile(t, created, "TOTAL 1.00")
	assert.Equal(t, created, receive(t, events))

	cancel()
	for range events {
	}
}

func TestWatchRequiresRoots(t *testing.T) {
	_, _, err := Watch(context.Background(), WatchConfig{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	assert.Error(t, err)
}
