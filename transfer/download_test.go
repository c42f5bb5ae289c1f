package transfer

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadToFile(t *testing.T) {
	f := newFakeB2(t)
	f.mux.HandleFunc("/file/photos/docs/hello.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Bz-File-Id", "file-1")
		w.Header().Set("X-Bz-File-Name", "docs/hello.txt")
		_, _ = w.Write([]byte("hello world"))
	})
	client := f.client(t)

	dir := t.TempDir()
	var lastDone int64
	job := &DownloadJob{
		Bucket:    "photos",
		FileName:  "docs/hello.txt",
		TargetDir: dir,
		Callback: func(job *DownloadJob, done, total int64) {
			lastDone = done
		},
	}
	path, details, err := DownloadToFile(context.Background(), client, job)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "hello.txt"), path)
	assert.Equal(t, "file-1", details.FileID)
	assert.Equal(t, int64(11), lastDone)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	// No stray temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDownloadToFile_ErrorLeavesNoTarget(t *testing.T) {
	f := newFakeB2(t)
	f.mux.HandleFunc("/file/photos/missing.txt", func(w http.ResponseWriter, r *http.Request) {
		f.writeJSON(w, http.StatusNotFound, map[string]any{
			"status": 404, "code": "not_found", "message": "no such file",
		})
	})
	client := f.client(t)

	dir := t.TempDir()
	_, _, err := DownloadToFile(context.Background(), client, &DownloadJob{
		Bucket:    "photos",
		FileName:  "missing.txt",
		TargetDir: dir,
	})
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "missing.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownloader_Pool(t *testing.T) {
	f := newFakeB2(t)
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		f.mux.HandleFunc("/file/photos/"+name, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("content"))
		})
	}
	client := f.client(t)

	dir := t.TempDir()
	opts := &DownloadOpts{
		Workers: 2,
		Jobs: []*DownloadJob{
			{Bucket: "photos", FileName: "a.txt", TargetDir: dir},
			{Bucket: "photos", FileName: "b.txt", TargetDir: dir},
			{Bucket: "photos", FileName: "c.txt", TargetDir: dir},
		},
	}

	var ok int
	for result := range Downloader(context.Background(), client, opts) {
		require.NoError(t, result.Error)
		assert.FileExists(t, result.DownloadPath)
		ok++
	}
	assert.Equal(t, 3, ok)
}
