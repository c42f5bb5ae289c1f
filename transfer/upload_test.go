package transfer

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b2kit/b2go/b2"
)

// fakeB2 serves just enough of the API for upload orchestration tests:
// authorization, bucket listing, lease endpoints and the data plane.
type fakeB2 struct {
	t   *testing.T
	mux *http.ServeMux
	srv *httptest.Server

	mu           sync.Mutex
	parts        map[int][]byte // large file parts by part number
	finished     []string       // partSha1Array from the finish call
	uploadHeader http.Header    // headers of the last single-call upload
	startInfo    map[string]string

	// stallParts makes part uploads block on partGate until it is closed.
	stallParts    atomic.Bool
	partGate      chan struct{}
	partsInFlight atomic.Int32

	uploadFails   atomic.Int32 // remaining upload calls to fail with 503
	leaseCount    atomic.Int32
	cancelCalls   atomic.Int32
	uploadedBytes atomic.Int64
}

func newFakeB2(t *testing.T) *fakeB2 {
	f := &fakeB2{
		t:        t,
		mux:      http.NewServeMux(),
		parts:    make(map[int][]byte),
		partGate: make(chan struct{}),
	}

	f.mux.HandleFunc("/b2api/v3/b2_authorize_account", func(w http.ResponseWriter, r *http.Request) {
		f.writeJSON(w, http.StatusOK, map[string]any{
			"accountId":          "acct-1",
			"authorizationToken": "account-token",
			"apiInfo": map[string]any{
				"storageApi": map[string]any{
					"apiUrl":                  f.srv.URL,
					"downloadUrl":             f.srv.URL,
					"s3ApiUrl":                "https://s3.us-west-004.backblazeb2.com",
					"capabilities":            []string{"listBuckets", "listFiles", "readFiles", "writeFiles"},
					"recommendedPartSize":     100 * 1024 * 1024,
					"absoluteMinimumPartSize": 5 * 1024 * 1024,
				},
			},
		})
	})
	f.mux.HandleFunc("/b2api/v3/b2_list_buckets", func(w http.ResponseWriter, r *http.Request) {
		f.writeJSON(w, http.StatusOK, map[string]any{
			"buckets": []map[string]any{
				{"bucketId": "bucket-1", "bucketName": "photos", "bucketType": "allPrivate"},
			},
		})
	})
	f.mux.HandleFunc("/b2api/v3/b2_get_upload_url", func(w http.ResponseWriter, r *http.Request) {
		f.leaseCount.Add(1)
		f.writeJSON(w, http.StatusOK, map[string]any{
			"bucketId":           "bucket-1",
			"uploadUrl":          f.srv.URL + "/data/upload",
			"authorizationToken": "lease-token",
		})
	})
	f.mux.HandleFunc("/b2api/v3/b2_start_large_file", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			FileInfo map[string]string `json:"fileInfo"`
		}
		data, _ := io.ReadAll(r.Body)
		require.NoError(f.t, json.Unmarshal(data, &body))
		f.mu.Lock()
		f.startInfo = body.FileInfo
		f.mu.Unlock()
		f.writeJSON(w, http.StatusOK, map[string]any{
			"fileId": "large-1", "fileName": "big.bin", "action": "start",
		})
	})
	f.mux.HandleFunc("/b2api/v3/b2_get_upload_part_url", func(w http.ResponseWriter, r *http.Request) {
		f.leaseCount.Add(1)
		f.writeJSON(w, http.StatusOK, map[string]any{
			"fileId":             "large-1",
			"uploadUrl":          f.srv.URL + "/data/part",
			"authorizationToken": "part-lease-token",
		})
	})
	f.mux.HandleFunc("/b2api/v3/b2_finish_large_file", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			FileID        string   `json:"fileId"`
			PartSHA1Array []string `json:"partSha1Array"`
		}
		data, _ := io.ReadAll(r.Body)
		require.NoError(f.t, json.Unmarshal(data, &body))
		f.mu.Lock()
		f.finished = body.PartSHA1Array
		f.mu.Unlock()
		f.writeJSON(w, http.StatusOK, map[string]any{
			"fileId": "large-1", "fileName": "big.bin", "action": "upload",
		})
	})
	f.mux.HandleFunc("/b2api/v3/b2_cancel_large_file", func(w http.ResponseWriter, r *http.Request) {
		f.cancelCalls.Add(1)
		f.writeJSON(w, http.StatusOK, map[string]any{
			"fileId": "large-1", "accountId": "acct-1", "bucketId": "bucket-1", "fileName": "big.bin",
		})
	})

	f.mux.HandleFunc("/data/upload", func(w http.ResponseWriter, r *http.Request) {
		if f.failNext(w, r) {
			return
		}
		body, err := io.ReadAll(r.Body)
		require.NoError(f.t, err)
		f.mu.Lock()
		f.uploadHeader = r.Header.Clone()
		f.mu.Unlock()
		f.uploadedBytes.Add(int64(len(body)))
		f.writeJSON(w, http.StatusOK, map[string]any{
			"fileId":        "file-1",
			"fileName":      r.Header.Get("X-Bz-File-Name"),
			"contentLength": len(body),
			"contentSha1":   r.Header.Get("X-Bz-Content-Sha1"),
			"action":        "upload",
		})
	})
	f.mux.HandleFunc("/data/part", func(w http.ResponseWriter, r *http.Request) {
		if f.stallParts.Load() {
			f.partsInFlight.Add(1)
			_, _ = io.Copy(io.Discard, r.Body)
			<-f.partGate
			f.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": 503, "code": "service_unavailable", "message": "busy",
			})
			return
		}
		if f.failNext(w, r) {
			return
		}
		var partNumber int
		_, err := fmt.Sscanf(r.Header.Get("X-Bz-Part-Number"), "%d", &partNumber)
		require.NoError(f.t, err)
		body, err := io.ReadAll(r.Body)
		require.NoError(f.t, err)

		f.mu.Lock()
		f.parts[partNumber] = body
		f.mu.Unlock()
		f.uploadedBytes.Add(int64(len(body)))
		f.writeJSON(w, http.StatusOK, map[string]any{
			"fileId":        "large-1",
			"partNumber":    partNumber,
			"contentLength": len(body),
			"contentSha1":   r.Header.Get("X-Bz-Content-Sha1"),
		})
	})

	f.srv = httptest.NewServer(f.mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeB2) failNext(w http.ResponseWriter, r *http.Request) bool {
	if f.uploadFails.Load() > 0 {
		f.uploadFails.Add(-1)
		// Drain so the client finishes streaming before the error.
		_, _ = io.Copy(io.Discard, r.Body)
		f.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": 503, "code": "service_unavailable", "message": "busy",
		})
		return true
	}
	return false
}

func (f *fakeB2) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeB2) client(t *testing.T) *b2.Client {
	c, err := b2.New(context.Background(), "key-id", "key-secret", b2.WithAuthURL(f.srv.URL))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func fastRetry() RetryStrategy {
	return RetryStrategy{Count: 5, Wait: func(int) time.Duration { return time.Millisecond }}
}

func sha1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func TestUpload_SmallFile(t *testing.T) {
	f := newFakeB2(t)
	client := f.client(t)

	content := bytes.Repeat([]byte("abc123"), 1024)
	up, err := NewUpload(client, UploadParams{
		Bucket:   "photos",
		Body:     bytes.NewReader(content),
		Size:     int64(len(content)),
		FileName: "small.bin",
	}, Options{Retry: fastRetry()})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, up.Status())
	assert.NotEmpty(t, up.ID())

	file, err := up.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "file-1", file.FileID)
	assert.Equal(t, StatusFinished, up.Status())

	snap := up.Stats()
	assert.Equal(t, int64(len(content)), snap.Done)
	assert.Equal(t, int64(len(content)), f.uploadedBytes.Load())

	result, resErr := up.Result()
	assert.Equal(t, file, result)
	assert.NoError(t, resErr)
}

func TestUpload_SmallFileRetriesBusyLease(t *testing.T) {
	f := newFakeB2(t)
	f.uploadFails.Store(2)
	client := f.client(t)

	content := bytes.Repeat([]byte("x"), 4096)
	up, err := NewUpload(client, UploadParams{
		Bucket:   "photos",
		Body:     bytes.NewReader(content),
		Size:     int64(len(content)),
		FileName: "retry.bin",
	}, Options{Retry: fastRetry()})
	require.NoError(t, err)

	_, err = up.Start(context.Background())
	require.NoError(t, err)

	// Every failed attempt leases a fresh URL and rolls its bytes back.
	assert.Equal(t, int32(3), f.leaseCount.Load())
	assert.Equal(t, int64(len(content)), up.Stats().Done)
}

func TestUpload_SmallFileRetriesExhausted(t *testing.T) {
	f := newFakeB2(t)
	f.uploadFails.Store(100)
	client := f.client(t)

	content := []byte("data")
	up, err := NewUpload(client, UploadParams{
		Bucket:   "photos",
		Body:     bytes.NewReader(content),
		Size:     int64(len(content)),
		FileName: "doomed.bin",
	}, Options{Retry: RetryStrategy{Count: 2, Wait: func(int) time.Duration { return time.Millisecond }}})
	require.NoError(t, err)

	_, err = up.Start(context.Background())
	require.Error(t, err)
	assert.True(t, b2.IsStatus(err, http.StatusServiceUnavailable))
	assert.Equal(t, StatusAborted, up.Status())
}

func TestUpload_LargeFile(t *testing.T) {
	f := newFakeB2(t)
	client := f.client(t)

	// 12 MiB with a 5 MiB part size: parts of 5, 5 and 2 MiB.
	content := bytes.Repeat([]byte{0xA5}, 12*1024*1024)
	up, err := NewUpload(client, UploadParams{
		Bucket:   "photos",
		Body:     bytes.NewReader(content),
		Size:     int64(len(content)),
		FileName: "big.bin",
	}, Options{
		LargeFileCutoff: MinLargeFileCutoff,
		PartSize:        b2.MinPartSize,
		Concurrency:     2,
		Retry:           fastRetry(),
	})
	require.NoError(t, err)

	file, err := up.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "large-1", file.FileID)

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.parts, 3)
	assert.Len(t, f.parts[1], 5*1024*1024)
	assert.Len(t, f.parts[2], 5*1024*1024)
	assert.Len(t, f.parts[3], 2*1024*1024)

	var assembled []byte
	for i := 1; i <= 3; i++ {
		assembled = append(assembled, f.parts[i]...)
	}
	assert.True(t, bytes.Equal(content, assembled), "reassembled parts must match the source")

	require.Len(t, f.finished, 3)
	for i := 1; i <= 3; i++ {
		assert.Equal(t, sha1Hex(f.parts[i]), f.finished[i-1], "part %d sha1", i)
	}
}

func TestUpload_LargeFileRetriesBusyPart(t *testing.T) {
	f := newFakeB2(t)
	f.uploadFails.Store(1)
	client := f.client(t)

	content := bytes.Repeat([]byte{0x42}, 11*1024*1024)
	up, err := NewUpload(client, UploadParams{
		Bucket:   "photos",
		Body:     bytes.NewReader(content),
		Size:     int64(len(content)),
		FileName: "big.bin",
	}, Options{
		LargeFileCutoff: MinLargeFileCutoff,
		PartSize:        b2.MinPartSize,
		Concurrency:     1,
		Retry:           fastRetry(),
	})
	require.NoError(t, err)

	_, err = up.Start(context.Background())
	require.NoError(t, err)

	// All bytes accounted for exactly once despite the failed attempt.
	assert.Equal(t, int64(len(content)), up.Stats().Done)
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.finished, 3)
}

func TestUpload_FilePathSendsModTime(t *testing.T) {
	f := newFakeB2(t)
	client := f.client(t)

	path := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg bytes"), 0o644))
	mtime := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	up, err := NewUpload(client, UploadParams{
		Bucket:   "photos",
		FilePath: path,
	}, Options{Retry: fastRetry()})
	require.NoError(t, err)

	_, err = up.Start(context.Background())
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	want := strconv.FormatInt(mtime.UnixMilli(), 10)
	assert.Equal(t, want, f.uploadHeader.Get("X-Bz-Info-src_last_modified_millis"))
	assert.Equal(t, "photo.jpg", f.uploadHeader.Get("X-Bz-File-Name"))
}

func TestUpload_LargeFileSendsModTime(t *testing.T) {
	f := newFakeB2(t)
	client := f.client(t)

	path := filepath.Join(t.TempDir(), "big.bin")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0x11}, 6*1024*1024), 0o644))
	mtime := time.Date(2023, 11, 20, 8, 30, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	up, err := NewUpload(client, UploadParams{
		Bucket:   "photos",
		FilePath: path,
	}, Options{
		LargeFileCutoff: MinLargeFileCutoff,
		PartSize:        b2.MinPartSize,
		Retry:           fastRetry(),
	})
	require.NoError(t, err)

	_, err = up.Start(context.Background())
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	want := strconv.FormatInt(mtime.UnixMilli(), 10)
	assert.Equal(t, want, f.startInfo["src_last_modified_millis"])
}

func TestUpload_AbortRunningLargeUpload(t *testing.T) {
	f := newFakeB2(t)
	f.stallParts.Store(true)
	client := f.client(t)

	content := bytes.Repeat([]byte{0x07}, 11*1024*1024)
	up, err := NewUpload(client, UploadParams{
		Bucket:   "photos",
		Body:     bytes.NewReader(content),
		Size:     int64(len(content)),
		FileName: "big.bin",
	}, Options{
		LargeFileCutoff: MinLargeFileCutoff,
		PartSize:        b2.MinPartSize,
		Concurrency:     2,
		Retry:           fastRetry(),
	})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := up.Start(context.Background())
		errCh <- err
	}()

	require.Eventually(t, func() bool { return f.partsInFlight.Load() > 0 },
		2*time.Second, 5*time.Millisecond, "a part upload must be in flight")
	up.Abort()
	close(f.partGate)

	require.ErrorIs(t, <-errCh, ErrAborted)
	assert.Equal(t, StatusAborted, up.Status())
	assert.Equal(t, int32(1), f.cancelCalls.Load(), "unfinished large file must be cancelled")

	_, resErr := up.Result()
	assert.ErrorIs(t, resErr, ErrAborted)
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Empty(t, f.finished, "aborted upload must not finish")
}

func TestUpload_AbortBeforeStart(t *testing.T) {
	f := newFakeB2(t)
	client := f.client(t)

	up, err := NewUpload(client, UploadParams{
		Bucket:   "photos",
		Body:     bytes.NewReader([]byte("x")),
		Size:     1,
		FileName: "a.bin",
	}, Options{})
	require.NoError(t, err)

	up.Abort()
	assert.Equal(t, StatusAborted, up.Status())

	_, err = up.Start(context.Background())
	assert.ErrorIs(t, err, ErrAborted)
}

func TestUpload_StartTwice(t *testing.T) {
	f := newFakeB2(t)
	client := f.client(t)

	up, err := NewUpload(client, UploadParams{
		Bucket:   "photos",
		Body:     bytes.NewReader([]byte("once")),
		Size:     4,
		FileName: "once.bin",
	}, Options{Retry: fastRetry()})
	require.NoError(t, err)

	_, err = up.Start(context.Background())
	require.NoError(t, err)

	_, err = up.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestUpload_FinishCallback(t *testing.T) {
	f := newFakeB2(t)
	client := f.client(t)

	up, err := NewUpload(client, UploadParams{
		Bucket:   "photos",
		Body:     bytes.NewReader([]byte("cb")),
		Size:     2,
		FileName: "cb.bin",
	}, Options{Retry: fastRetry()})
	require.NoError(t, err)

	var called atomic.Bool
	up.OnFinish(func(done *Upload) {
		called.Store(true)
		assert.Equal(t, StatusFinished, done.Status())
	})

	_, err = up.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, called.Load())

	select {
	case <-up.Done():
	default:
		t.Fatal("Done channel must be closed after Start returns")
	}
}

func TestUpload_ParamValidation(t *testing.T) {
	f := newFakeB2(t)
	client := f.client(t)

	_, err := NewUpload(client, UploadParams{FileName: "x"}, Options{})
	assert.ErrorContains(t, err, "bucket")

	_, err = NewUpload(client, UploadParams{Bucket: "photos"}, Options{})
	assert.ErrorContains(t, err, "FilePath or Body")

	_, err = NewUpload(client, UploadParams{
		Bucket: "photos",
		Body:   bytes.NewReader(nil),
	}, Options{})
	assert.ErrorContains(t, err, "file name")
}

func TestPlanParts(t *testing.T) {
	const mib = 1024 * 1024
	cases := []struct {
		name      string
		size      int64
		partSize  int64
		wantSize  int64
		wantCount int
	}{
		{"even split", 15 * mib, 5 * mib, 5 * mib, 3},
		{"uneven split", 12 * mib, 5 * mib, 5 * mib, 3},
		{"part larger than file", 6 * mib, 100 * mib, 5 * mib, 2},
		{"tiny clamped to minimum", 6 * mib, 5 * mib, 5 * mib, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := &Upload{opts: Options{PartSize: tc.partSize}}
			gotSize, gotCount := u.planParts(tc.size)
			assert.Equal(t, tc.wantSize, gotSize)
			assert.Equal(t, tc.wantCount, gotCount)
		})
	}
}

func TestPlanParts_RespectsMaxParts(t *testing.T) {
	u := &Upload{opts: Options{PartSize: b2.MinPartSize}}
	size := int64(b2.MinPartSize) * (b2.MaxParts + 10)
	partSize, count := u.planParts(size)
	assert.LessOrEqual(t, count, b2.MaxParts)
	assert.Greater(t, partSize, int64(b2.MinPartSize))
}
