// Package transfer orchestrates whole-file transfers on top of the raw
// b2 client: single-call uploads for small files, concurrent multi-part
// uploads for large ones, with retries, bandwidth throttling and progress
// reporting.
package transfer

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/b2kit/b2go/b2"
)

// Status is the lifecycle state of an upload handle.
type Status string

const (
	// StatusPending means Start has not been called yet.
	StatusPending Status = "pending"
	// StatusWorking means bytes are moving.
	StatusWorking Status = "working"
	// StatusRetrying means a failed call is waiting out its backoff.
	StatusRetrying Status = "retrying"
	// StatusFinished means the file is stored; Result holds it.
	StatusFinished Status = "finished"
	// StatusAborted means the upload was cancelled or failed.
	StatusAborted Status = "aborted"
)

var (
	// ErrAlreadyStarted is returned by Start on a reused handle.
	ErrAlreadyStarted = errors.New("transfer: upload already started")
	// ErrAborted is returned when Abort wins over Start.
	ErrAborted = errors.New("transfer: upload aborted")
)

// UploadParams names what to upload and where. Either FilePath or
// Body+Size must be set; FilePath wins when both are.
type UploadParams struct {
	// Bucket is the destination bucket name, resolved to an id on Start.
	// BucketID skips the lookup when already known.
	Bucket   string
	BucketID string

	// FilePath is a local file to upload.
	FilePath string

	// Body is an alternative in-memory or seekable source of Size bytes.
	// Large uploads read it from several offsets concurrently.
	Body io.ReaderAt
	Size int64

	// FileName is the name stored in the bucket. Defaults to the base
	// name of FilePath.
	FileName string
}

// Upload is a single-use handle for one file transfer. Create it with
// NewUpload, drive it with Start, watch it with Status/Stats/Done and
// stop it with Abort.
type Upload struct {
	id     string
	client *b2.Client
	params UploadParams
	opts   Options

	stats   *Stats
	limiter *rate.Limiter

	mu       sync.Mutex
	status   Status
	started  bool
	aborted  bool
	cancel   context.CancelFunc
	result   *b2.File
	err      error
	onFinish []func(*Upload)

	done chan struct{}
}

// NewUpload validates options and sizes the source. The returned handle
// is idle until Start.
func NewUpload(client *b2.Client, params UploadParams, opts Options) (*Upload, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if params.Bucket == "" && params.BucketID == "" {
		return nil, errors.New("transfer: bucket is required")
	}

	size := params.Size
	if params.FilePath != "" {
		info, err := os.Stat(params.FilePath)
		if err != nil {
			return nil, fmt.Errorf("transfer: stat source: %w", err)
		}
		size = info.Size()
		if params.FileName == "" {
			params.FileName = filepath.Base(params.FilePath)
		}
		if opts.SrcLastModifiedMillis == 0 {
			opts.SrcLastModifiedMillis = info.ModTime().UnixMilli()
		}
	} else if params.Body == nil {
		return nil, errors.New("transfer: either FilePath or Body must be set")
	}
	if params.FileName == "" {
		return nil, errors.New("transfer: file name is required")
	}
	params.Size = size

	return &Upload{
		id:      uuid.NewString(),
		client:  client,
		params:  params,
		opts:    opts,
		stats:   newStats(size),
		limiter: newThrottle(opts.ThrottleBytesPerSecond),
		status:  StatusPending,
		done:    make(chan struct{}),
	}, nil
}

// ID identifies the upload in logs and callbacks.
func (u *Upload) ID() string { return u.id }

// Status returns the current lifecycle state.
func (u *Upload) Status() Status {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status
}

// Stats returns a progress snapshot. Safe to call from any goroutine.
func (u *Upload) Stats() Snapshot { return u.stats.Snapshot() }

// Done is closed when the upload reaches a terminal status.
func (u *Upload) Done() <-chan struct{} { return u.done }

// Result returns the stored file and the terminal error, if any. Valid
// once Done is closed.
func (u *Upload) Result() (*b2.File, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.result, u.err
}

// OnFinish registers a callback invoked after the upload reaches a
// terminal status. Callbacks run on the uploading goroutine.
func (u *Upload) OnFinish(fn func(*Upload)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.onFinish = append(u.onFinish, fn)
}

// Abort cancels a running upload. An unfinished large file is cancelled
// on the service so its parts do not linger. Safe to call at any time.
func (u *Upload) Abort() {
	u.mu.Lock()
	u.aborted = true
	cancel := u.cancel
	if u.status == StatusPending {
		u.status = StatusAborted
	}
	u.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Start runs the upload to completion and returns the stored file. It
// blocks; watch Stats from another goroutine for progress.
func (u *Upload) Start(ctx context.Context) (*b2.File, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	u.mu.Lock()
	if u.aborted {
		u.mu.Unlock()
		return nil, ErrAborted
	}
	if u.started {
		u.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	u.started = true
	u.status = StatusWorking
	u.cancel = cancel
	u.mu.Unlock()

	stopProgress := u.startProgress(ctx)

	file, err := u.run(ctx)

	u.mu.Lock()
	u.result = file
	u.err = err
	if err != nil {
		u.status = StatusAborted
		if u.aborted {
			u.err = ErrAborted
			err = ErrAborted
		}
	} else {
		u.status = StatusFinished
	}
	callbacks := u.onFinish
	u.mu.Unlock()

	stopProgress()
	close(u.done)
	for _, fn := range callbacks {
		fn(u)
	}
	return file, err
}

func (u *Upload) run(ctx context.Context) (*b2.File, error) {
	bucketID := u.params.BucketID
	if bucketID == "" {
		var err error
		bucketID, err = u.client.ResolveBucketID(ctx, u.params.Bucket)
		if err != nil {
			return nil, err
		}
	}

	src := u.params.Body
	if u.params.FilePath != "" {
		f, err := os.Open(u.params.FilePath)
		if err != nil {
			return nil, fmt.Errorf("transfer: open source: %w", err)
		}
		defer f.Close()
		src = f
	}

	if u.params.Size > u.opts.LargeFileCutoff {
		return u.uploadLarge(ctx, bucketID, src)
	}
	return u.uploadSmall(ctx, bucketID, src)
}

// startProgress fires the progress callback on its interval until the
// returned stop function is called, which also delivers a final snapshot.
func (u *Upload) startProgress(ctx context.Context) func() {
	if u.opts.Progress == nil {
		return func() {}
	}
	stopped := make(chan struct{})
	go func() {
		t := time.NewTicker(u.opts.ProgressInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopped:
				return
			case <-t.C:
				u.opts.Progress(u.stats.Snapshot())
			}
		}
	}()
	return func() {
		close(stopped)
		u.opts.Progress(u.stats.Snapshot())
	}
}

func (u *Upload) setStatus(s Status) {
	u.mu.Lock()
	if u.status == StatusWorking || u.status == StatusRetrying {
		u.status = s
	}
	u.mu.Unlock()
}

// uploadSmall sends the whole file in one b2_upload_file call: one pass
// to hash it, one to stream it. Failed calls get a fresh lease.
func (u *Upload) uploadSmall(ctx context.Context, bucketID string, src io.ReaderAt) (*b2.File, error) {
	size := u.params.Size
	digest, err := hashSection(src, 0, size)
	if err != nil {
		return nil, fmt.Errorf("transfer: hash source: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= u.opts.Retry.Count; attempt++ {
		if attempt > 0 {
			u.setStatus(StatusRetrying)
			if err := sleep(ctx, u.opts.Retry.Wait(attempt)); err != nil {
				return nil, err
			}
			u.setStatus(StatusWorking)
		}

		body, pr := wrapReader(ctx, io.NewSectionReader(src, 0, size), u.limiter, u.stats)
		file, err := u.trySmall(ctx, bucketID, body, digest)
		if err == nil {
			return file, nil
		}
		pr.rollback()
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
		slog.Debug("upload attempt failed", "upload", u.id, "attempt", attempt, "error", err)
	}
	return nil, lastErr
}

func (u *Upload) trySmall(ctx context.Context, bucketID string, body io.Reader, digest string) (*b2.File, error) {
	lease, err := u.client.GetUploadURL(ctx, bucketID)
	if err != nil {
		return nil, err
	}
	return u.client.UploadFile(ctx, lease, &b2.UploadFileParams{
		FileName:              u.params.FileName,
		Body:                  body,
		ContentLength:         u.params.Size,
		ContentSHA1:           digest,
		ContentType:           u.opts.ContentType,
		Info:                  u.opts.Info,
		SrcLastModifiedMillis: u.opts.SrcLastModifiedMillis,
		CustomUploadTimestamp: u.opts.CustomUploadTimestamp,
		ContentDisposition:    u.opts.ContentDisposition,
		ContentLanguage:       u.opts.ContentLanguage,
		Expires:               u.opts.Expires,
		CacheControl:          u.opts.CacheControl,
		ContentEncoding:       u.opts.ContentEncoding,
		LegalHold:             u.opts.LegalHold,
		Retention:             u.opts.Retention,
		ServerSideEncryption:  u.opts.ServerSideEncryption,
	})
}

// uploadLarge drives the start / upload parts / finish flow with a
// bounded pool of part workers sharing a small stock of leases.
func (u *Upload) uploadLarge(ctx context.Context, bucketID string, src io.ReaderAt) (*b2.File, error) {
	size := u.params.Size
	partSize, partCount := u.planParts(size)

	var customTS *b2.Timestamp
	if u.opts.CustomUploadTimestamp > 0 {
		ts := b2.Timestamp(u.opts.CustomUploadTimestamp)
		customTS = &ts
	}
	started, err := u.client.StartLargeFile(ctx, &b2.StartLargeFileParams{
		BucketID:              bucketID,
		FileName:              u.params.FileName,
		ContentType:           u.opts.ContentType,
		FileInfo:              u.buildLargeFileInfo(),
		CustomUploadTimestamp: customTS,
		FileRetention:         u.opts.Retention,
		LegalHold:             u.opts.LegalHold,
		ServerSideEncryption:  u.opts.ServerSideEncryption,
	})
	if err != nil {
		return nil, err
	}
	fileID := started.FileID

	sha1s := make([]string, partCount)
	leases := make(chan *b2.UploadPartURL, u.opts.Concurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.opts.Concurrency)
	for part := 1; part <= partCount; part++ {
		part := part
		g.Go(func() error {
			offset := int64(part-1) * partSize
			length := min(partSize, size-offset)
			digest, err := u.uploadOnePart(gctx, fileID, src, part, offset, length, leases)
			if err != nil {
				return err
			}
			sha1s[part-1] = digest
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		u.cancelLargeFile(fileID)
		return nil, err
	}

	return u.client.FinishLargeFile(ctx, fileID, sha1s)
}

// uploadOnePart hashes one section and streams it, re-leasing on every
// retry since a rejected lease is spent.
func (u *Upload) uploadOnePart(ctx context.Context, fileID string, src io.ReaderAt, part int, offset, length int64, leases chan *b2.UploadPartURL) (string, error) {
	digest, err := hashSection(src, offset, length)
	if err != nil {
		return "", fmt.Errorf("transfer: hash part %d: %w", part, err)
	}

	var lastErr error
	for attempt := 0; attempt <= u.opts.Retry.Count; attempt++ {
		if attempt > 0 {
			u.setStatus(StatusRetrying)
			if err := sleep(ctx, u.opts.Retry.Wait(attempt)); err != nil {
				return "", err
			}
			u.setStatus(StatusWorking)
		}

		lease, err := u.takeLease(ctx, fileID, leases)
		if err != nil {
			if !retryable(err) {
				return "", err
			}
			lastErr = err
			continue
		}

		body, pr := wrapReader(ctx, io.NewSectionReader(src, offset, length), u.limiter, u.stats)
		_, err = u.client.UploadPart(ctx, lease, &b2.UploadPartParams{
			PartNumber:           part,
			Body:                 body,
			ContentLength:        length,
			ContentSHA1:          digest,
			ServerSideEncryption: u.opts.ServerSideEncryption,
		})
		if err == nil {
			u.returnLease(leases, lease)
			return digest, nil
		}
		// The lease is dead after any failure; drop it.
		pr.rollback()
		if !retryable(err) {
			return "", err
		}
		lastErr = err
		slog.Debug("part upload failed", "upload", u.id, "part", part, "attempt", attempt, "error", err)
	}
	return "", lastErr
}

func (u *Upload) takeLease(ctx context.Context, fileID string, leases chan *b2.UploadPartURL) (*b2.UploadPartURL, error) {
	select {
	case lease := <-leases:
		return lease, nil
	default:
		return u.client.GetUploadPartURL(ctx, fileID)
	}
}

func (u *Upload) returnLease(leases chan *b2.UploadPartURL, lease *b2.UploadPartURL) {
	select {
	case leases <- lease:
	default:
	}
}

// cancelLargeFile abandons the unfinished file so its parts are freed.
// Runs on a fresh context because the upload's own may be cancelled.
func (u *Upload) cancelLargeFile(fileID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := u.client.CancelLargeFile(ctx, fileID); err != nil {
		slog.Warn("cancel large file failed", "upload", u.id, "fileId", fileID, "error", err)
	}
}

// planParts picks a part size honoring the service limits: every part
// except the last at least MinPartSize, at most MaxParts parts, and at
// least two parts overall.
func (u *Upload) planParts(size int64) (int64, int) {
	partSize := u.opts.PartSize
	if partSize == 0 {
		partSize = u.client.Auth().StorageAPI().RecommendedPartSize
	}
	if partSize < b2.MinPartSize {
		partSize = b2.MinPartSize
	}
	for divideAndCeil(size, partSize) > b2.MaxParts {
		partSize *= 2
	}
	if divideAndCeil(size, partSize) < 2 {
		partSize = divideAndCeil(size, 2)
		if partSize < b2.MinPartSize {
			partSize = b2.MinPartSize
		}
	}
	return partSize, int(divideAndCeil(size, partSize))
}

func (u *Upload) buildLargeFileInfo() map[string]string {
	if u.opts.Info == nil && u.opts.SrcLastModifiedMillis == 0 &&
		u.opts.ContentDisposition == "" && u.opts.ContentLanguage == "" &&
		u.opts.Expires == "" && u.opts.CacheControl == "" && u.opts.ContentEncoding == "" {
		return nil
	}
	info := make(map[string]string, len(u.opts.Info)+6)
	for k, v := range u.opts.Info {
		info[k] = v
	}
	setInfo := func(k, v string) {
		if v != "" {
			info[k] = v
		}
	}
	if u.opts.SrcLastModifiedMillis > 0 {
		info["src_last_modified_millis"] = strconv.FormatInt(u.opts.SrcLastModifiedMillis, 10)
	}
	setInfo("b2-content-disposition", u.opts.ContentDisposition)
	setInfo("b2-content-language", u.opts.ContentLanguage)
	setInfo("b2-expires", u.opts.Expires)
	setInfo("b2-cache-control", u.opts.CacheControl)
	setInfo("b2-content-encoding", u.opts.ContentEncoding)
	return info
}

func hashSection(src io.ReaderAt, offset, length int64) (string, error) {
	h := sha1.New()
	if _, err := io.Copy(h, io.NewSectionReader(src, offset, length)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func divideAndCeil(numerator, denominator int64) int64 {
	if denominator == 0 {
		return 0
	}
	quotient := numerator / denominator
	if numerator%denominator != 0 {
		quotient++
	}
	return quotient
}
