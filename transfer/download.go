package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/b2kit/b2go/b2"
	"github.com/b2kit/b2go/internal/utils"
)

// DefaultDownloadWorkers sizes the download pool when DownloadOpts leaves
// Workers unset.
const DefaultDownloadWorkers = 8

// DownloadJob names one file to fetch into a local directory.
type DownloadJob struct {
	Bucket    string // bucket name
	FileName  string // remote file name
	TargetDir string // directory to save the file to
	Name      string // local name, defaults to the base of FileName
	Callback  func(job *DownloadJob, downloadedBytes int64, totalBytes int64)
}

// DownloadResult pairs a finished job with where it landed or why it
// failed.
type DownloadResult struct {
	DownloadJob
	DownloadPath string
	Details      b2.FileDownloadDetails
	Error        error
}

// DownloadOpts configures a batch download.
type DownloadOpts struct {
	Workers int
	Jobs    []*DownloadJob
}

// DownloadToFile fetches one file to job.TargetDir and returns the local
// path. The write goes through a temp file so a failed download never
// leaves a truncated target behind.
func DownloadToFile(ctx context.Context, client *b2.Client, job *DownloadJob) (string, b2.FileDownloadDetails, error) {
	var details b2.FileDownloadDetails

	if job.Name == "" {
		job.Name = filepath.Base(job.FileName)
	}
	destPath := filepath.Join(job.TargetDir, job.Name)
	if err := utils.EnsureParent(destPath); err != nil {
		return "", details, fmt.Errorf("transfer: download %q: %w", job.FileName, err)
	}

	dl, err := client.DownloadFileByName(ctx, job.Bucket, job.FileName, nil)
	if err != nil {
		return "", details, err
	}
	defer dl.Body.Close()
	details = dl.Details

	tmp, err := os.CreateTemp(job.TargetDir, "."+job.Name+".*.part")
	if err != nil {
		return "", details, fmt.Errorf("transfer: download %q: %w", job.FileName, err)
	}
	defer os.Remove(tmp.Name())

	var src io.Reader = dl.Body
	if job.Callback != nil {
		src = &callbackReader{
			reader:   src,
			total:    dl.Details.ContentLength,
			interval: time.Second,
			callback: func(done, total int64) { job.Callback(job, done, total) },
		}
	}

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return "", details, fmt.Errorf("transfer: download %q: %w", job.FileName, err)
	}
	if err := tmp.Close(); err != nil {
		return "", details, fmt.Errorf("transfer: download %q: %w", job.FileName, err)
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return "", details, fmt.Errorf("transfer: download %q: %w", job.FileName, err)
	}
	return destPath, details, nil
}

// Downloader fans the jobs out over a fixed worker pool and streams
// results back as they complete. The channel closes when all jobs are
// done or the context is cancelled.
func Downloader(ctx context.Context, client *b2.Client, opts *DownloadOpts) <-chan *DownloadResult {
	jobs := make(chan *DownloadJob, len(opts.Jobs))
	results := make(chan *DownloadResult, len(opts.Jobs))

	workers := opts.Workers
	if workers == 0 {
		workers = DefaultDownloadWorkers
	}

	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for job := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
					path, details, err := DownloadToFile(ctx, client, job)
					results <- &DownloadResult{
						DownloadJob:  *job,
						DownloadPath: path,
						Details:      details,
						Error:        err,
					}
				}
			}
		}()
	}

	// Feed the work queue in a separate goroutine.
	go func() {
		defer close(jobs)
		for _, job := range opts.Jobs {
			select {
			case <-ctx.Done():
				return
			case jobs <- job:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// callbackReader reports byte counts at a fixed interval, and once more
// at EOF.
type callbackReader struct {
	reader   io.Reader
	done     int64
	total    int64
	interval time.Duration
	lastCall time.Time
	callback func(done, total int64)
}

func (cr *callbackReader) Read(p []byte) (n int, err error) {
	n, err = cr.reader.Read(p)
	if n > 0 {
		cr.done += int64(n)
	}
	now := time.Now()
	if now.Sub(cr.lastCall) > cr.interval || err == io.EOF {
		cr.callback(cr.done, cr.total)
		cr.lastCall = now
	}
	return n, err
}
