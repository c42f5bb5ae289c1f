package transfer

import (
	"fmt"
	"time"

	"github.com/b2kit/b2go/b2"
)

const (
	// DefaultLargeFileCutoff is the size above which uploads switch to the
	// multi-part large file flow.
	DefaultLargeFileCutoff = int64(200 * 1024 * 1024)

	// MinLargeFileCutoff and MaxLargeFileCutoff bound the configurable
	// cutoff: below the minimum a large file cannot have two valid parts,
	// above the maximum a single-call upload is rejected by the service.
	MinLargeFileCutoff = int64(5 * 1024 * 1024)
	MaxLargeFileCutoff = int64(5 * 1024 * 1024 * 1024)

	// DefaultConcurrency is the number of parts uploaded in parallel.
	DefaultConcurrency = 3

	// DefaultProgressInterval is how often the progress callback fires.
	DefaultProgressInterval = time.Second
)

// ProgressFunc receives periodic transfer snapshots.
type ProgressFunc func(Snapshot)

// Options tune a single upload. The zero value is usable; Validate fills
// in defaults.
type Options struct {
	// LargeFileCutoff switches between single-call and multi-part upload.
	LargeFileCutoff int64

	// PartSize for large files. Zero means the account's recommended part
	// size from authorization.
	PartSize int64

	// Concurrency is the number of concurrent part uploads.
	Concurrency int

	// ThrottleBytesPerSecond caps upload bandwidth across all parts.
	// Zero means unthrottled.
	ThrottleBytesPerSecond int64

	// Retry governs retries of failed single-call uploads and parts.
	Retry RetryStrategy

	// ContentType defaults to automatic detection by the service.
	ContentType string

	// Info is user metadata stored with the file.
	Info map[string]string

	// SrcLastModifiedMillis records the source's modification time (unix
	// millis) in the file info. Zero means take the source file's mtime
	// when uploading from a path.
	SrcLastModifiedMillis int64

	// CustomUploadTimestamp overrides the service-assigned upload
	// timestamp (unix millis). The account must have the feature enabled.
	CustomUploadTimestamp int64

	ContentDisposition string
	ContentLanguage    string
	Expires            string
	CacheControl       string
	ContentEncoding    string

	LegalHold            string
	Retention            *b2.RetentionSetting
	ServerSideEncryption *b2.ServerSideEncryption

	// Progress, when set, is called every ProgressInterval while the
	// upload runs, and once more when it finishes.
	Progress         ProgressFunc
	ProgressInterval time.Duration
}

// Validate checks bounds and fills in defaults in place.
func (o *Options) Validate() error {
	if o.LargeFileCutoff == 0 {
		o.LargeFileCutoff = DefaultLargeFileCutoff
	}
	if o.LargeFileCutoff < MinLargeFileCutoff || o.LargeFileCutoff > MaxLargeFileCutoff {
		return fmt.Errorf("transfer: large file cutoff %d out of range [%d, %d]",
			o.LargeFileCutoff, MinLargeFileCutoff, MaxLargeFileCutoff)
	}
	if o.PartSize != 0 && (o.PartSize < b2.MinPartSize || o.PartSize > b2.MaxPartSize) {
		return fmt.Errorf("transfer: part size %d out of range [%d, %d]",
			o.PartSize, b2.MinPartSize, b2.MaxPartSize)
	}
	if o.Concurrency < 0 {
		return fmt.Errorf("transfer: concurrency must be positive")
	}
	if o.Concurrency == 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.ThrottleBytesPerSecond < 0 {
		return fmt.Errorf("transfer: throttle must be positive")
	}
	o.Retry.applyDefaults()
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = DefaultProgressInterval
	}
	return nil
}
