package transfer

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// progressReader counts bytes through an io.Reader into Stats.
type progressReader struct {
	reader io.Reader
	stats  *Stats
	// counted accumulates what this reader has added, so a failed part
	// can be rolled back before a retry.
	counted int64
}

func (pr *progressReader) Read(p []byte) (n int, err error) {
	n, err = pr.reader.Read(p)
	if n > 0 {
		pr.counted += int64(n)
		pr.stats.Add(int64(n))
	}
	return n, err
}

// rollback subtracts everything this reader counted. Used when a part
// upload fails mid-stream and the same bytes will be sent again.
func (pr *progressReader) rollback() {
	if pr.counted > 0 {
		pr.stats.Add(-pr.counted)
		pr.counted = 0
	}
}

// throttleChunk bounds a single limiter reservation. WaitN rejects
// requests larger than the burst, so reads are capped to this size.
const throttleChunk = 64 * 1024

// newThrottle builds a shared limiter for bytesPerSecond, or nil for
// unthrottled transfers. One limiter serves all part workers, so the cap
// applies to the whole upload.
func newThrottle(bytesPerSecond int64) *rate.Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	burst := int64(throttleChunk)
	if bytesPerSecond < burst {
		burst = bytesPerSecond
	}
	return rate.NewLimiter(rate.Limit(bytesPerSecond), int(burst))
}

// throttledReader paces reads through a shared rate limiter.
type throttledReader struct {
	ctx     context.Context
	reader  io.Reader
	limiter *rate.Limiter
}

func (tr *throttledReader) Read(p []byte) (int, error) {
	if len(p) > tr.limiter.Burst() {
		p = p[:tr.limiter.Burst()]
	}
	n, err := tr.reader.Read(p)
	if n > 0 {
		if werr := tr.limiter.WaitN(tr.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// wrapReader layers throttling and progress accounting over a raw part
// reader, returning the progress layer for rollback on retry.
func wrapReader(ctx context.Context, r io.Reader, limiter *rate.Limiter, stats *Stats) (io.Reader, *progressReader) {
	if limiter != nil {
		r = &throttledReader{ctx: ctx, reader: r, limiter: limiter}
	}
	pr := &progressReader{reader: r, stats: stats}
	return pr, pr
}
