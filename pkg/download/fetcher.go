// Package download implements the resumable fetch protocol: skip complete
// files, resume partial ones with a range request, retry transient failures
// and refuse to write more bytes than the server advertised.
package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cperrin88/wikidumps/pkg/errors"
	"github.com/cperrin88/wikidumps/pkg/fsutil"
	wdhttp "github.com/cperrin88/wikidumps/pkg/http"
	"github.com/spf13/afero"
)

// Defaults for zero Options fields.
const (
	DefaultMaxAttempts = 5
	DefaultBlockSize   = 1 << 20
)

// SizeOverrunError is returned when a response delivers more bytes than it
// advertised. It matches errors.ErrIntegrity.
type SizeOverrunError struct {
	URL        string
	Advertised int64
	Received   int64
}

func (e *SizeOverrunError) Error() string {
	return fmt.Sprintf("%s: received %d bytes, server advertised %d", e.URL, e.Received, e.Advertised)
}

// Is makes SizeOverrunError match errors.ErrIntegrity.
func (e *SizeOverrunError) Is(target error) bool {
	return target == errors.ErrIntegrity
}

// RetryLimitExceededError is returned when every attempt failed. It unwraps
// to the error of the last attempt.
type RetryLimitExceededError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *RetryLimitExceededError) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts: %v", e.URL, e.Attempts, e.Last)
}

func (e *RetryLimitExceededError) Unwrap() error { return e.Last }

// Is makes RetryLimitExceededError match errors.ErrTransfer.
func (e *RetryLimitExceededError) Is(target error) bool {
	return target == errors.ErrTransfer
}

// transferState lives for one attempt.
type transferState struct {
	offset  int64
	total   int64
	written int64
	attempt int
}

func (s *transferState) onDisk() int64 { return s.offset + s.written }

// Fetcher downloads single files. It is safe for concurrent use as long as
// no two calls write the same local path.
type Fetcher struct {
	fs     afero.Fs
	client RangeClient
	opts   Options
}

// NewFetcher creates a Fetcher writing to fs.
func NewFetcher(fs afero.Fs, client RangeClient, opts Options) *Fetcher {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultBlockSize
	}
	return &Fetcher{fs: fs, client: client, opts: opts}
}

// Fetch makes localPath a complete copy of rawURL.
//
// A local file that already has the remote size is skipped without reading
// the body. A shorter one is resumed from its size when Resume is set; in
// every other case the file is rewritten from byte 0. After a failed attempt
// the next one always starts from byte 0, since the tail of the local file
// can no longer be trusted. A resumed request answered with 416 is retried
// the same way.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, localPath string) (Result, error) {
	res := Result{Status: Failed}

	remote, err := f.client.ContentLength(ctx, rawURL)
	if err != nil {
		return res, errors.Wrapf(err, "failed to probe %s", rawURL)
	}
	res.Size = remote

	offset, skip, err := f.decide(localPath, remote)
	if err != nil {
		return res, err
	}
	if skip {
		res.Status = Skipped
		res.Offset = remote
		return res, nil
	}
	if remote == 0 {
		return f.createEmpty(localPath, res)
	}

	var lastErr error
	for attempt := 1; attempt <= f.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := f.backoff(ctx, attempt-1); err != nil {
				return res, err
			}
		}

		state := &transferState{offset: offset, total: remote, attempt: attempt}
		err := f.transfer(ctx, rawURL, localPath, state)
		res.Attempts = attempt
		res.Offset = state.offset
		res.Bytes = state.written
		res.Size = state.total
		if err == nil {
			res.Status = Downloaded
			return res, nil
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if !retryable(err) && !rangeGone(err, offset) {
			return res, err
		}
		lastErr = err
		offset = 0
	}

	return res, &RetryLimitExceededError{URL: rawURL, Attempts: f.opts.MaxAttempts, Last: lastErr}
}

// decide picks the resume offset, or reports that the file is complete.
func (f *Fetcher) decide(localPath string, remote int64) (offset int64, skip bool, err error) {
	size, exists, err := fsutil.FileSize(f.fs, localPath)
	if err != nil {
		return 0, false, errors.Wrapf(err, "failed to inspect %s", localPath)
	}
	switch {
	case exists && size == remote && !f.opts.Force:
		return 0, true, nil
	case exists && size <= remote && f.opts.Resume && !f.opts.Force:
		return size, false, nil
	default:
		return 0, false, nil
	}
}

// transfer runs one attempt. Errors from the network wrap errors.ErrTransfer,
// overruns are *SizeOverrunError, and local filesystem errors are returned
// as they are.
func (f *Fetcher) transfer(ctx context.Context, rawURL, localPath string, st *transferState) (err error) {
	resp, err := f.client.GetRange(ctx, rawURL, st.offset)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	// A server that ignores the Range header sends the file from byte 0.
	st.offset = resp.Offset
	if resp.Total >= 0 {
		st.total = resp.Total
	}

	flag := os.O_WRONLY | os.O_CREATE
	if st.offset == 0 {
		flag |= os.O_TRUNC
	}
	file, err := f.fs.OpenFile(localPath, flag, fsutil.FileModeDefault)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", localPath)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "failed to close %s", localPath)
		}
	}()
	if st.offset > 0 {
		if _, err := file.Seek(st.offset, io.SeekStart); err != nil {
			return errors.Wrapf(err, "failed to seek %s", localPath)
		}
	}

	buf := make([]byte, f.opts.BlockSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if st.onDisk()+int64(n) > st.total {
				return &SizeOverrunError{URL: rawURL, Advertised: st.total, Received: st.onDisk() + int64(n)}
			}
			if _, werr := file.Write(buf[:n]); werr != nil {
				return errors.Wrapf(werr, "failed to write %s", localPath)
			}
			st.written += int64(n)
			if f.opts.OnProgress != nil {
				f.opts.OnProgress(st.onDisk(), st.total)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: reading %s at byte %d: %w", errors.ErrTransfer, rawURL, st.onDisk(), rerr)
		}
	}

	if st.onDisk() != st.total {
		return fmt.Errorf("%w: %s ended at byte %d of %d", errors.ErrTransfer, rawURL, st.onDisk(), st.total)
	}
	return nil
}

func (f *Fetcher) createEmpty(localPath string, res Result) (Result, error) {
	file, err := f.fs.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fsutil.FileModeDefault)
	if err != nil {
		return res, errors.Wrapf(err, "failed to create %s", localPath)
	}
	if err := file.Close(); err != nil {
		return res, errors.Wrapf(err, "failed to close %s", localPath)
	}
	res.Status = Downloaded
	return res, nil
}

func (f *Fetcher) backoff(ctx context.Context, retry int) error {
	wait := time.Duration(retry) * f.opts.RetryBackoff
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func retryable(err error) bool {
	return wdhttp.IsRetryable(err) || errors.Is(err, errors.ErrIntegrity)
}

// rangeGone reports a resume offset past the end of a remote file that
// shrank after the probe. The next attempt starts from byte 0.
func rangeGone(err error, offset int64) bool {
	return offset > 0 && errors.Is(err, wdhttp.ErrRangeNotSatisfiable)
}
