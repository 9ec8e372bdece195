package download

import (
	"context"
	"time"

	wdhttp "github.com/cperrin88/wikidumps/pkg/http"
)

// RangeClient is the subset of the HTTP client the fetcher needs.
type RangeClient interface {
	ContentLength(ctx context.Context, rawURL string) (int64, error)
	GetRange(ctx context.Context, rawURL string, offset int64) (*wdhttp.RangeResponse, error)
}

// Status is the outcome of one fetch.
type Status int

const (
	// Failed means the file could not be downloaded; the error says why.
	Failed Status = iota
	// Skipped means the local file already had the remote size.
	Skipped
	// Downloaded means the file was transferred completely.
	Downloaded
)

func (s Status) String() string {
	switch s {
	case Skipped:
		return "skipped"
	case Downloaded:
		return "downloaded"
	default:
		return "failed"
	}
}

// Result describes what Fetch did.
type Result struct {
	Status Status
	// Bytes is the number of bytes written by the final attempt.
	Bytes int64
	// Offset is where the final attempt started writing.
	Offset int64
	// Size is the advertised size of the remote file, 0 if never learned.
	Size int64
	// Attempts is the number of transfer requests issued.
	Attempts int
}

// Options control the behavior of the fetcher.
type Options struct {
	Resume       bool          // continue partial files with a range request
	Force        bool          // download even when the local size matches
	MaxAttempts  int           // transfer requests per file; if <=0, DefaultMaxAttempts
	BlockSize    int           // copy buffer size; if <=0, DefaultBlockSize
	RetryBackoff time.Duration // wait before retry n is n*RetryBackoff

	// OnProgress, if set, is called after every written block with the
	// number of bytes on disk and the advertised total.
	OnProgress func(written, total int64)
}
