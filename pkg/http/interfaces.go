package http

import (
	"context"
	"io"
)

// Client defines the HTTP operations used against a dump server.
type Client interface {
	// Get downloads a small resource such as a listing page with a plain GET.
	Get(ctx context.Context, rawURL string) ([]byte, error)

	// ContentLength returns the advertised size of a resource without reading its body.
	ContentLength(ctx context.Context, rawURL string) (int64, error)

	// GetRange requests the resource from offset to the end.
	// The caller must close the returned body.
	GetRange(ctx context.Context, rawURL string, offset int64) (*RangeResponse, error)
}

// RangeResponse is the answer to a range request.
type RangeResponse struct {
	Body io.ReadCloser
	// Offset is where Body starts in the remote file. It is 0 when the server
	// ignored the Range header and sent the whole file.
	Offset int64
	// Total is the advertised size of the whole remote file, -1 if unknown.
	Total int64
	// Partial is true for a 206 response.
	Partial bool
}
