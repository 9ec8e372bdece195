package http

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cperrin88/wikidumps/pkg/errors"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "wikidumps/1.0"

// maxPageSize caps listing pages read into memory.
const maxPageSize = 16 << 20

// Status errors. Server errors are transfer errors and may be retried; the
// others are final.
var (
	ErrServerError         = fmt.Errorf("%w: server error", errors.ErrTransfer)
	ErrNotFound            = fmt.Errorf("%w: resource not found", errors.ErrUnexpectedStatus)
	ErrRangeNotSatisfiable = fmt.Errorf("%w: range not satisfiable", errors.ErrUnexpectedStatus)
	ErrUnknownLength       = fmt.Errorf("server did not advertise a content length")
	ErrIdleTimeout         = fmt.Errorf("%w: no data received within timeout", errors.ErrTransfer)
)

var _ Client = (*HTTPClient)(nil)

// HTTPClient talks to the dump server with one timeout and user agent for every request.
type HTTPClient struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// NewHTTPClient creates a new HTTP client. Transparent compression is
// disabled so advertised lengths are byte counts of the file itself.
//
// The timeout bounds each network step: connecting, the TLS handshake,
// waiting for response headers and every gap between body reads. It never
// bounds a whole transfer, so a large dump that keeps streaming is not cut off.
func NewHTTPClient(timeout time.Duration, userAgent string) *HTTPClient {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableCompression = true
	if timeout > 0 {
		dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
		transport.DialContext = dialer.DialContext
		transport.TLSHandshakeTimeout = timeout
		transport.ResponseHeaderTimeout = timeout
	}
	return &HTTPClient{
		client:    &http.Client{Transport: transport},
		timeout:   timeout,
		userAgent: userAgent,
	}
}

// Timeout returns the per-request network timeout.
func (hc *HTTPClient) Timeout() time.Duration {
	return hc.timeout
}

// Get downloads rawURL and returns its body.
func (hc *HTTPClient) Get(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := hc.do(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %w", errors.ErrTransfer, err)
	}
	return data, nil
}

// ContentLength probes the size of rawURL with HEAD. Servers that refuse HEAD
// get a GET whose body is closed unread.
func (hc *HTTPClient) ContentLength(ctx context.Context, rawURL string) (int64, error) {
	resp, err := hc.do(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		resp, err = hc.do(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return 0, err
		}
		resp.Body.Close()
	}

	if err := checkStatus(resp); err != nil {
		return 0, err
	}
	if resp.ContentLength < 0 {
		return 0, fmt.Errorf("%w: %s", ErrUnknownLength, rawURL)
	}
	return resp.ContentLength, nil
}

// GetRange requests rawURL with "Range: bytes=<offset>-".
func (hc *HTTPClient) GetRange(ctx context.Context, rawURL string, offset int64) (*RangeResponse, error) {
	header := http.Header{}
	header.Set("Range", fmt.Sprintf("bytes=%d-", offset))

	resp, err := hc.do(ctx, http.MethodGet, rawURL, header)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		rr := &RangeResponse{Body: resp.Body, Offset: offset, Total: -1, Partial: true}
		if cr := resp.Header.Get("Content-Range"); cr != "" {
			start, _, total, err := ParseContentRange(cr)
			if err != nil {
				resp.Body.Close()
				return nil, fmt.Errorf("%w: %w", errors.ErrTransfer, err)
			}
			if start != offset {
				resp.Body.Close()
				return nil, fmt.Errorf("%w: asked for offset %d, got %d", errors.ErrTransfer, offset, start)
			}
			rr.Total = total
		}
		if rr.Total < 0 && resp.ContentLength >= 0 {
			rr.Total = offset + resp.ContentLength
		}
		return rr, nil
	case http.StatusOK:
		return &RangeResponse{Body: resp.Body, Offset: 0, Total: resp.ContentLength}, nil
	case http.StatusRequestedRangeNotSatisfiable:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: offset %d", ErrRangeNotSatisfiable, offset)
	default:
		err := checkStatus(resp)
		resp.Body.Close()
		if err == nil {
			err = fmt.Errorf("%w: %d", errors.ErrUnexpectedStatus, resp.StatusCode)
		}
		return nil, err
	}
}

// do sends one request. The returned body fails with ErrIdleTimeout when the
// server stops sending for longer than the timeout.
func (hc *HTTPClient) do(ctx context.Context, method, rawURL string, header http.Header) (*http.Response, error) {
	reqCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(reqCtx, method, rawURL, http.NoBody)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "failed to create request")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("User-Agent", hc.userAgent)

	resp, err := hc.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %s %s: %w", errors.ErrTransfer, method, rawURL, err)
	}
	if hc.timeout > 0 {
		resp.Body = newIdleTimeoutBody(resp.Body, hc.timeout, cancel)
	} else {
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	}
	return resp, nil
}

// checkStatus returns an appropriate error for non-success status codes.
func checkStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, resp.Request.URL)
	case code >= 500:
		return fmt.Errorf("%w: %d %s", ErrServerError, code, http.StatusText(code))
	default:
		return fmt.Errorf("%w: %d", errors.ErrUnexpectedStatus, code)
	}
}

// IsRetryable reports whether err is a transient transfer failure.
func IsRetryable(err error) bool {
	return errors.Is(err, errors.ErrTransfer)
}

// ParseContentRange parses a Content-Range header value.
// Returns start, end, total bytes. Total is -1 if unknown.
func ParseContentRange(header string) (start, end, total int64, err error) {
	// Format: bytes start-end/total or bytes start-end/*
	header = strings.TrimPrefix(strings.TrimSpace(header), "bytes ")
	parts := strings.Split(header, "/")
	if len(parts) != 2 {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %s", header)
	}

	rangeParts := strings.Split(parts[0], "-")
	if len(rangeParts) != 2 {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %s", header)
	}

	start, err = strconv.ParseInt(rangeParts[0], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid start byte: %w", err)
	}

	end, err = strconv.ParseInt(rangeParts[1], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid end byte: %w", err)
	}

	if parts[1] == "*" {
		total = -1
	} else {
		total, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid total bytes: %w", err)
		}
	}

	return start, end, total, nil
}
