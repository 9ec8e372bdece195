// Package testutil provides an in-process dump server for tests.
package testutil

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// Request is one request seen by the DumpServer.
type Request struct {
	Method string
	Path   string
	Range  string
}

// DumpServer imitates a dump mirror: directory listings with dated anchors
// and range-capable file downloads, with hooks to inject failures.
type DumpServer struct {
	*httptest.Server

	mu             sync.Mutex
	listings       map[string]string
	files          map[string][]byte
	failures       map[string]int
	overruns       map[string]int
	replaced       map[string][]byte
	changed        map[string][]byte
	requests       []Request
	ignoreRanges   bool
	headNotAllowed bool
}

// NewDumpServer starts a DumpServer that is closed when the test ends.
func NewDumpServer(t *testing.T) *DumpServer {
	t.Helper()
	s := &DumpServer{
		listings: make(map[string]string),
		files:    make(map[string][]byte),
		failures: make(map[string]int),
		overruns: make(map[string]int),
		replaced: make(map[string][]byte),
		changed:  make(map[string][]byte),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// ListingPage renders a directory listing with one anchor per date, in the
// same shape as the Wikimedia dump server.
func ListingPage(dir string, dates ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<html>\n<head><title>Index of /%s/</title></head>\n<body>\n", dir)
	fmt.Fprintf(&b, "<h1>Index of /%s/</h1><hr><pre><a href=\"../\">../</a>\n", dir)
	for _, d := range dates {
		fmt.Fprintf(&b, "<a href=\"%s/\">%s</a>                                          01-Jan-2021 00:00    -\n", d, d)
	}
	b.WriteString("<a href=\"latest/\">latest/</a>                                            01-Jan-2021 00:00    -\n")
	b.WriteString("</pre><hr></body>\n</html>\n")
	return b.String()
}

// AddListing serves a listing for dir containing dates.
func (s *DumpServer) AddListing(dir string, dates ...string) {
	s.AddRawListing(dir, ListingPage(dir, dates...))
}

// AddRawListing serves page as the listing of dir.
func (s *DumpServer) AddRawListing(dir, page string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings["/"+strings.Trim(dir, "/")+"/"] = page
}

// AddFile serves content at path.
func (s *DumpServer) AddFile(path string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = content
}

// FailTransfers makes the next n GETs of path drop the connection after half of the body.
func (s *DumpServer) FailTransfers(path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = n
}

// Overrun makes GETs of path send extra bytes beyond the advertised length.
func (s *DumpServer) Overrun(path string, extra int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overruns[path] = extra
}

// ReplaceAfterProbe keeps answering HEAD for path with the old size but
// answers GET with content and no length headers, as if the file changed
// between the two requests.
func (s *DumpServer) ReplaceAfterProbe(path string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaced[path] = content
}

// ChangeAfterProbe keeps answering HEAD for path with the old size but
// serves content, ranges included, on GET.
func (s *DumpServer) ChangeAfterProbe(path string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changed[path] = content
}

// IgnoreRanges makes the server answer range requests with the whole file.
func (s *DumpServer) IgnoreRanges(ignore bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignoreRanges = ignore
}

// RefuseHead makes the server answer HEAD with 405.
func (s *DumpServer) RefuseHead(refuse bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headNotAllowed = refuse
}

// Requests returns every request seen so far.
func (s *DumpServer) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many requests with method hit path.
func (s *DumpServer) Count(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// Ranges returns the Range headers of the GETs of path, in order.
func (s *DumpServer) Ranges(path string) []string {
	var out []string
	for _, r := range s.Requests() {
		if r.Method == http.MethodGet && r.Path == path {
			out = append(out, r.Range)
		}
	}
	return out
}

func (s *DumpServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Range: r.Header.Get("Range")})
	listing, isListing := s.listings[r.URL.Path]
	content, isFile := s.files[r.URL.Path]
	replacement, replaced := s.replaced[r.URL.Path]
	if changed, ok := s.changed[r.URL.Path]; ok && r.Method == http.MethodGet {
		content = changed
	}
	fail := s.failures[r.URL.Path] > 0 && r.Method == http.MethodGet
	if fail {
		s.failures[r.URL.Path]--
	}
	extra := s.overruns[r.URL.Path]
	ignoreRanges := s.ignoreRanges
	headNotAllowed := s.headNotAllowed
	s.mu.Unlock()

	switch {
	case isListing:
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(listing))
	case !isFile:
		http.NotFound(w, r)
	case r.Method == http.MethodHead && headNotAllowed:
		w.WriteHeader(http.StatusMethodNotAllowed)
	case r.Method == http.MethodHead:
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.Header().Set("Accept-Ranges", "bytes")
	case replaced:
		// 200 without a length: only the probe told the client how big the file is.
		w.WriteHeader(http.StatusOK)
		flush(w)
		_, _ = w.Write(replacement)
	default:
		s.serveFile(w, r, content, fail, extra, ignoreRanges)
	}
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *DumpServer) serveFile(w http.ResponseWriter, r *http.Request, content []byte, fail bool, extra int, ignoreRanges bool) {
	offset := 0
	if rh := r.Header.Get("Range"); rh != "" && !ignoreRanges {
		var err error
		offset, err = strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(rh, "bytes="), "-"))
		if err != nil || offset > len(content) {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
	}
	body := content[offset:]

	switch {
	case extra > 0:
		// No Content-Length: the body is chunked and may exceed Content-Range.
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, len(content)-1, len(content)))
		w.WriteHeader(http.StatusPartialContent)
		flush(w)
		_, _ = w.Write(body)
		_, _ = w.Write(bytes.Repeat([]byte{'!'}, extra))
		return
	case fail:
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		if offset > 0 || r.Header.Get("Range") != "" {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, len(content)-1, len(content)))
			w.WriteHeader(http.StatusPartialContent)
		}
		_, _ = w.Write(body[:len(body)/2])
		flush(w)
		time.Sleep(10 * time.Millisecond)
		panic(http.ErrAbortHandler)
	case r.Header.Get("Range") != "" && !ignoreRanges:
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, len(content)-1, len(content)))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(body)
	default:
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		_, _ = w.Write(content)
	}
}
