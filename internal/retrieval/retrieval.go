// Package retrieval reproduces the retrieval front-end's orchestration
// logic (original_source/cgi/t-retrieve.py's retrieve_code/get_filename/
// get_headers), built entirely on internal/client's call styles. It is
// not a protocol operation — the wire protocol only exposes L, G, S —
// but a small library consuming it, matching spec.md §6's description
// of the upload-root filesystem convention the front-end depends on.
// No HTTP server, session auth, or staging directory management is
// implemented: that remains out of scope (spec.md §1).
package retrieval

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/iluksbr/filerelay/internal/client"
	"github.com/iluksbr/filerelay/internal/wire"
)

// URLCodeSize is the zero-padded width of a code directory name
// (spec.md §6: URL_SIZE = 5, range 00001-99999).
const URLCodeSize = 5

// ErrCodeNotFound means the code directory was empty or absent (the
// front-end renders "Code not found" for this case, spec.md §7).
var ErrCodeNotFound = errors.New("retrieval: code not found")

// NormalizeCode zero-pads a purely numeric code to URLCodeSize,
// leaving non-numeric codes untouched.
func NormalizeCode(code string) string {
	if code == "" {
		return code
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return code
		}
	}
	return fmt.Sprintf("%0*s", URLCodeSize, code)
}

// FetchCode resolves a code directory under xferDir via c, returning
// the HTTP headers a retrieval front-end would send and a reader over
// the content file's bytes. Callers must Close the returned body.
func FetchCode(c *client.Client, xferDir, code string) (http.Header, io.ReadCloser, error) {
	dir := path.Join(xferDir, NormalizeCode(code))

	names, isFile, err := c.List(dir)
	if err != nil {
		// A missing or sandbox-rejected code directory is
		// indistinguishable from "no such code" at this layer.
		return nil, nil, fmt.Errorf("retrieval: list %s: %w", dir, errors.Join(ErrCodeNotFound, err))
	}
	if isFile {
		return nil, nil, ErrCodeNotFound
	}

	filename := firstNonDotFile(names)
	if filename == "" {
		return nil, nil, ErrCodeNotFound
	}
	contentPath := path.Join(dir, filename)

	headers, err := fetchHeaderFile(c, dir)
	if err != nil {
		return nil, nil, err
	}
	headers.Set("Content-Disposition", FormatContentDisposition("inline", path.Base(contentPath)))

	if headers.Get("Content-Length") == "" {
		if st, err := c.Stat(contentPath); err == nil {
			headers.Set("Content-Length", strconv.FormatUint(uint64(st.Size), 10))
		}
	}

	return headers, newSeqReadCloser(c, contentPath), nil
}

func firstNonDotFile(names []string) string {
	for _, n := range names {
		if !strings.HasPrefix(n, ".") {
			return n
		}
	}
	return ""
}

// fetchHeaderFile retrieves dir/.headers and parses it into an
// http.Header, seeding a default Content-Type as the Python original
// does (spec.md §6).
func fetchHeaderFile(c *client.Client, dir string) (http.Header, error) {
	h := make(http.Header)
	h.Set("Content-Type", "application/octet-stream")

	body, err := c.Get(wire.OpGet, []byte(path.Join(dir, ".headers")))
	if err != nil {
		return h, nil // .headers is optional; defaults stand
	}
	for k, v := range parseKeyValHeaders(body) {
		h.Set(k, v)
	}
	return h, nil
}

// seqReadCloser adapts client.GetSeq's pull-based iterator to
// io.ReadCloser by bridging it through a pipe: a goroutine ranges over
// the sequence, writing each chunk as it arrives, so the HTTP response
// writer can stream the file without this package buffering it whole
// (the lazy-sequence delivery style, spec.md §4.4).
type seqReadCloser struct {
	pr *io.PipeReader
}

func newSeqReadCloser(c *client.Client, path string) *seqReadCloser {
	pr, pw := io.Pipe()
	go func() {
		var werr error
		for chunk, err := range c.GetSeq(wire.OpGet, []byte(path)) {
			if err != nil {
				werr = err
				break
			}
			if _, werr = pw.Write(chunk); werr != nil {
				break
			}
		}
		pw.CloseWithError(werr)
	}()
	return &seqReadCloser{pr: pr}
}

func (s *seqReadCloser) Read(p []byte) (int, error) { return s.pr.Read(p) }
func (s *seqReadCloser) Close() error               { return s.pr.Close() }
