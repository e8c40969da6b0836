package probe

import (
	"bytes"
	"net"
	"strconv"
	"strings"
)

// maxHeaderScan caps how much of a response is buffered while looking for the end of the header.
const maxHeaderScan = 64 << 10

// headerConn rewrites the first response header read from the connection so that a
// Content-Length net/http would refuse is dropped instead of failing the whole exchange.
// Probes only send HEAD and connections are never reused, so the first header block is the
// only one that matters; everything after it passes through untouched.
type headerConn struct {
	net.Conn
	pending []byte
	scanned bool
}

func (c *headerConn) Read(p []byte) (int, error) {
	if !c.scanned {
		c.scanned = true
		if err := c.readHeader(); err != nil && len(c.pending) == 0 {
			return 0, err
		}
	}
	if len(c.pending) > 0 {
		n := copy(p, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}
	return c.Conn.Read(p)
}

func (c *headerConn) readHeader() error {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for len(buf) < maxHeaderScan {
		n, err := c.Conn.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if end := headerEnd(buf); end >= 0 {
			c.pending = append(sanitizeHeader(buf[:end]), buf[end:]...)
			return nil
		}
		if err != nil {
			c.pending = buf
			return err
		}
	}
	c.pending = buf
	return nil
}

// headerEnd returns the offset just past the blank line that ends the header, or -1.
func headerEnd(buf []byte) int {
	end := -1
	if i := bytes.Index(buf, []byte("\n\r\n")); i >= 0 {
		end = i + 3
	}
	if i := bytes.Index(buf, []byte("\n\n")); i >= 0 && (end < 0 || i+2 < end) {
		end = i + 2
	}
	return end
}

// sanitizeHeader removes every Content-Length line when any of them is not a plain
// non-negative integer or when they disagree.
func sanitizeHeader(header []byte) []byte {
	lines := bytes.SplitAfter(header, []byte("\n"))
	var (
		values []string
		valid  = true
	)
	for _, line := range lines {
		v, ok := contentLengthValue(line)
		if !ok {
			continue
		}
		if _, err := strconv.ParseUint(v, 10, 63); err != nil {
			valid = false
		}
		if len(values) > 0 && values[0] != v {
			valid = false
		}
		values = append(values, v)
	}
	if valid {
		return header
	}

	out := make([]byte, 0, len(header))
	for _, line := range lines {
		if _, ok := contentLengthValue(line); ok {
			continue
		}
		out = append(out, line...)
	}
	return out
}

func contentLengthValue(line []byte) (string, bool) {
	name, value, found := strings.Cut(string(line), ":")
	if !found || !strings.EqualFold(name, "Content-Length") {
		return "", false
	}
	return strings.TrimSpace(value), true
}
