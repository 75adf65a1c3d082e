package core

// streaming.go cleans CSV input on the fly without loading the file.
//
//   - bomSkippingReader drops a leading UTF-8 BOM (0xEF 0xBB 0xBF), which
//     Windows tools commonly write
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?'
//
// WrapForStreaming applies both in the right order.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// bomSkippingReader removes a UTF-8 BOM at the start of the stream.
type bomSkippingReader struct {
	br      *bufio.Reader
	checked bool
}

func newBOMSkippingReader(r io.Reader) *bomSkippingReader {
	return &bomSkippingReader{br: bufio.NewReader(r)}
}

func (r *bomSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true
		head, err := r.br.Peek(len(utf8BOM))
		if err == nil && bytes.Equal(head, utf8BOM) {
			_, _ = r.br.Discard(len(utf8BOM))
		}
	}
	return r.br.Read(p)
}

// utf8Sanitizer rewrites invalid UTF-8 through its own buffer. Bytes that
// might start a multi-byte sequence split across reads are held back until
// the next read.
type utf8Sanitizer struct {
	reader  io.Reader
	buf     []byte
	out     []byte // sanitized bytes not yet returned
	pending []byte
	err     error
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{
		reader:  r,
		buf:     make([]byte, 32*1024),
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(s.out) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.fill()
	}
	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

func (s *utf8Sanitizer) fill() {
	offset := copy(s.buf, s.pending)
	s.pending = s.pending[:0]

	n, err := s.reader.Read(s.buf[offset:])
	n += offset
	s.err = err

	if err == nil {
		if tail := incompleteTail(s.buf[:n]); tail > 0 {
			s.pending = append(s.pending, s.buf[n-tail:n]...)
			n -= tail
		}
	}
	s.out = s.buf[:sanitizeInPlace(s.buf[:n])]
}

// sanitizeInPlace replaces each invalid byte with '?' and returns the new length.
// The output never grows because '?' is a single byte.
func sanitizeInPlace(data []byte) int {
	if utf8.Valid(data) {
		return len(data)
	}
	w := 0
	for r := 0; r < len(data); {
		ch, size := utf8.DecodeRune(data[r:])
		if ch == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			r++
			continue
		}
		copy(data[w:], data[r:r+size])
		w += size
		r += size
	}
	return w
}

// incompleteTail returns how many trailing bytes form the start of a
// multi-byte sequence that is not yet complete.
func incompleteTail(data []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b&0xC0 == 0x80 {
			continue // continuation byte
		}
		if b < 0xC0 {
			return 0
		}
		if i < sequenceLen(b) {
			return i
		}
		return 0
	}
	return 0
}

func sequenceLen(b byte) int {
	switch {
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

// WrapForStreaming strips a BOM and sanitizes UTF-8.
func WrapForStreaming(r io.Reader) io.Reader {
	return newUTF8Sanitizer(newBOMSkippingReader(r))
}
