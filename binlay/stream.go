package binlay

import (
	"fmt"
	"io"
)

// Stream is the byte-stream contract the engine consumes: sequential
// read/write, optional seeking, an absolute position, and a relative
// position counter that resets at each length-limiting wrap boundary.
// AtLimit distinguishes "ceiling reached" from "end of underlying data".
type Stream interface {
	io.Reader
	io.Writer
	io.Seeker

	// CanSeek reports whether Seek is usable.
	CanSeek() bool
	// Position is the absolute position in the underlying stream.
	Position() int64
	// Length is the total length when known, -1 otherwise.
	Length() int64
	// Relative is the position within the current scope: the whole stream
	// at the root, or the bytes consumed since the nearest limiting wrap.
	Relative() int64
	// AtLimit reports whether the last read stopped at a length ceiling
	// rather than at the end of the underlying data.
	AtLimit() bool
}

// ============================================================
// MemoryStream
// ============================================================

// MemoryStream is a seekable in-memory stream. Writing past the end grows
// the buffer; seeking past the end and writing zero-fills the gap.
type MemoryStream struct {
	buf []byte
	pos int64
}

// NewMemoryStream creates a stream positioned at the start of data. The
// slice is used directly, not copied.
func NewMemoryStream(data []byte) *MemoryStream {
	return &MemoryStream{buf: data}
}

// Bytes returns the underlying buffer.
func (m *MemoryStream) Bytes() []byte { return m.buf }

func (m *MemoryStream) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *MemoryStream) Write(p []byte) (int, error) {
	if gap := m.pos - int64(len(m.buf)); gap > 0 {
		m.buf = append(m.buf, make([]byte, gap)...)
	}
	n := copy(m.buf[m.pos:], p)
	m.buf = append(m.buf, p[n:]...)
	m.pos += int64(len(p))
	return len(p), nil
}

func (m *MemoryStream) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = m.pos + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid seek whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("seek to negative position %d", abs)
	}
	m.pos = abs
	return abs, nil
}

func (m *MemoryStream) CanSeek() bool   { return true }
func (m *MemoryStream) Position() int64 { return m.pos }
func (m *MemoryStream) Length() int64   { return int64(len(m.buf)) }
func (m *MemoryStream) Relative() int64 { return m.pos }
func (m *MemoryStream) AtLimit() bool   { return false }

// ============================================================
// NullStream
// ============================================================

// NullStream discards every write while tracking position. It backs dry-run
// serialization passes that measure a node's encoded size.
type NullStream struct {
	pos  int64
	high int64
}

// NewNullStream creates an empty discard sink.
func NewNullStream() *NullStream { return &NullStream{} }

func (s *NullStream) Read(p []byte) (int, error) { return 0, io.EOF }

func (s *NullStream) Write(p []byte) (int, error) {
	s.pos += int64(len(p))
	if s.pos > s.high {
		s.high = s.pos
	}
	return len(p), nil
}

func (s *NullStream) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = s.pos + offset
	case io.SeekEnd:
		abs = s.high + offset
	default:
		return 0, fmt.Errorf("invalid seek whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("seek to negative position %d", abs)
	}
	s.pos = abs
	return abs, nil
}

func (s *NullStream) CanSeek() bool   { return true }
func (s *NullStream) Position() int64 { return s.pos }
func (s *NullStream) Length() int64   { return s.high }
func (s *NullStream) Relative() int64 { return s.pos }
func (s *NullStream) AtLimit() bool   { return false }

// ============================================================
// Length-limiting view
// ============================================================

// boundedStream enforces a byte ceiling beneath it and restarts the relative
// position counter at the wrap boundary.
type boundedStream struct {
	src     Stream
	base    int64 // src position at wrap time
	limit   int64 // -1 for an unbounded counter
	rel     int64
	atLimit bool
}

// Limit wraps s in a length-limiting view of at most limit bytes. Reads clamp
// at the ceiling; writes that would cross it fail with ErrLengthExceeded.
// A negative limit yields an unlimited view that still restarts the relative
// counter, which is how dry-run measurement tracks encoded size.
func Limit(s Stream, limit int64) Stream {
	return &boundedStream{src: s, base: s.Position(), limit: limit}
}

func (b *boundedStream) Read(p []byte) (int, error) {
	if b.limit >= 0 {
		remaining := b.limit - b.rel
		if remaining <= 0 {
			b.atLimit = true
			return 0, io.EOF
		}
		if int64(len(p)) > remaining {
			p = p[:remaining]
		}
	}
	n, err := b.src.Read(p)
	b.rel += int64(n)
	return n, err
}

func (b *boundedStream) Write(p []byte) (int, error) {
	if b.limit >= 0 && b.rel+int64(len(p)) > b.limit {
		return 0, fmt.Errorf("%w: %d bytes into %d remaining",
			ErrLengthExceeded, len(p), b.limit-b.rel)
	}
	n, err := b.src.Write(p)
	b.rel += int64(n)
	return n, err
}

// Seek interprets offsets relative to the wrap boundary, keeping offset
// bindings scoped to the view they were declared in.
func (b *boundedStream) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = b.base + offset
	case io.SeekCurrent:
		abs = b.src.Position() + offset
	case io.SeekEnd:
		if b.limit >= 0 {
			abs = b.base + b.limit + offset
		} else {
			abs = b.src.Length() + offset
		}
	default:
		return 0, fmt.Errorf("invalid seek whence %d", whence)
	}
	pos, err := b.src.Seek(abs, io.SeekStart)
	if err != nil {
		return 0, err
	}
	b.rel = pos - b.base
	b.atLimit = false
	return b.rel, nil
}

func (b *boundedStream) CanSeek() bool   { return b.src.CanSeek() }
func (b *boundedStream) Position() int64 { return b.src.Position() }
func (b *boundedStream) Relative() int64 { return b.rel }
func (b *boundedStream) AtLimit() bool   { return b.atLimit }

func (b *boundedStream) Length() int64 {
	if b.limit >= 0 {
		return b.limit
	}
	if l := b.src.Length(); l >= 0 {
		return l - b.base
	}
	return -1
}

// ============================================================
// Byte tap
// ============================================================

// tapStream mirrors written bytes into side writers, leaving every other
// stream property untouched. Computed-field accumulators observe a node's
// encoding through one of these.
type tapStream struct {
	src  Stream
	taps []io.Writer
}

// Tap wraps s so that every written byte is also delivered to each tap.
func Tap(s Stream, taps ...io.Writer) Stream {
	return &tapStream{src: s, taps: taps}
}

func (t *tapStream) Write(p []byte) (int, error) {
	n, err := t.src.Write(p)
	for _, w := range t.taps {
		if n > 0 {
			if _, terr := w.Write(p[:n]); terr != nil && err == nil {
				err = terr
			}
		}
	}
	return n, err
}

func (t *tapStream) Read(p []byte) (int, error) { return t.src.Read(p) }

func (t *tapStream) Seek(offset int64, whence int) (int64, error) {
	return t.src.Seek(offset, whence)
}

func (t *tapStream) CanSeek() bool   { return t.src.CanSeek() }
func (t *tapStream) Position() int64 { return t.src.Position() }
func (t *tapStream) Length() int64   { return t.src.Length() }
func (t *tapStream) Relative() int64 { return t.src.Relative() }
func (t *tapStream) AtLimit() bool   { return t.src.AtLimit() }

// ============================================================
// Position scope & alignment
// ============================================================

// withPosition seeks to a scope-relative offset, runs fn, and restores the
// saved cursor on every exit path so sibling fields continue from where they
// left off, regardless of fn's outcome. A failed restore leaves the stream in
// an unknown position and is reported unless fn already failed.
func withPosition(s Stream, offset int64, fn func() error) (err error) {
	if !s.CanSeek() {
		return &UnsupportedError{Op: "offset", Message: "stream is not seekable"}
	}
	saved := s.Relative()
	if _, serr := s.Seek(offset, io.SeekStart); serr != nil {
		return serr
	}
	defer func() {
		if _, rerr := s.Seek(saved, io.SeekStart); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn()
}

// AlignStream advances the stream to the next multiple of boundary,
// measured on the relative position. When pad is true the gap is written as
// zero bytes; otherwise bytes are read and discarded, stopping early if the
// stream ends before the boundary (truncated trailing padding is tolerated).
func AlignStream(s Stream, boundary int64, pad bool) error {
	if boundary <= 0 {
		return fmt.Errorf("invalid alignment boundary %d", boundary)
	}
	delta := (boundary - s.Relative()%boundary) % boundary
	if delta == 0 {
		return nil
	}
	buf := make([]byte, delta)
	if pad {
		_, err := s.Write(buf)
		return err
	}
	for delta > 0 {
		n, err := s.Read(buf[:delta])
		delta -= int64(n)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}
