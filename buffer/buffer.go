// Package buffer implements the segmented I/O buffer described in spec.md
// §3/§4.B: an ordered queue of segments that can own its own backing
// arrays or borrow foreign, caller-released memory (mmap'd files, string
// literals) without copying, and that exposes gather-ready views for a
// single writev(2) call.
package buffer

import "errors"

// ErrAlloc is returned by EnsureWritable when growing the buffer fails.
// Per §4.B this is the one fatal condition in the buffer's contract — the
// caller decides whether that means aborting the process or just the
// request; the buffer itself never panics.
var ErrAlloc = errors.New("buffer: allocation failed")

// DefaultSegmentCapacity is the size of owned segments EnsureWritable
// allocates when it needs fresh room.
const DefaultSegmentCapacity = 4096

// Buffer is a queue of segments. Only the last segment in the queue may
// still be receiving writes (it is the "write cursor"); every earlier
// segment is fully written and only waiting to be read. The read cursor
// is always the front segment plus a byte offset into it.
type Buffer struct {
	segs       []segment
	readOff    int
	segmentCap int
}

// New returns an empty Buffer whose EnsureWritable calls allocate owned
// segments of segmentCap bytes. A segmentCap <= 0 uses DefaultSegmentCapacity.
func New(segmentCap int) *Buffer {
	if segmentCap <= 0 {
		segmentCap = DefaultSegmentCapacity
	}
	return &Buffer{segmentCap: segmentCap}
}

func (b *Buffer) tail() segment {
	if len(b.segs) == 0 {
		return nil
	}
	return b.segs[len(b.segs)-1]
}

// ReadableSize returns the number of bytes available to Read.
func (b *Buffer) ReadableSize() int {
	if len(b.segs) == 0 {
		return 0
	}
	n := b.segs[0].size() - b.readOff
	for _, s := range b.segs[1:] {
		n += s.size()
	}
	return n
}

// ReadableEmpty reports whether ReadableSize() == 0.
func (b *Buffer) ReadableEmpty() bool { return b.ReadableSize() == 0 }

// WritableSize returns the number of bytes that can be appended to the
// tail segment before EnsureWritable would need to allocate again.
func (b *Buffer) WritableSize() int {
	t := b.tail()
	if t == nil || t.readonly() {
		return 0
	}
	return t.capacity() - t.size()
}

// EnsureWritable guarantees WritableSize() > n by appending fresh owned
// segments to the tail. Allocation failure is the buffer's one fatal
// condition and is surfaced as ErrAlloc rather than a panic.
func (b *Buffer) EnsureWritable(n int) error {
	for b.WritableSize() <= n {
		capacity := b.segmentCap
		if n+1 > capacity {
			capacity = n + 1
		}
		seg := newOwnedSegmentSafe(capacity)
		if seg == nil {
			return ErrAlloc
		}
		b.segs = append(b.segs, seg)
	}
	return nil
}

// newOwnedSegmentSafe turns an allocation panic (make() refusing an
// unreasonable size) into a nil return instead of crashing the caller.
func newOwnedSegmentSafe(capacity int) (seg *ownedSegment) {
	defer func() {
		if recover() != nil {
			seg = nil
		}
	}()
	return newOwnedSegment(capacity)
}

// Write appends src to the tail segment, growing the buffer as needed.
func (b *Buffer) Write(src []byte) (int, error) {
	if len(src) == 0 {
		return 0, nil
	}
	if err := b.EnsureWritable(len(src)); err != nil {
		return 0, err
	}
	t := b.tail()
	room := t.writableFrom()
	n := copy(room, src)
	t.grow(n)
	if n < len(src) {
		// EnsureWritable guaranteed enough room in one segment; this
		// should not happen, but stay total rather than drop bytes.
		m, err := b.Write(src[n:])
		return n + m, err
	}
	return n, nil
}

// WriteString is a convenience wrapper around Write.
func (b *Buffer) WriteString(s string) (int, error) {
	return b.Write([]byte(s))
}

// WriteBuffer splices other's segments into b, donating ownership rather
// than copying. After this call other is empty. Foreign, readonly
// segments are moved as-is; owned segments are moved as-is too since
// ownership transfers with them.
func (b *Buffer) WriteBuffer(other *Buffer) {
	if other == nil || len(other.segs) == 0 {
		return
	}
	// Drop any already-consumed bytes in other's front segment before
	// splicing: the read cursor is part of other's state, not a property
	// of the segment, so we must materialize it before handing the
	// segment to a buffer with its own independent read cursor.
	if other.readOff > 0 {
		front := other.segs[0]
		trimmed := newOwnedSegment(front.size() - other.readOff)
		copy(trimmed.writableFrom(), front.readable(other.readOff))
		trimmed.grow(front.size() - other.readOff)
		front.release()
		other.segs[0] = trimmed
		other.readOff = 0
	}
	b.segs = append(b.segs, other.segs...)
	other.segs = nil
	other.readOff = 0
}

// AddForeign inserts a foreign, externally owned segment at the current
// write position. Any partially written owned tail segment is left as-is
// (sealed simply by virtue of no longer being the tail); the caller's
// destructor runs exactly once, either when the foreign segment's bytes
// are fully consumed by AdvanceRead, or when the buffer is cleared.
func (b *Buffer) AddForeign(data []byte, release func()) {
	b.segs = append(b.segs, newForeignSegment(data, release))
}

// AdvanceRead moves the read cursor forward by n bytes, recycling owned
// segments and dropping (releasing) foreign segments as they're fully
// consumed.
func (b *Buffer) AdvanceRead(n int) {
	for n > 0 && len(b.segs) > 0 {
		front := b.segs[0]
		avail := front.size() - b.readOff
		if n < avail {
			b.readOff += n
			return
		}
		n -= avail
		b.readOff = 0
		b.segs = b.segs[1:]
		if !front.readonly() {
			// Recycled owned segments go to the tail so later writes
			// can reuse the backing array instead of allocating.
			front.reset()
			b.segs = append(b.segs, front)
		} else {
			front.release()
		}
	}
}

// Read copies up to n bytes of the readable region into dst, advancing the
// read cursor by the number of bytes copied.
func (b *Buffer) Read(dst []byte, n int) int {
	if n > len(dst) {
		n = len(dst)
	}
	total := 0
	off := b.readOff
	for _, s := range b.segs {
		if total >= n {
			break
		}
		total += copy(dst[total:n], s.readable(off))
		off = 0
	}
	b.AdvanceRead(total)
	return total
}

// ReadView returns the readable region as a sequence of contiguous byte
// runs, suitable for a gather write without copying.
func (b *Buffer) ReadView() [][]byte {
	if len(b.segs) == 0 {
		return nil
	}
	views := make([][]byte, 0, len(b.segs))
	views = append(views, b.segs[0].readable(b.readOff))
	for _, s := range b.segs[1:] {
		if s.size() == 0 {
			continue
		}
		views = append(views, s.bytes())
	}
	return views
}

// WriteView returns the writable region (tail segment's unused capacity)
// as a sequence of contiguous byte runs.
func (b *Buffer) WriteView() [][]byte {
	t := b.tail()
	if t == nil || t.readonly() {
		return nil
	}
	room := t.writableFrom()
	if len(room) == 0 {
		return nil
	}
	return [][]byte{room}
}

// Clear drops all foreign segments (running their destructors), resets
// owned segments to full empty capacity, and rewinds both cursors.
func (b *Buffer) Clear() {
	kept := make([]segment, 0, len(b.segs))
	for _, s := range b.segs {
		if s.readonly() {
			s.release()
			continue
		}
		s.reset()
		kept = append(kept, s)
	}
	b.segs = kept
	b.readOff = 0
}

// Close releases every segment's resources. Call once the Buffer itself
// is being discarded, not for request-to-request reuse — use Clear for
// that.
func (b *Buffer) Close() {
	for _, s := range b.segs {
		s.release()
	}
	b.segs = nil
	b.readOff = 0
}
