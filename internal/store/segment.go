package store

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// defaultSegmentSize bounds each individual mmap region when openMapped is
// given no positive segment size. Large store files are
// mapped as several segments rather than one giant mapping, mirroring the
// teacher's bounded-size segment files (segmentmanager/disk.go) adapted
// here to address-space chunks of an otherwise contiguous file instead of
// separate files on disk.
const defaultSegmentSize = 1 << 30 // 1 GiB

// mappedFile holds the open file descriptor and its segment mappings for
// the lifetime of a Reader.
type mappedFile struct {
	f        *os.File
	size     int64
	segSize  int64
	segments [][]byte
}

func openMapped(path string, segSize int64) (*mappedFile, error) {
	if segSize <= 0 {
		segSize = defaultSegmentSize
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("store: opening store file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := info.Size()

	mf := &mappedFile{f: f, size: size, segSize: segSize}
	if size == 0 {
		return mf, nil
	}

	for off := int64(0); off < size; off += segSize {
		length := segSize
		if off+length > size {
			length = size - off
		}
		data, err := unix.Mmap(int(f.Fd()), off, int(length), unix.PROT_READ, unix.MAP_SHARED)
		if err != nil {
			mf.close()
			return nil, fmt.Errorf("%w: mmap at offset %d: %v", ErrCorruption, off, err)
		}
		mf.segments = append(mf.segments, data)
	}
	return mf, nil
}

func (mf *mappedFile) close() error {
	var firstErr error
	for _, seg := range mf.segments {
		if err := unix.Munmap(seg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	mf.segments = nil
	if err := mf.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// slice returns the length bytes starting at absolute file offset off. A
// read that does not cross a segment boundary returns a direct view into
// the mapping (no copy); one that does is stitched into a fresh buffer,
// which is the only case where a read against a segmented mapping
// allocates.
func (mf *mappedFile) slice(off, length int64) ([]byte, error) {
	if off < 0 || length < 0 || off+length > mf.size {
		return nil, fmt.Errorf("%w: read [%d,%d) exceeds file size %d", ErrCorruption, off, off+length, mf.size)
	}
	if length == 0 {
		return nil, nil
	}

	segIdx := off / mf.segSize
	segOff := off % mf.segSize

	if int(segIdx) >= len(mf.segments) {
		return nil, fmt.Errorf("%w: offset %d beyond mapped segments", ErrCorruption, off)
	}
	seg := mf.segments[segIdx]

	if segOff+length <= int64(len(seg)) {
		return seg[segOff : segOff+length], nil
	}

	// Crosses a segment boundary: stitch into a scratch buffer.
	out := make([]byte, length)
	remaining := length
	written := int64(0)
	curSeg := segIdx
	curOff := segOff
	for remaining > 0 {
		if int(curSeg) >= len(mf.segments) {
			return nil, fmt.Errorf("%w: read past mapped segments stitching offset %d", ErrCorruption, off)
		}
		seg := mf.segments[curSeg]
		avail := int64(len(seg)) - curOff
		n := remaining
		if n > avail {
			n = avail
		}
		copy(out[written:written+n], seg[curOff:curOff+n])
		written += n
		remaining -= n
		curSeg++
		curOff = 0
	}
	return out, nil
}

// byteAt returns the single byte at absolute offset off.
func (mf *mappedFile) byteAt(off int64) (byte, error) {
	b, err := mf.slice(off, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}
