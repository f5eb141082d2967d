package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Image layout constants. All multi-byte fields are little-endian.
const (
	Magic0          = 'M'
	Magic1          = 'B'
	FormatVersion   = 0
	HeaderSize      = 7
	ThreadEntrySize = 4
	// NoThread marks an event socket without a handler thread.
	NoThread = 0xffff
)

// ErrInvalidImage is returned by ParseImage for malformed input.
var ErrInvalidImage = errors.New("invalid image")

// Header is the fixed-size start of an image.
type Header struct {
	Version     uint8
	ThreadCount uint16
	// MemorySize is the size of the variable region plus every thread's
	// stack region. The device allocates this much memory before starting.
	MemorySize uint16
}

// ThreadEntry is one row of the thread table.
type ThreadEntry struct {
	// CodeOffset is the offset of the thread's first instruction from the
	// start of the image.
	CodeOffset uint16
	// StackOffset is the offset of the thread's stack region in device memory.
	StackOffset uint16
}

// PoolOffset returns the image offset at which the constant pool begins.
func PoolOffset(threadCount int) int {
	return HeaderSize + ThreadEntrySize*threadCount
}

// WriteHeader appends the header and thread table to b.
func WriteHeader(b *Builder, h Header, threads []ThreadEntry) {
	b.Uint8(Magic0)
	b.Uint8(Magic1)
	b.Uint8(h.Version)
	b.Uint16(h.ThreadCount)
	b.Uint16(h.MemorySize)
	for _, t := range threads {
		b.Uint16(t.CodeOffset)
		b.Uint16(t.StackOffset)
	}
}

// Image is a parsed binary image.
type Image struct {
	Header
	Threads []ThreadEntry
	// Pool holds the constant pool bytes.
	Pool []byte
	raw  []byte
}

// Raw returns the complete image bytes.
func (img *Image) Raw() []byte {
	return img.raw
}

// PoolOffset returns the image offset of the constant pool.
func (img *Image) PoolOffset() int {
	return PoolOffset(len(img.Threads))
}

// ThreadCode returns the code of thread i. A thread's code runs up to the
// start of the next thread, or to the end of the image for the last one.
func (img *Image) ThreadCode(i int) []byte {
	start := int(img.Threads[i].CodeOffset)
	end := len(img.raw)
	if i+1 < len(img.Threads) {
		end = int(img.Threads[i+1].CodeOffset)
	}
	return img.raw[start:end]
}

// StackSize returns the size of thread i's stack region.
func (img *Image) StackSize(i int) int {
	end := int(img.MemorySize)
	if i+1 < len(img.Threads) {
		end = int(img.Threads[i+1].StackOffset)
	}
	return end - int(img.Threads[i].StackOffset)
}

// ParseImage validates and parses a binary image.
func ParseImage(data []byte) (*Image, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidImage, len(data))
	}
	if data[0] != Magic0 || data[1] != Magic1 {
		return nil, fmt.Errorf("%w: bad magic %q", ErrInvalidImage, data[:2])
	}
	img := &Image{
		Header: Header{
			Version:     data[2],
			ThreadCount: binary.LittleEndian.Uint16(data[3:]),
			MemorySize:  binary.LittleEndian.Uint16(data[5:]),
		},
		raw: data,
	}
	if img.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidImage, img.Version)
	}
	poolStart := PoolOffset(int(img.ThreadCount))
	if len(data) < poolStart {
		return nil, fmt.Errorf("%w: thread table truncated", ErrInvalidImage)
	}
	codeStart := len(data)
	for i := 0; i < int(img.ThreadCount); i++ {
		pos := HeaderSize + i*ThreadEntrySize
		entry := ThreadEntry{
			CodeOffset:  binary.LittleEndian.Uint16(data[pos:]),
			StackOffset: binary.LittleEndian.Uint16(data[pos+2:]),
		}
		if int(entry.CodeOffset) < poolStart || int(entry.CodeOffset) > len(data) {
			return nil, fmt.Errorf("%w: thread %d code offset %d out of bounds", ErrInvalidImage, i, entry.CodeOffset)
		}
		if i > 0 {
			prev := img.Threads[i-1]
			if entry.CodeOffset < prev.CodeOffset || entry.StackOffset < prev.StackOffset {
				return nil, fmt.Errorf("%w: thread %d offsets are not increasing", ErrInvalidImage, i)
			}
		} else {
			codeStart = int(entry.CodeOffset)
		}
		if entry.StackOffset > img.MemorySize {
			return nil, fmt.Errorf("%w: thread %d stack offset %d beyond memory size %d",
				ErrInvalidImage, i, entry.StackOffset, img.MemorySize)
		}
		img.Threads = append(img.Threads, entry)
	}
	img.Pool = data[poolStart:codeStart]
	return img, nil
}
