package historical

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"unsafe"

	"golang.org/x/exp/mmap"
)

var (
	ErrEof           = errors.New("EOF")
	ErrNotOpen       = errors.New("data source is not open")
	ErrCorruptSource = errors.New("data source size is not a multiple of the record size")
)

// Source reads fixed size records of T from a memory mapped file.
// T must be a padding free struct of fixed size fields written in native byte order.
type Source[T any] struct {
	dataSourceName string
	recordSize     int64

	reader     *mmap.ReaderAt
	count      int64
	bufferPool *sync.Pool
}

func NewSource[T any](dataSourceName string) *Source[T] {
	recordSize := int64(unsafe.Sizeof(*new(T)))
	return &Source[T]{
		dataSourceName: dataSourceName,
		recordSize:     recordSize,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buffer := make([]byte, recordSize)
				return &buffer
			},
		},
	}
}

// Open maps the file and validates that it holds whole records.
func (s *Source[T]) Open() error {
	if s.recordSize == 0 {
		return fmt.Errorf("unable to open data source %q: record size is zero", s.dataSourceName)
	}

	reader, err := mmap.Open(s.dataSourceName)
	if err != nil {
		return fmt.Errorf("unable to open data source %q: %w", s.dataSourceName, err)
	}

	size := int64(reader.Len())
	if size%s.recordSize != 0 {
		_ = reader.Close()
		return fmt.Errorf("%w: %q has %d bytes, record is %d", ErrCorruptSource, s.dataSourceName, size, s.recordSize)
	}

	s.reader = reader
	s.count = size / s.recordSize
	return nil
}

func (s *Source[T]) Close() {
	if s.reader != nil {
		_ = s.reader.Close()
		s.reader = nil
		s.count = 0
	}
}

func (s *Source[T]) EntryCount() (int64, error) {
	if s.reader == nil {
		return 0, ErrNotOpen
	}
	return s.count, nil
}

// Read decodes the record at index. Indexes outside the file return ErrEof.
func (s *Source[T]) Read(index int64, data *T) error {
	if s.reader == nil {
		return ErrNotOpen
	}
	if index < 0 || index >= s.count {
		return ErrEof
	}

	buffer := s.bufferPool.Get().(*[]byte)
	defer s.bufferPool.Put(buffer)

	n, err := s.reader.ReadAt(*buffer, index*s.recordSize)
	if err != nil && err != io.EOF {
		return fmt.Errorf("unable to read record %d: %w", index, err)
	}
	if n < len(*buffer) {
		return ErrEof
	}

	*data = *(*T)(unsafe.Pointer(&(*buffer)[0])) // #nosec G103
	return nil
}

// Search returns the first index whose record does not satisfy before, or
// EntryCount when every record does. Records must be ordered so that before
// holds for a prefix of the file.
func (s *Source[T]) Search(before func(*T) bool) (int64, error) {
	if s.reader == nil {
		return 0, ErrNotOpen
	}

	var record T
	low, high := int64(0), s.count
	for low < high {
		mid := low + (high-low)/2
		if err := s.Read(mid, &record); err != nil {
			return 0, err
		}
		if before(&record) {
			low = mid + 1
		} else {
			high = mid
		}
	}
	return low, nil
}

// Cursor walks records forward from a start index until the file ends or
// past reports a record beyond the wanted range.
type Cursor[T any] struct {
	source *Source[T]
	index  int64
	past   func(*T) bool
	done   bool
}

// Scan starts a cursor at index. A nil past scans to the end of the file.
func (s *Source[T]) Scan(index int64, past func(*T) bool) *Cursor[T] {
	return &Cursor[T]{source: s, index: index, past: past}
}

func (c *Cursor[T]) Index() int64 { return c.index }

// Next decodes the next record in range or returns ErrEof. Once exhausted
// the cursor stays exhausted.
func (c *Cursor[T]) Next(data *T) error {
	if c.done {
		return ErrEof
	}
	if err := c.source.Read(c.index, data); err != nil {
		if errors.Is(err, ErrEof) {
			c.done = true
		}
		return err
	}
	if c.past != nil && c.past(data) {
		c.done = true
		return ErrEof
	}
	c.index++
	return nil
}
