package vbs

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// A fileChunk is one piece of a recording. FlexBuff chunks are whole files
// and open their descriptor lazily; Mark6 chunks borrow the descriptor of
// the scatter-gather file they were found in, at a fixed position.
type fileChunk struct {
	num    uint32 // position in the logical stream
	size   int64  // payload bytes contributed to the stream
	pos    int64  // payload offset within the backing file
	offset int64  // logical offset, assigned when the recording is opened

	path   string   // chunk file (FlexBuff) or scatter-gather file (Mark6)
	file   *os.File // lazily opened, or the shared Mark6 descriptor
	shared bool     // descriptor owned by the open recording, not this chunk
}

// newFlexBuffChunk builds a chunk from a full path name like
// "/path/to/rec/rec.00012345". The chunk size is determined by opening the
// file and seeking to its end.
func newFlexBuffChunk(path string) (*fileChunk, error) {
	name := filepath.Base(path)
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		return nil, errors.Errorf("no sequence number in chunk name %s", name)
	}
	// base 10 is mandatory: the suffix starts with a lot of zeroes and
	// automatic base detection would decode it as octal
	num, err := strconv.ParseUint(name[dot+1:], 10, 32)
	if err != nil {
		return nil, errors.Wrapf(err, "parse sequence number of %s", name)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	size, err := f.Seek(0, io.SeekEnd)
	_ = f.Close()
	if err != nil {
		return nil, err
	}
	return &fileChunk{num: uint32(num), size: size, path: path}, nil
}

// open returns the descriptor serving this chunk, opening it if needed.
func (c *fileChunk) open() (*os.File, error) {
	if c.file == nil {
		f, err := os.Open(c.path)
		if err != nil {
			logger.Debugf("open chunk %s: %s", c.path, err)
			return nil, err
		}
		logger.Debugf("open chunk %s: fd#%d", c.path, f.Fd())
		c.file = f
	}
	return c.file, nil
}

// close releases a lazily opened descriptor. Shared Mark6 descriptors are
// left alone, they belong to the open recording.
func (c *fileChunk) close() {
	if !c.shared && c.file != nil {
		logger.Debugf("close chunk %s: fd#%d", c.path, c.file.Fd())
		_ = c.file.Close()
		c.file = nil
	}
}

// chunkSet keeps chunks strictly ordered by sequence number. Sequence
// numbers are unique within a set; insert reports whether the chunk was
// actually added.
type chunkSet struct {
	chunks []*fileChunk
}

func newChunkSet() *chunkSet {
	return &chunkSet{}
}

func (s *chunkSet) insert(c *fileChunk) bool {
	i := sort.Search(len(s.chunks), func(i int) bool { return s.chunks[i].num >= c.num })
	if i < len(s.chunks) && s.chunks[i].num == c.num {
		return false
	}
	s.chunks = append(s.chunks, nil)
	copy(s.chunks[i+1:], s.chunks[i:])
	s.chunks[i] = c
	return true
}

func (s *chunkSet) len() int {
	return len(s.chunks)
}
