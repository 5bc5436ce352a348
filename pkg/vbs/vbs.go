package vbs

import (
	"io"
	"math"
	"os"
	"sync"
	"syscall"

	"VbsFS/pkg/utils"
)

var logger = utils.GetLogger("vbsfs")

// The handle space starts at the largest int32 and counts down, so handles
// never collide with native descriptors handed out by the OS and no two live
// handles coincide. A new handle is the smallest live handle minus one, so a
// closed handle directly below the smallest live one is handed out again.
const maxHandle = math.MaxInt32

var (
	openedFilesLock sync.RWMutex
	openedFiles     = make(map[int]*openFile)
)

// caller must hold the write lock
func newHandle() int {
	if len(openedFiles) == 0 {
		return maxHandle
	}
	min := maxHandle + 1
	for fd := range openedFiles {
		if fd < min {
			min = fd
		}
	}
	return min - 1
}

func install(fcs *chunkSet, mk6Files []*os.File) (int, error) {
	if fcs.len() == 0 {
		for _, f := range mk6Files {
			_ = f.Close()
		}
		return -1, syscall.ENOENT
	}
	openedFilesLock.Lock()
	defer openedFilesLock.Unlock()
	fd := newHandle()
	openedFiles[fd] = newOpenFile(fcs, mk6Files)
	return fd, nil
}

// Open assembles the FlexBuff recording `recname` scattered over the given
// mountpoints into a single logical byte stream and returns a handle for
// it. It fails with syscall.ENOENT when no chunks are found anywhere, and
// with ErrDuplicateChunk when two files claim the same sequence number.
func Open(recname string, mountpoints []string) (int, error) {
	if recname == "" || len(mountpoints) == 0 {
		return -1, syscall.EINVAL
	}
	fcs := newChunkSet()
	if err := scanRecording(recname, mountpoints, fcs); err != nil {
		return -1, err
	}
	return install(fcs, nil)
}

// OpenMk6 is Open for recordings in the Mark6 scatter-gather layout: one
// block-header file per mountpoint, named exactly after the recording.
func OpenMk6(recname string, mountpoints []string) (int, error) {
	if recname == "" || len(mountpoints) == 0 {
		return -1, syscall.EINVAL
	}
	fcs := newChunkSet()
	files, err := scanMk6Recording(recname, mountpoints, fcs)
	if err != nil {
		return -1, err
	}
	return install(fcs, files)
}

// Read copies up to len(buf) bytes from the recording into buf, advancing
// the file pointer, and returns the number of bytes read. A short count
// signals end of file or a chunk that could not be served; per-chunk I/O
// errors never discard bytes already copied.
//
// Reads on distinct handles proceed in parallel; concurrent calls on the
// same handle must be serialized by the caller.
func Read(fd int, buf []byte) (int, error) {
	openedFilesLock.RLock()
	defer openedFilesLock.RUnlock()

	of, ok := openedFiles[fd]
	if !ok {
		return -1, syscall.EBADF
	}
	if buf == nil {
		return -1, syscall.EFAULT
	}
	// reading zero bytes is done already, POSIX says that's fine
	if len(buf) == 0 {
		return 0, nil
	}

	nr := len(buf)
	for nr > 0 {
		// hitting eof while reading is not an error but we'd better stop
		if of.ptr >= of.chunks.len() {
			break
		}
		c := of.chunks.chunks[of.ptr]

		n2r := c.offset + c.size - of.fp
		if n2r <= 0 {
			// nothing left in this chunk, move to the next
			c.close()
			of.ptr++
			continue
		}
		if int64(nr) < n2r {
			n2r = int64(nr)
		}

		f, err := c.open()
		if err != nil {
			break
		}
		if _, err = f.Seek(of.fp-c.offset+c.pos, io.SeekStart); err != nil {
			logger.Warnf("seek chunk %d of fd#%d: %s", c.num, fd, err)
			break
		}
		off := len(buf) - nr
		n, err := f.Read(buf[off : off+int(n2r)])
		if n > 0 {
			nr -= n
			of.fp += int64(n)
		}
		if err != nil {
			if err != io.EOF {
				logger.Warnf("read chunk %d of fd#%d: %s", c.num, fd, err)
			}
			break
		}
	}
	return len(buf) - nr, nil
}

// Seek repositions the file pointer like lseek(2). Seeking past the end is
// allowed, subsequent reads return 0. When the new position falls into a
// different chunk the old chunk's lazy descriptor is released.
func Seek(fd int, offset int64, whence int) (int64, error) {
	openedFilesLock.RLock()
	defer openedFilesLock.RUnlock()

	of, ok := openedFiles[fd]
	if !ok {
		return -1, syscall.EBADF
	}

	var newfp int64
	switch whence {
	case io.SeekStart:
		newfp = offset
	case io.SeekCurrent:
		newfp = of.fp + offset
	case io.SeekEnd:
		newfp = of.size + offset
	default:
		return -1, syscall.EINVAL
	}
	if newfp < 0 {
		return -1, syscall.EINVAL
	}
	if newfp == of.fp {
		return of.fp, nil
	}

	// skip to the chunk that contains the new pointer
	n := 0
	for n < of.chunks.len() && newfp > of.chunks.chunks[n].offset+of.chunks.chunks[n].size {
		n++
	}
	if n != of.ptr && of.ptr < of.chunks.len() {
		of.chunks.chunks[of.ptr].close()
	}
	of.fp = newfp
	of.ptr = n
	return of.fp, nil
}

// Close releases the handle and every descriptor opened on its behalf.
func Close(fd int) error {
	openedFilesLock.Lock()
	defer openedFilesLock.Unlock()

	of, ok := openedFiles[fd]
	if !ok {
		return syscall.EBADF
	}
	delete(openedFiles, fd)
	of.destroy()
	return nil
}
