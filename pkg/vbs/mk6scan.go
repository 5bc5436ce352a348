package vbs

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"VbsFS/pkg/mk6"

	"github.com/pkg/errors"
)

// scanMk6Recording looks on all mountpoints for a scatter-gather file named
// after the recording, one scan goroutine per mountpoint. Every worker
// parses into a private chunk set and merges it into fcs under the mutex,
// so duplicate detection across mountpoints stays deterministic. Returned
// descriptors stay open for the lifetime of the recording; the caller owns
// them. All workers are joined before this returns.
func scanMk6Recording(recname string, mountpoints []string, fcs *chunkSet) ([]*os.File, error) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		files    []*os.File
		firstErr error
	)
	for _, mp := range mountpoints {
		wg.Add(1)
		go func(mp string) {
			defer wg.Done()
			lcl, f, err := scanMk6Mountpoint(recname, mp)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			if f == nil {
				return
			}
			files = append(files, f)
			for _, c := range lcl.chunks {
				// the same block recorded on two disks is suspicious but
				// not fatal, one copy serves
				if !fcs.insert(c) {
					logger.Warnf("duplicate chunk %d found in %s", c.num, f.Name())
				}
			}
		}(mp)
	}
	wg.Wait()
	if firstErr != nil {
		for _, f := range files {
			_ = f.Close()
		}
		return nil, firstErr
	}
	return files, nil
}

// scanMk6Mountpoint parses the scatter-gather file on one mountpoint.
// A missing file or a file in another format is not an error, the
// mountpoint simply contributes nothing.
func scanMk6Mountpoint(recname, mp string) (*chunkSet, *os.File, error) {
	file := filepath.Join(mp, recname)
	st, err := os.Lstat(file)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnf("scan %s on %s: %s", recname, mp, err)
		}
		return nil, nil, nil
	}
	if !st.Mode().IsRegular() {
		return nil, nil, nil
	}

	f, err := os.Open(file)
	if err != nil {
		logger.Warnf("open %s: %s", file, err)
		return nil, nil, nil
	}

	fh, err := mk6.ReadFileHeader(f)
	if err != nil {
		logger.Debugf("scan %s: read file header: %s", file, err)
		_ = f.Close()
		return nil, nil, nil
	}
	if !fh.Valid() {
		logger.Debugf("scan %s: no sync word or unsupported version %d", file, fh.Version)
		_ = f.Close()
		return nil, nil, nil
	}

	lcl := newChunkSet()
	pos := int64(mk6.FileHeaderSize)
	for {
		wb, err := mk6.ReadWBHeader(f)
		if err != nil {
			// a short read is the regular end of the file
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				logger.Debugf("scan %s: read block header @%d: %s", file, pos, err)
			}
			break
		}
		// block sizes in the file include the write block header itself
		if wb.BlockNum < 0 || wb.WBSize <= 0 {
			_ = f.Close()
			return nil, nil, errors.Wrapf(ErrCorruptBlockHeader,
				"block header @%d in %s: block# %d, sz=%d", pos, file, wb.BlockNum, wb.WBSize)
		}
		pos += mk6.WBHeaderSize
		c := &fileChunk{
			num:    uint32(wb.BlockNum),
			size:   int64(wb.WBSize) - mk6.WBHeaderSize,
			pos:    pos,
			path:   file,
			file:   f,
			shared: true,
		}
		if !lcl.insert(c) {
			_ = f.Close()
			return nil, nil, errors.Wrapf(ErrDuplicateChunk, "chunk %d in %s", wb.BlockNum, file)
		}
		pos += c.size
		if _, err := f.Seek(pos, io.SeekStart); err != nil {
			logger.Debugf("scan %s: seek to next block @%d: %s", file, pos, err)
			break
		}
	}
	return lcl, f, nil
}
