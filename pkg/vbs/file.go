package vbs

import "os"

// openFile is one opened recording: the ordered chunk set with logical
// offsets assigned, the current file pointer and the chunk containing it.
type openFile struct {
	fp     int64
	size   int64
	chunks *chunkSet
	ptr    int // index of the current chunk, chunks.len() is the end sentinel

	// descriptors of the scatter-gather files all Mark6 chunks borrow
	// from; owned here and closed exactly once when the recording is
	// closed
	mk6Files []*os.File
}

func newOpenFile(fcs *chunkSet, mk6Files []*os.File) *openFile {
	of := &openFile{chunks: fcs, mk6Files: mk6Files}
	for _, c := range fcs.chunks {
		// offset is the recording size counted so far
		c.offset = of.size
		of.size += c.size
	}
	if fcs.len() > 0 {
		last := fcs.chunks[fcs.len()-1]
		logger.Debugf("openFile: found %d bytes in %d chunks, %.1f%%",
			of.size, fcs.len(), float64(fcs.len())/float64(last.num+1)*100)
	}
	return of
}

// destroy releases every descriptor opened during the recording's lifetime:
// lingering lazy FlexBuff descriptors first, then the shared Mark6 ones.
func (of *openFile) destroy() {
	for _, c := range of.chunks.chunks {
		c.close()
	}
	for _, f := range of.mk6Files {
		_ = f.Close()
	}
	of.ptr = of.chunks.len()
}
