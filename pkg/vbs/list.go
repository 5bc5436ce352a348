package vbs

import (
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"VbsFS/pkg/mk6"
)

// ChunkInfo describes one chunk of a recording for inspection tools.
type ChunkInfo struct {
	Num    uint32
	Size   int64
	Offset int64
	Path   string `json:",omitempty"`
	Pos    int64  `json:",omitempty"`
}

// RecordingInfo is the chunk map of a recording.
type RecordingInfo struct {
	Name   string
	Size   int64
	Chunks []ChunkInfo
}

// Info scans a recording and returns its chunk map without keeping it open;
// all descriptors opened during the scan are released before returning.
func Info(recname string, mountpoints []string, mk6Layout bool) (*RecordingInfo, error) {
	if recname == "" || len(mountpoints) == 0 {
		return nil, syscall.EINVAL
	}
	fcs := newChunkSet()
	var files []*os.File
	var err error
	if mk6Layout {
		files, err = scanMk6Recording(recname, mountpoints, fcs)
	} else {
		err = scanRecording(recname, mountpoints, fcs)
	}
	if err != nil {
		return nil, err
	}
	if fcs.len() == 0 {
		for _, f := range files {
			_ = f.Close()
		}
		return nil, syscall.ENOENT
	}
	of := newOpenFile(fcs, files)
	defer of.destroy()

	info := &RecordingInfo{Name: recname, Size: of.size}
	for _, c := range fcs.chunks {
		info.Chunks = append(info.Chunks, ChunkInfo{
			Num:    c.num,
			Size:   c.size,
			Offset: c.offset,
			Path:   c.path,
			Pos:    c.pos,
		})
	}
	return info, nil
}

// ListRecordings returns the names of all recordings present on the given
// mountpoints, in either layout: FlexBuff directories holding at least one
// chunk file, and Mark6 scatter-gather files with a valid header.
func ListRecordings(mountpoints []string) []string {
	seen := make(map[string]bool)
	for _, mp := range mountpoints {
		entries, err := os.ReadDir(mp)
		if err != nil {
			logger.Debugf("list %s: %s", mp, err)
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if seen[name] {
				continue
			}
			full := filepath.Join(mp, name)
			if e.IsDir() {
				if dirHasChunks(full, name) {
					seen[name] = true
				}
			} else if e.Type().IsRegular() {
				if isMk6File(full) {
					seen[name] = true
				}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func dirHasChunks(dir, recname string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	rx := chunkPattern(recname)
	for _, e := range entries {
		if rx.MatchString(e.Name()) {
			return true
		}
	}
	return false
}

func isMk6File(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	fh, err := mk6.ReadFileHeader(f)
	return err == nil && fh.Valid()
}
