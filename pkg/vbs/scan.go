package vbs

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ErrDuplicateChunk is returned from Open when two FlexBuff chunk files on
// any of the mountpoints share a sequence number, and from OpenMk6 when one
// scatter-gather file holds two blocks with the same block number.
var ErrDuplicateChunk = errors.New("duplicate chunk")

// ErrCorruptBlockHeader is returned from OpenMk6 when a write block header
// carries a negative block number or a non-positive block size.
var ErrCorruptBlockHeader = errors.New("corrupt block header")

// escape prefixes every character outside [A-Za-z0-9_] with a backslash so
// that recording names containing regex metacharacters match literally.
// Users do record under names like "ec071a_ef.x+y" and expect the software
// to cope.
func escape(s string) string {
	var rv []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			rv = append(rv, '\\')
		}
		rv = append(rv, c)
	}
	return string(rv)
}

// chunkPattern matches the file names of a recording's FlexBuff chunks:
// the recording name followed by a dot and exactly 8 decimal digits.
func chunkPattern(recname string) *regexp.Regexp {
	return regexp.MustCompile("^" + escape(recname) + "\\.[0-9]{8}$")
}

var rxMountpoint = regexp.MustCompile(`^disk[0-9]+$`)

// isMountpoint reports whether the entry is named disk<N> and is a
// directory we can descend into. Symlinks are not followed.
func isMountpoint(path string) bool {
	if !rxMountpoint.MatchString(filepath.Base(path)) {
		return false
	}
	st, err := os.Lstat(path)
	if err != nil {
		logger.Debugf("isMountpoint: lstat %s: %s", path, err)
		return false
	}
	if !st.IsDir() {
		return false
	}
	return unix.Access(path, unix.R_OK|unix.X_OK) == nil
}

// FindMountpoints returns the disk<N> mountpoint directories under root.
func FindMountpoints(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var mps []string
	for _, e := range entries {
		p := filepath.Join(root, e.Name())
		if isMountpoint(p) {
			mps = append(mps, p)
		}
	}
	if len(mps) == 0 {
		return nil, errors.Wrapf(os.ErrNotExist, "no mountpoints under %s", root)
	}
	sort.Strings(mps)
	return mps, nil
}

// scanRecording looks on all mountpoints for FlexBuff chunks of the named
// recording. Mountpoints are independent subdirectories so they are walked
// sequentially.
func scanRecording(recname string, mountpoints []string, fcs *chunkSet) error {
	rx := chunkPattern(recname)
	for _, mp := range mountpoints {
		if err := scanRecordingMountpoint(recname, mp, rx, fcs); err != nil {
			return err
		}
	}
	return nil
}

func scanRecordingMountpoint(recname, mp string, rx *regexp.Regexp, fcs *chunkSet) error {
	dir := filepath.Join(mp, recname)
	st, err := os.Lstat(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnf("scan %s on %s: %s", recname, mp, err)
		}
		return nil
	}
	if !st.IsDir() {
		return nil
	}
	return scanRecordingDirectory(dir, rx, fcs)
}

func scanRecordingDirectory(dir string, rx *regexp.Regexp, fcs *chunkSet) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warnf("scan %s: %s", dir, err)
		return nil
	}
	for _, e := range entries {
		if !rx.MatchString(e.Name()) {
			continue
		}
		c, err := newFlexBuffChunk(filepath.Join(dir, e.Name()))
		if err != nil {
			logger.Warnf("chunk %s: %s", e.Name(), err)
			continue
		}
		// two files claiming the same slot of the stream, now *that* is
		// a reason to give up
		if !fcs.insert(c) {
			return errors.Wrapf(ErrDuplicateChunk, "chunk %s", e.Name())
		}
	}
	return nil
}
