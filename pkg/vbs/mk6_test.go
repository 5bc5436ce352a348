package vbs

import (
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"VbsFS/pkg/mk6"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wb struct {
	num     int32
	payload string
}

func writeMk6(t *testing.T, mp, rec string, blocks []wb) {
	t.Helper()
	f, err := os.Create(filepath.Join(mp, rec))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, mk6.NewFileHeader(0).WriteTo(f))
	for _, b := range blocks {
		h := &mk6.WBHeader{BlockNum: b.num, WBSize: int32(len(b.payload)) + mk6.WBHeaderSize}
		require.NoError(t, h.WriteTo(f))
		_, err := f.WriteString(b.payload)
		require.NoError(t, err)
	}
}

func TestMk6SingleFile(t *testing.T) {
	mp := newMountpoint(t, "disk0")
	writeMk6(t, mp, "rec_D", []wb{{0, "AAAAAAAA"}, {1, "BBBB"}})

	fd, err := OpenMk6("rec_D", []string{mp})
	require.NoError(t, err)
	defer func() { _ = Close(fd) }()

	size, err := Seek(fd, 0, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(12), size)

	_, err = Seek(fd, 0, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, "AAAAAAAABBBB", string(readAll(t, fd, 12)))
}

func TestMk6TwoMountpoints(t *testing.T) {
	mp1 := newMountpoint(t, "disk0")
	mp2 := newMountpoint(t, "disk1")
	writeMk6(t, mp1, "rec_M", []wb{{0, "1111"}, {2, "3333"}})
	writeMk6(t, mp2, "rec_M", []wb{{1, "2222"}, {3, "4444"}})

	fd, err := OpenMk6("rec_M", []string{mp1, mp2})
	require.NoError(t, err)
	defer func() { _ = Close(fd) }()

	size, err := Seek(fd, 0, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(16), size)

	_, err = Seek(fd, 0, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, "1111222233334444", string(readAll(t, fd, 16)))

	// seek into the middle of the third block
	_, err = Seek(fd, 9, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, "3334444", string(readAll(t, fd, 7)))
}

func TestMk6WrongSyncWordSkipped(t *testing.T) {
	mp := newMountpoint(t, "disk0")
	f, err := os.Create(filepath.Join(mp, "rec_X"))
	require.NoError(t, err)
	h := mk6.NewFileHeader(0)
	h.SyncWord = 0xdeadbeef
	require.NoError(t, h.WriteTo(f))
	require.NoError(t, f.Close())

	_, err = OpenMk6("rec_X", []string{mp})
	assert.Equal(t, syscall.ENOENT, err)
}

func TestMk6WrongVersionSkipped(t *testing.T) {
	mp := newMountpoint(t, "disk0")
	f, err := os.Create(filepath.Join(mp, "rec_V"))
	require.NoError(t, err)
	h := mk6.NewFileHeader(0)
	h.Version = 1
	require.NoError(t, h.WriteTo(f))
	require.NoError(t, f.Close())

	_, err = OpenMk6("rec_V", []string{mp})
	assert.Equal(t, syscall.ENOENT, err)
}

func TestMk6CorruptBlockHeader(t *testing.T) {
	for _, bad := range []mk6.WBHeader{
		{BlockNum: -1, WBSize: 12},
		{BlockNum: 0, WBSize: 0},
		{BlockNum: 0, WBSize: -3},
	} {
		mp := newMountpoint(t, "disk0")
		f, err := os.Create(filepath.Join(mp, "rec_Y"))
		require.NoError(t, err)
		require.NoError(t, mk6.NewFileHeader(0).WriteTo(f))
		require.NoError(t, bad.WriteTo(f))
		require.NoError(t, f.Close())

		_, err = OpenMk6("rec_Y", []string{mp})
		require.Error(t, err)
		assert.Equal(t, ErrCorruptBlockHeader, errors.Cause(err))
	}
}

func TestMk6DuplicateWithinFile(t *testing.T) {
	mp := newMountpoint(t, "disk0")
	writeMk6(t, mp, "rec_Z", []wb{{3, "aaaa"}, {3, "bbbb"}})

	_, err := OpenMk6("rec_Z", []string{mp})
	require.Error(t, err)
	assert.Equal(t, ErrDuplicateChunk, errors.Cause(err))
}

func TestMk6DuplicateAcrossMountpoints(t *testing.T) {
	// the same block written to two disks is logged and one copy serves
	mp1 := newMountpoint(t, "disk0")
	mp2 := newMountpoint(t, "disk1")
	writeMk6(t, mp1, "rec_W", []wb{{0, "samesame"}})
	writeMk6(t, mp2, "rec_W", []wb{{0, "samesame"}, {1, "more"}})

	fd, err := OpenMk6("rec_W", []string{mp1, mp2})
	require.NoError(t, err)
	defer func() { _ = Close(fd) }()

	size, err := Seek(fd, 0, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(12), size)

	_, err = Seek(fd, 0, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, "samesamemore", string(readAll(t, fd, 12)))
}

func TestMk6ArgumentErrors(t *testing.T) {
	mp := newMountpoint(t, "disk0")

	_, err := OpenMk6("", []string{mp})
	assert.Equal(t, syscall.EINVAL, err)

	_, err = OpenMk6("rec", nil)
	assert.Equal(t, syscall.EINVAL, err)

	_, err = OpenMk6("missing", []string{mp})
	assert.Equal(t, syscall.ENOENT, err)
}

func TestMk6NoFdLeak(t *testing.T) {
	mp1 := newMountpoint(t, "disk0")
	mp2 := newMountpoint(t, "disk1")
	writeMk6(t, mp1, "rec_L", []wb{{0, "xxxx"}})
	writeMk6(t, mp2, "rec_L", []wb{{1, "yyyy"}})

	before := countFds(t)
	fd, err := OpenMk6("rec_L", []string{mp1, mp2})
	require.NoError(t, err)
	_, err = Read(fd, make([]byte, 8))
	require.NoError(t, err)
	require.NoError(t, Close(fd))
	assert.Equal(t, before, countFds(t))
}
