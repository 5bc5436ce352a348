package vbs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscape(t *testing.T) {
	// strings of [A-Za-z0-9_] pass through untouched
	for _, s := range []string{"", "abc", "ABC_123", "ec071a_ef"} {
		assert.Equal(t, s, escape(s))
	}
	assert.Equal(t, `foo\.bar\+baz`, escape("foo.bar+baz"))
	assert.Equal(t, `a\*b\?c\[d\]`, escape("a*b?c[d]"))
	assert.Equal(t, `\\`, escape(`\`))
}

func TestChunkPattern(t *testing.T) {
	rx := chunkPattern("foo.bar+baz")
	assert.True(t, rx.MatchString("foo.bar+baz.00000000"))
	assert.True(t, rx.MatchString("foo.bar+baz.00012345"))
	assert.False(t, rx.MatchString("fooXbarYbazX00000000"))
	assert.False(t, rx.MatchString("foo.bar+baz.0000000"))   // 7 digits
	assert.False(t, rx.MatchString("foo.bar+baz.000000000")) // 9 digits
	assert.False(t, rx.MatchString("foo.bar+baz.0000000a"))
	assert.False(t, rx.MatchString("xfoo.bar+baz.00000000"))

	// leading zeroes decode as base 10, not octal
	c, err := newFlexBuffChunkForTest(t, "rec.00000010")
	require.NoError(t, err)
	assert.Equal(t, uint32(10), c.num)
}

func newFlexBuffChunkForTest(t *testing.T, name string) (*fileChunk, error) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	return newFlexBuffChunk(path)
}

func TestChunkSetOrdering(t *testing.T) {
	s := newChunkSet()
	for _, num := range []uint32{5, 1, 9, 3, 7} {
		assert.True(t, s.insert(&fileChunk{num: num, size: 1}))
	}
	assert.False(t, s.insert(&fileChunk{num: 3, size: 1}))
	require.Equal(t, 5, s.len())

	var prev uint32
	for i, c := range s.chunks {
		if i > 0 {
			assert.Greater(t, c.num, prev)
		}
		prev = c.num
	}
}

func TestIsMountpoint(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "disk0"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "disk12"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "data"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "diskette"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "disk1"), []byte("not a dir"), 0644))

	assert.True(t, isMountpoint(filepath.Join(root, "disk0")))
	assert.True(t, isMountpoint(filepath.Join(root, "disk12")))
	assert.False(t, isMountpoint(filepath.Join(root, "data")))
	assert.False(t, isMountpoint(filepath.Join(root, "diskette")))
	assert.False(t, isMountpoint(filepath.Join(root, "disk1")))
	assert.False(t, isMountpoint(filepath.Join(root, "disk99")))
}

func TestFindMountpoints(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "disk1"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "disk0"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "lost+found"), 0755))

	mps, err := FindMountpoints(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "disk0"),
		filepath.Join(root, "disk1"),
	}, mps)

	_, err = FindMountpoints(t.TempDir())
	assert.Error(t, err)
}

func TestListRecordings(t *testing.T) {
	mp1 := newMountpoint(t, "disk0")
	mp2 := newMountpoint(t, "disk1")
	writeChunk(t, mp1, "rec_one", 0, "data")
	writeChunk(t, mp2, "rec_one", 1, "data")
	writeChunk(t, mp2, "rec_two", 0, "data")
	writeMk6(t, mp1, "rec_six", []wb{{0, "data"}})
	// an empty directory is not a recording
	require.NoError(t, os.Mkdir(filepath.Join(mp1, "empty"), 0755))
	// nor is a random file
	require.NoError(t, os.WriteFile(filepath.Join(mp2, "stray"), []byte("zz"), 0644))

	assert.Equal(t, []string{"rec_one", "rec_six", "rec_two"}, ListRecordings([]string{mp1, mp2}))
}
