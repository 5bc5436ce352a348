package fuse

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"syscall"
	"time"

	"VbsFS/pkg/utils"
	"VbsFS/pkg/vbs"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

var logger = utils.GetLogger("vbsfs")

// Config describes one mount: where the recordings live and how they are
// laid out on disk.
type Config struct {
	Mountpoints []string // disk<N> directories holding the recordings
	Mk6         bool     // recordings are Mark6 scatter-gather files
	Mountpoint  string   // where the filesystem is mounted
}

// root presents every recording found on the mountpoints as a read-only
// regular file in a single flat directory.
type root struct {
	fs.Inode
	conf *Config
}

var _ = (fs.NodeReaddirer)((*root)(nil))
var _ = (fs.NodeLookuper)((*root)(nil))
var _ = (fs.NodeGetattrer)((*root)(nil))

func (r *root) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFDIR | 0555
	return 0
}

func (r *root) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	names := vbs.ListRecordings(r.conf.Mountpoints)
	entries := make([]fuse.DirEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, fuse.DirEntry{Name: name, Mode: fuse.S_IFREG})
	}
	return fs.NewListDirStream(entries), 0
}

func (r *root) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	info, err := vbs.Info(name, r.conf.Mountpoints, r.conf.Mk6)
	if err != nil {
		return nil, toErrno(err)
	}
	node := &recording{name: name, size: info.Size, conf: r.conf}
	fillAttr(&out.Attr, info.Size)
	return r.NewInode(ctx, node, fs.StableAttr{Mode: fuse.S_IFREG}), 0
}

// recording is one assembled recording, served through the handle API.
type recording struct {
	fs.Inode
	name string
	size int64
	conf *Config
}

var _ = (fs.NodeGetattrer)((*recording)(nil))
var _ = (fs.NodeOpener)((*recording)(nil))

func (n *recording) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	fillAttr(&out.Attr, n.size)
	return 0
}

func (n *recording) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}
	var fd int
	var err error
	if n.conf.Mk6 {
		fd, err = vbs.OpenMk6(n.name, n.conf.Mountpoints)
	} else {
		fd, err = vbs.Open(n.name, n.conf.Mountpoints)
	}
	if err != nil {
		logger.Errorf("open %s: %s", n.name, err)
		return nil, 0, toErrno(err)
	}
	return &handle{fd: fd}, fuse.FOPEN_KEEP_CACHE, 0
}

// handle wraps one core handle. The core does not serialize read/seek on
// the same handle, the kernel may, so we do it here.
type handle struct {
	sync.Mutex
	fd int
}

var _ = (fs.FileReader)((*handle)(nil))
var _ = (fs.FileReleaser)((*handle)(nil))

func (h *handle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h.Lock()
	defer h.Unlock()
	if _, err := vbs.Seek(h.fd, off, io.SeekStart); err != nil {
		return nil, toErrno(err)
	}
	n, err := vbs.Read(h.fd, dest)
	if err != nil {
		return nil, toErrno(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *handle) Release(ctx context.Context) syscall.Errno {
	h.Lock()
	defer h.Unlock()
	if err := vbs.Close(h.fd); err != nil {
		return toErrno(err)
	}
	return 0
}

func fillAttr(out *fuse.Attr, size int64) {
	out.Mode = fuse.S_IFREG | 0444
	out.Size = uint64(size)
	out.Blocks = (out.Size + 511) / 512
	now := time.Now()
	out.SetTimes(&now, &now, &now)
}

func toErrno(err error) syscall.Errno {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	// typed discovery failures have no errno of their own
	return syscall.EIO
}

// Serve mounts the recordings and blocks until the filesystem is unmounted.
func Serve(conf *Config, options string) error {
	mopts := fuse.MountOptions{
		FsName: "vbsfs",
		Name:   "vbsfs",
	}
	if options != "" {
		mopts.Options = strings.Split(options, ",")
	}
	oneSecond := time.Second
	server, err := fs.Mount(conf.Mountpoint, &root{conf: conf}, &fs.Options{
		MountOptions: mopts,
		EntryTimeout: &oneSecond,
		AttrTimeout:  &oneSecond,
	})
	if err != nil {
		return err
	}
	logger.Infof("serving %d mountpoints at %s", len(conf.Mountpoints), conf.Mountpoint)
	server.Wait()
	return nil
}
