package mk6

import (
	"encoding/binary"
	"io"
)

// SyncWord marks the start of a Mark6 scatter-gather file.
const SyncWord uint64 = 0xfeed6666

// Version is the only file version the reader understands.
const Version int32 = 2

const (
	FileHeaderSize = 24
	WBHeaderSize   = 8
)

// FileHeader sits at offset 0 of every scatter-gather file. The layout is
// fixed by the recorder (x86, little-endian); only SyncWord and Version are
// consulted when reading, the other fields describe how the file was written.
type FileHeader struct {
	SyncWord     uint64
	Version      int32
	BlockSize    int32
	PacketFormat int32
	PacketSize   int32
}

// WBHeader precedes every write block. WBSize is the total length of the
// block including this header, so the next header starts exactly WBSize
// bytes after the start of the current one.
type WBHeader struct {
	BlockNum int32
	WBSize   int32
}

// Valid reports whether the header identifies a scatter-gather file this
// reader can consume.
func (h *FileHeader) Valid() bool {
	return h.SyncWord == SyncWord && h.Version == Version
}

func ReadFileHeader(r io.Reader) (*FileHeader, error) {
	var h FileHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func ReadWBHeader(r io.Reader) (*WBHeader, error) {
	var h WBHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (h *FileHeader) WriteTo(w io.Writer) error {
	return binary.Write(w, binary.LittleEndian, h)
}

func (h *WBHeader) WriteTo(w io.Writer) error {
	return binary.Write(w, binary.LittleEndian, h)
}

// NewFileHeader returns a header for a freshly written file.
func NewFileHeader(blockSize int32) *FileHeader {
	return &FileHeader{
		SyncWord:  SyncWord,
		Version:   Version,
		BlockSize: blockSize,
	}
}
