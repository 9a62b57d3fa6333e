// Package zwrap takes a file pointer or other stream and optionally
// wraps it so reads come from a decompressor. Upon calling Close, the
// decompressor will be closed, followed by the underlying source.
// The PDB serves gzipped files, some mirrors and local archives use xz.

package zwrap

import (
	"bufio"
	"bytes"
	"errors"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// Compression says what kind of stream we found.
type Compression byte

const (
	None Compression = iota
	Gzip
	Xz
)

func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Xz:
		return "xz"
	}
	return "none"
}

type FpZ struct { // This is what we return.
	fp    io.ReadCloser
	zrdr  io.Reader
	zclse io.Closer // nil if the decompressor has nothing to close
	kind  Compression
}

// Kind says which decompressor, if any, sits in front of the source.
func (fc *FpZ) Kind() Compression { return fc.kind }

// Close closes the decompressor, then the underlying backing readCloser.
// It works whether the source is a file or some other stream.
func (fc *FpZ) Close() error {
	var e1 error
	if fc.zclse != nil {
		e1 = fc.zclse.Close()
	}
	e2 := fc.fp.Close()
	return errors.Join(e1, e2)
}

// Read makes sure we read from the decompressed stream and
// not the underlying file stream.
func (fc *FpZ) Read(p []byte) (int, error) {
	if fc.zrdr != nil {
		return fc.zrdr.Read(p)
	}
	return fc.fp.Read(p)
}

// Wrap takes a source like a file pointer or other stream which must
// be gzipped and wraps it so the correct Close and Read will be called.
func Wrap(fp io.ReadCloser) (*FpZ, error) {
	zr, err := gzip.NewReader(fp)
	if err != nil {
		return nil, err
	}
	return &FpZ{fp: fp, zrdr: zr, zclse: zr, kind: Gzip}, nil
}

// WrapXz is like Wrap, but for xz compressed sources.
func WrapXz(fp io.ReadCloser) (*FpZ, error) {
	zr, err := xz.NewReader(fp)
	if err != nil {
		return nil, err
	}
	return &FpZ{fp: fp, zrdr: zr, kind: Xz}, nil
}

// peeked lets us read from the buffered reader, but close the original.
type peeked struct {
	*bufio.Reader
	io.Closer
}

// WrapMaybe will decide if the underlying stream is compressed
// and wrap it if necessary. We look at the first few bytes without
// consuming them, so this works on streams that cannot seek.
func WrapMaybe(fpIn io.ReadCloser) (*FpZ, error) {
	br := bufio.NewReader(fpIn)
	src := peeked{br, fpIn}
	head, err := br.Peek(len(xzMagic))
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, err
	}
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return Wrap(src)
	case bytes.HasPrefix(head, xzMagic):
		return WrapXz(src)
	}
	return &FpZ{fp: src, kind: None}, nil // Leave the zrdr implicitly nil
}
