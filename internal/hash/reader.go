// Package hash provides the MD5-computing pass-through reader the Data
// Wrapper streams every PUT body through, grounded on the teacher's
// pkg/hash.Reader: it is both an io.Reader the backend client consumes and
// a hash accumulator the wrapper inspects once the stream is drained.
package hash

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

// Reader wraps an io.Reader, feeding every byte read through an MD5
// accumulator. Size is the declared content length, -1 if unknown.
type Reader struct {
	src  io.Reader
	size int64

	md5Hash hash.Hash
	bytesRead int64

	completed bool
	sum       [md5.Size]byte
}

// NewReader returns a Reader over src that will compute MD5 as the caller
// reads from it.
func NewReader(src io.Reader, size int64) *Reader {
	return &Reader{src: src, size: size, md5Hash: md5.New()}
}

// Size returns the declared size, or -1 if the caller didn't know it
// up front (e.g. chunked transfer encoding).
func (r *Reader) Size() int64 { return r.size }

// Read implements io.Reader, updating the running MD5 as bytes flow
// through. On io.EOF it finalizes the sum so MD5Hex is valid afterward.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	if n > 0 {
		r.md5Hash.Write(p[:n])
		r.bytesRead += int64(n)
	}
	if err == io.EOF {
		r.finalize()
	}
	return n, err
}

func (r *Reader) finalize() {
	if r.completed {
		return
	}
	copy(r.sum[:], r.md5Hash.Sum(nil))
	r.completed = true
}

// MD5Hex returns the hex-encoded MD5 of everything read so far, finalizing
// early if the stream hasn't hit EOF yet (used when a caller drains the
// reader through io.Copy and then asks for the sum).
func (r *Reader) MD5Hex() string {
	r.finalize()
	return hex.EncodeToString(r.sum[:])
}

// ETag renders MD5Hex as an S3-style quoted ETag, e.g. `"d41d8cd9…"`.
func (r *Reader) ETag() string {
	return fmt.Sprintf("%q", r.MD5Hex())
}

// BytesRead reports how many bytes have flowed through the reader so far.
func (r *Reader) BytesRead() int64 { return r.bytesRead }

// EmptyETag is the well-known ETag of a zero-byte object: the quoted MD5
// of no bytes, which is also what ETag returns for an empty stream.
const EmptyETag = `"d41d8cd98f00b204e9800998ecf8427e"`
