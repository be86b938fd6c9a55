package backend

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	apperrors "github.com/scality/cloudserver/internal/errors"
)

// FileClient is the POSIX content-addressed file-tree backend: objects
// are written under root/<first-2-hex-chars-of-md5>/<full-hex-md5> so no
// directory holds more than 256ths of the total object count.
type FileClient struct {
	root string
}

// NewFileClient returns a file backend rooted at dir, creating it if
// necessary.
func NewFileClient(dir string) (*FileClient, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, apperrors.Internal(TypeFile, err)
	}
	return &FileClient{root: dir}, nil
}

func (c *FileClient) Type() string { return TypeFile }

func (c *FileClient) Capabilities() Capabilities {
	return Capabilities{Multipart: false, Tagging: false, Copy: false}
}

func (c *FileClient) pathFor(key string) string {
	return filepath.Join(c.root, key[:2], key)
}

func (c *FileClient) Put(stream io.Reader, size int64, kc KeyContext, reqID string) (PutResult, error) {
	tmp, err := os.CreateTemp(c.root, "put-*")
	if err != nil {
		return PutResult{}, apperrors.Internal(TypeFile, err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	h := md5.New()
	if _, err := io.Copy(tmp, io.TeeReader(stream, h)); err != nil {
		return PutResult{}, apperrors.Internal(TypeFile, err)
	}

	key := hex.EncodeToString(h.Sum(nil))
	dst := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return PutResult{}, apperrors.Internal(TypeFile, err)
	}
	tmp.Close()
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return PutResult{}, apperrors.Internal(TypeFile, err)
	}

	return PutResult{Key: key, ETag: fmt.Sprintf(`"%s"`, key)}, nil
}

func (c *FileClient) Get(info interface{}, rng *ByteRange, reqID string) (io.ReadCloser, error) {
	key, err := fileKeyOf(info)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.ObjNotFound("", key)
		}
		return nil, apperrors.Internal(TypeFile, err)
	}
	if rng == nil {
		return f, nil
	}
	if _, err := f.Seek(rng.First, io.SeekStart); err != nil {
		f.Close()
		return nil, apperrors.Internal(TypeFile, err)
	}
	return &limitedReadCloser{r: io.LimitReader(f, rng.Last-rng.First+1), c: f}, nil
}

func (c *FileClient) Delete(info interface{}, reqID string) error {
	key, err := fileKeyOf(info)
	if err != nil {
		return err
	}
	if err := os.Remove(c.pathFor(key)); err != nil && !os.IsNotExist(err) {
		return apperrors.Internal(TypeFile, err)
	}
	return nil
}

func (c *FileClient) CheckHealth() HealthResult {
	if _, err := os.Stat(c.root); err != nil {
		return HealthResult{Err: apperrors.Internal(TypeFile, err)}
	}
	return HealthResult{Message: "OK"}
}

func fileKeyOf(info interface{}) (string, error) {
	switch v := info.(type) {
	case string:
		return v, nil
	case RetrievalInfo:
		return v.Key, nil
	default:
		return "", apperrors.InternalMsg("file backend: unsupported retrieval info type %T", info)
	}
}

type limitedReadCloser struct {
	r io.Reader
	c io.Closer
}

func (l *limitedReadCloser) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l *limitedReadCloser) Close() error                { return l.c.Close() }
