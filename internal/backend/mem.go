package backend

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io"
	"sync"

	apperrors "github.com/scality/cloudserver/internal/errors"
)

// MemClient is the in-process map{key -> bytes} backend, used for tests
// and for the `mem` entry in backends.data. It never fails on healthcheck
// and never blocks — closest thing to a null object among the variants.
type MemClient struct {
	mu   sync.RWMutex
	objs map[string][]byte
}

// NewMemClient returns an empty in-memory backend.
func NewMemClient() *MemClient {
	return &MemClient{objs: make(map[string][]byte)}
}

func (c *MemClient) Type() string { return TypeMem }

func (c *MemClient) Capabilities() Capabilities {
	return Capabilities{Multipart: false, Tagging: false, Copy: false}
}

func (c *MemClient) Put(stream io.Reader, size int64, kc KeyContext, reqID string) (PutResult, error) {
	data, err := io.ReadAll(stream)
	if err != nil {
		return PutResult{}, apperrors.Internal(TypeMem, err)
	}
	key := fmt.Sprintf("%s/%s", kc.BucketName, kc.ObjectKey)
	sum := md5.Sum(data)

	c.mu.Lock()
	c.objs[key] = data
	c.mu.Unlock()

	return PutResult{Key: key, ETag: fmt.Sprintf(`"%x"`, sum)}, nil
}

func (c *MemClient) Get(info interface{}, rng *ByteRange, reqID string) (io.ReadCloser, error) {
	key, err := memKeyOf(info)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	data, ok := c.objs[key]
	c.mu.RUnlock()
	if !ok {
		return nil, apperrors.ObjNotFound("", key)
	}

	if rng != nil {
		last := rng.Last
		if last >= int64(len(data)) {
			last = int64(len(data)) - 1
		}
		if rng.First > last {
			data = nil
		} else {
			data = data[rng.First : last+1]
		}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *MemClient) Delete(info interface{}, reqID string) error {
	key, err := memKeyOf(info)
	if err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.objs, key)
	c.mu.Unlock()
	return nil
}

func (c *MemClient) CheckHealth() HealthResult {
	return HealthResult{Message: "OK"}
}

func memKeyOf(info interface{}) (string, error) {
	switch v := info.(type) {
	case string:
		return v, nil
	case RetrievalInfo:
		return v.Key, nil
	default:
		return "", apperrors.InternalMsg("mem backend: unsupported retrieval info type %T", info)
	}
}
