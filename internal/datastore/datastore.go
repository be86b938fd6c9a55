// Package datastore implements the Data Wrapper (spec §4.5): the
// top-level dispatcher every S3 operation handler calls into. It either
// forwards to the Multi-Backend Gateway or, when the deployment is
// configured with exactly one backend, talks to that backend directly,
// and layers hashing, optional encryption, retrying delete, batch
// delete and the overwrite-skip policy on top of either path.
package datastore

import (
	"context"
	"io"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/scality/cloudserver/internal/backend"
	apperrors "github.com/scality/cloudserver/internal/errors"
	"github.com/scality/cloudserver/internal/hash"
	"github.com/scality/cloudserver/internal/logger"
	"github.com/scality/cloudserver/internal/metadata"
)

// dispatcher is the narrow seam both the Gateway and a single
// backend.Client satisfy, letting Store stay agnostic to which shape it
// is driving.
type dispatcher interface {
	Put(ctx context.Context, locationName string, stream io.Reader, size int64, kc backend.KeyContext, reqID string) (backend.PutResult, error)
	Get(ctx context.Context, info interface{}, rng *backend.ByteRange, reqID string) (io.ReadCloser, error)
	Delete(ctx context.Context, info interface{}, reqID string) error
}

// singleBackendDispatcher adapts a lone backend.Client to the dispatcher
// shape, ignoring locationName since there is only ever one destination
// (spec §4.5: "or — when configured with a single backend — to that
// backend directly").
type singleBackendDispatcher struct {
	client backend.Client
}

func (s singleBackendDispatcher) Put(_ context.Context, _ string, stream io.Reader, size int64, kc backend.KeyContext, reqID string) (backend.PutResult, error) {
	return s.client.Put(stream, size, kc, reqID)
}

func (s singleBackendDispatcher) Get(_ context.Context, info interface{}, rng *backend.ByteRange, reqID string) (io.ReadCloser, error) {
	return s.client.Get(info, rng, reqID)
}

func (s singleBackendDispatcher) Delete(_ context.Context, info interface{}, reqID string) error {
	return s.client.Delete(info, reqID)
}

// gatewayDispatcher adapts *gateway.Gateway; kept as an interface rather
// than a concrete import so datastore never depends on gateway's package
// (gateway already depends on backend and location, and nothing needs a
// cycle here).
type gatewayDispatcher interface {
	Put(ctx context.Context, locationName string, stream io.Reader, size int64, kc backend.KeyContext, reqID string) (backend.PutResult, error)
	Get(ctx context.Context, info interface{}, rng *backend.ByteRange, reqID string) (io.ReadCloser, error)
	Delete(ctx context.Context, info interface{}, reqID string) error
}

// Store is the Data Wrapper. Its dispatch target is held behind a
// sync.RWMutex-guarded cell rather than a package global so Switch is
// safe under concurrent requests (spec §7 "realise this as... a
// lock-protected cell").
type Store struct {
	mu     sync.RWMutex
	target dispatcher
	kms    metadata.KMSClient
}

// New builds a Data Wrapper that dispatches through a Multi-Backend
// Gateway (or any type satisfying the same three-method shape, e.g. a
// mock in tests).
func New(target gatewayDispatcher, kms metadata.KMSClient) *Store {
	return &Store{target: target, kms: kms}
}

// NewSingleBackend builds a Data Wrapper that dispatches directly to one
// backend.Client, skipping the Gateway indirection entirely, matching
// spec §4.5's single-backend-deployment short circuit.
func NewSingleBackend(client backend.Client, kms metadata.KMSClient) *Store {
	return &Store{target: singleBackendDispatcher{client: client}, kms: kms}
}

// Switch replaces the active dispatch target at runtime. Test-only seam
// (spec §4.5 "Switch"); production code never calls this after startup.
func (s *Store) Switch(target dispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = target
}

func (s *Store) current() dispatcher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.target
}

// PutResult is what a successful Put hands back to the caller: the
// backend's opaque retrieval record plus the digest the wrapper computed
// over the stream as it went by.
type PutResult struct {
	Info      backend.RetrievalInfo
	MD5       string
	VersionID string
}

// Put wraps stream in an MD5-computing pass-through, optionally pipes it
// through a cipher, and calls the dispatch target. If contentMD5 is
// non-empty it is compared to the completed digest once the stream has
// been fully consumed; a mismatch triggers a background delete of the
// just-written record and returns BadDigest (spec §4.5 PUT).
func (s *Store) Put(ctx context.Context, locationName string, stream io.Reader, size int64, kc backend.KeyContext, contentMD5, reqID string) (PutResult, error) {
	hr := hash.NewReader(stream, size)

	var body io.Reader = hr
	if kc.Cipher != nil && s.kms != nil {
		dec, err := s.kms.NewDecipher(ctx, kc.Cipher.MasterKeyID, kc.Cipher.CipheredDataKey, kc.Cipher.CryptoScheme, 0)
		if err != nil {
			return PutResult{}, apperrors.InternalMsg("datastore: cipher setup failed: %v", err)
		}
		body = dec.Wrap(hr)
	}

	res, err := s.current().Put(ctx, locationName, body, size, kc, reqID)
	if err != nil {
		return PutResult{}, err
	}

	sum := hr.MD5Hex()
	if contentMD5 != "" && contentMD5 != sum {
		info := backend.RetrievalInfo{Key: res.Key, DataStoreName: locationName}
		go func() {
			if derr := s.Delete(context.Background(), info, reqID); derr != nil {
				logger.LogIf(context.Background(), derr, logger.KeyVal{Key: "reason", Val: "cleanup after BadDigest failed"})
			}
		}()
		return PutResult{}, apperrors.BadDigest()
	}

	info := backend.RetrievalInfo{
		Key:           res.Key,
		DataStoreName: locationName,
		ETag:          res.ETag,
	}
	versionID := uuid.New().String()
	return PutResult{Info: info, MD5: sum, VersionID: versionID}, nil
}

// Get dispatches a GET, piping the body through a decipher when the
// stored record carries encryption material.
func (s *Store) Get(ctx context.Context, info backend.RetrievalInfo, rng *backend.ByteRange, reqID string) (io.ReadCloser, error) {
	body, err := s.current().Get(ctx, info, rng, reqID)
	if err != nil {
		return nil, err
	}
	if len(info.CipheredDataKey) == 0 || s.kms == nil {
		return body, nil
	}
	rangeStart := int64(0)
	if rng != nil {
		rangeStart = rng.First
	}
	dec, err := s.kms.NewDecipher(ctx, info.MasterKeyID, info.CipheredDataKey, info.CryptoScheme, rangeStart)
	if err != nil {
		body.Close()
		return nil, apperrors.InternalMsg("datastore: cipher setup failed: %v", err)
	}
	return decipheredBody{r: dec.Wrap(body), c: body}, nil
}

type decipheredBody struct {
	r io.Reader
	c io.Closer
}

func (d decipheredBody) Read(p []byte) (int, error) { return d.r.Read(p) }
func (d decipheredBody) Close() error                { return d.c.Close() }

const maxDeleteAttempts = 3

// Delete issues up to three total attempts (initial plus two retries)
// against the dispatch target, returning InternalError only after every
// attempt has failed (spec §4.5 "DELETE (retrying)").
func (s *Store) Delete(ctx context.Context, info backend.RetrievalInfo, reqID string) error {
	var lastErr error
	for attempt := 1; attempt <= maxDeleteAttempts; attempt++ {
		if err := s.current().Delete(ctx, info, reqID); err != nil {
			lastErr = err
			logger.LogIf(ctx, err, logger.KeyVal{Key: "attempt", Val: strconv.Itoa(attempt)}, logger.KeyVal{Key: "reason", Val: "datastore delete failed"})
			continue
		}
		return nil
	}
	return apperrors.InternalMsg("datastore: delete failed after %d attempts: %v", maxDeleteAttempts, lastErr)
}
