package backbeat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/scality/cloudserver/internal/backend"
	"github.com/scality/cloudserver/internal/datastore"
	apperrors "github.com/scality/cloudserver/internal/errors"
	"github.com/scality/cloudserver/internal/location"
	"github.com/scality/cloudserver/internal/metadata"
)

// mpuMemClient adds a minimal MultipartClient to MemClient so the
// putpart/initiatempu/completempu routes have something to dispatch to.
type mpuMemClient struct {
	*backend.MemClient
	uploads map[string][]backend.PartInfo
}

func newMPUMemClient() *mpuMemClient {
	return &mpuMemClient{MemClient: backend.NewMemClient(), uploads: map[string][]backend.PartInfo{}}
}

func (c *mpuMemClient) Capabilities() backend.Capabilities {
	return backend.Capabilities{Multipart: true}
}

func (c *mpuMemClient) CreateMPU(kc backend.KeyContext, reqID string) (string, error) {
	id := "upload-1"
	c.uploads[id] = nil
	return id, nil
}

func (c *mpuMemClient) UploadPart(kc backend.KeyContext, uploadID string, partNumber int, stream io.Reader, size int64, reqID string) (backend.PartInfo, error) {
	data, _ := io.ReadAll(stream)
	p := backend.PartInfo{PartNumber: partNumber, ETag: `"part"`, Size: int64(len(data))}
	c.uploads[uploadID] = append(c.uploads[uploadID], p)
	return p, nil
}

func (c *mpuMemClient) ListParts(kc backend.KeyContext, uploadID string, partNumberMarker, maxParts int, reqID string) ([]backend.PartInfo, error) {
	return c.uploads[uploadID], nil
}

func (c *mpuMemClient) CompleteMPU(kc backend.KeyContext, uploadID string, parts []backend.PartInfo, reqID string) (backend.RetrievalInfo, error) {
	return backend.RetrievalInfo{Key: kc.ObjectKey, DataStoreName: "loc1", ETag: `"done"`}, nil
}

func (c *mpuMemClient) AbortMPU(kc backend.KeyContext, uploadID string, reqID string) (bool, error) {
	delete(c.uploads, uploadID)
	return false, nil
}

type fakeMetaStoreSimple struct {
	buckets map[string]metadata.BucketInfo
	objects map[string]metadata.ObjectMD
}

func newFakeMetaStoreSimple() *fakeMetaStoreSimple {
	return &fakeMetaStoreSimple{buckets: map[string]metadata.BucketInfo{}, objects: map[string]metadata.ObjectMD{}}
}

func (f *fakeMetaStoreSimple) GetBucket(_ context.Context, bucket string) (metadata.BucketInfo, error) {
	bi, ok := f.buckets[bucket]
	if !ok {
		return metadata.BucketInfo{}, apperrors.NoSuchBucket(bucket)
	}
	return bi, nil
}

func (f *fakeMetaStoreSimple) PutBucket(_ context.Context, info metadata.BucketInfo) error {
	f.buckets[info.Name] = info
	return nil
}

func (f *fakeMetaStoreSimple) DeleteBucket(_ context.Context, bucket string) error {
	delete(f.buckets, bucket)
	return nil
}

func (f *fakeMetaStoreSimple) GetObject(_ context.Context, bucket, key, versionID string) (metadata.ObjectMD, error) {
	md, ok := f.objects[bucket+"/"+key]
	if !ok {
		return metadata.ObjectMD{}, apperrors.ObjNotFound(bucket, key)
	}
	return md, nil
}

func (f *fakeMetaStoreSimple) PutObject(_ context.Context, md metadata.ObjectMD) error {
	f.objects[md.Bucket+"/"+md.Key] = md
	return nil
}

func (f *fakeMetaStoreSimple) DeleteObject(_ context.Context, bucket, key, versionID string) error {
	delete(f.objects, bucket+"/"+key)
	return nil
}

func (f *fakeMetaStoreSimple) ListObjectVersions(_ context.Context, bucket string, maxKeys int) ([]metadata.ObjectMD, error) {
	return nil, nil
}

func (f *fakeMetaStoreSimple) ListMPUOverview(_ context.Context, bucket string, maxKeys int) ([]string, error) {
	return nil, nil
}

func (f *fakeMetaStoreSimple) RemoveFromUserBucketIndex(_ context.Context, owner, bucket string) error {
	return nil
}

func TestInitiateAndCompleteMPUTracksOverview(t *testing.T) {
	reg, _ := newRegistryWithMPU()
	store := datastore.NewSingleBackend(backend.NewMemClient(), nil)
	meta := metadata.NewMemStore()
	h := New(reg, store, meta)

	router := mux.NewRouter()
	h.Register(router)

	initReq := httptest.NewRequest("POST", "/_/backbeat/multiplebackenddata/b1/my-key?operation=initiatempu", nil)
	initReq.Header.Set(HeaderStorageType, backend.TypeMem)
	initReq.Header.Set(HeaderStorageClass, "loc1")
	initReq.Header.Set(HeaderVersionID, "v1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, initReq)
	if rec.Code != 200 {
		t.Fatalf("expected 200 from initiatempu, got %d: %s", rec.Code, rec.Body.String())
	}
	var initResp struct {
		UploadID string `json:"uploadId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &initResp); err != nil {
		t.Fatalf("bad json: %v", err)
	}

	ids, err := meta.ListMPUOverview(context.Background(), "b1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 1 || ids[0] != initResp.UploadID {
		t.Fatalf("expected the new upload to appear in the overview, got %+v", ids)
	}

	completeBody := bytes.NewBufferString(`{"parts":[{"partNumber":1,"ETag":"\"part\""}]}`)
	completeReq := httptest.NewRequest("POST", "/_/backbeat/multiplebackenddata/b1/my-key?operation=completempu", completeBody)
	completeReq.Header.Set(HeaderStorageType, backend.TypeMem)
	completeReq.Header.Set(HeaderStorageClass, "loc1")
	completeReq.Header.Set(HeaderUploadID, initResp.UploadID)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, completeReq)
	if rec.Code != 200 {
		t.Fatalf("expected 200 from completempu, got %d: %s", rec.Code, rec.Body.String())
	}

	ids, err = meta.ListMPUOverview(context.Background(), "b1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected the completed upload to be resolved out of the overview, got %+v", ids)
	}
}

func newRegistryWithMPU() (*location.Registry, *mpuMemClient) {
	reg := location.New()
	c := newMPUMemClient()
	reg.Register(location.Constraint{Name: "loc1", Type: backend.TypeMem, BucketName: "b1"}, c)
	return reg, c
}

func TestCheckLocationCoherence(t *testing.T) {
	reg, _ := newRegistryWithMPU()

	if err := checkLocationCoherence(reg, "loc1", backend.TypeMem, "b1"); err != nil {
		t.Fatalf("expected coherent location, got %v", err)
	}
	if err := checkLocationCoherence(reg, "loc1", backend.TypeAWS, "b1"); err == nil {
		t.Fatal("expected type mismatch to fail")
	}
	if err := checkLocationCoherence(reg, "loc1", backend.TypeMem, "other-bucket"); err == nil {
		t.Fatal("expected bucket mismatch to fail")
	}
	if err := checkLocationCoherence(reg, "missing", backend.TypeMem, "b1"); err == nil {
		t.Fatal("expected unknown location to fail")
	}
}

func TestHandlePutPart(t *testing.T) {
	reg, _ := newRegistryWithMPU()
	store := datastore.NewSingleBackend(backend.NewMemClient(), nil)
	meta := newFakeMetaStoreSimple()
	h := New(reg, store, meta)

	router := mux.NewRouter()
	h.Register(router)

	body := bytes.NewBufferString("part-data")
	req := httptest.NewRequest("PUT", "/_/backbeat/multiplebackenddata/b1/my-key?operation=putpart", body)
	req.Header.Set(HeaderStorageType, backend.TypeMem)
	req.Header.Set(HeaderStorageClass, "loc1")
	req.Header.Set(HeaderUploadID, "upload-1")
	req.Header.Set(HeaderPartNumber, "1")
	req.ContentLength = int64(body.Len())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if resp["ETag"] != `"part"` {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCompleteMPUReturnsEmptyObject(t *testing.T) {
	reg, _ := newRegistryWithMPU()
	store := datastore.NewSingleBackend(backend.NewMemClient(), nil)
	meta := newFakeMetaStoreSimple()
	h := New(reg, store, meta)

	router := mux.NewRouter()
	h.Register(router)

	body := bytes.NewBufferString(`{"parts":[{"partNumber":1,"ETag":"\"part\""}]}`)
	req := httptest.NewRequest("POST", "/_/backbeat/multiplebackenddata/b1/my-key?operation=completempu", body)
	req.Header.Set(HeaderStorageType, backend.TypeMem)
	req.Header.Set(HeaderStorageClass, "loc1")
	req.Header.Set(HeaderUploadID, "upload-1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := bytes.TrimSpace(rec.Body.Bytes()); string(got) != "{}" {
		t.Fatalf("expected an empty object response, got %s", got)
	}
}

func TestHandleMetadataRequiresReplicationContentHeader(t *testing.T) {
	reg, _ := newRegistryWithMPU()
	store := datastore.NewSingleBackend(backend.NewMemClient(), nil)
	meta := newFakeMetaStoreSimple()
	meta.buckets["b1"] = metadata.BucketInfo{Name: "b1", Versioning: metadata.VersioningEnabled}
	meta.objects["b1/my-key"] = metadata.ObjectMD{Bucket: "b1", Key: "my-key"}
	h := New(reg, store, meta)

	router := mux.NewRouter()
	h.Register(router)

	req := httptest.NewRequest("PUT", "/_/backbeat/metadata/b1/my-key", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Fatalf("expected 400 InvalidRequest for a missing replication-content header, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleMetadataAcceptsValidReplicationContentHeader(t *testing.T) {
	reg, _ := newRegistryWithMPU()
	store := datastore.NewSingleBackend(backend.NewMemClient(), nil)
	meta := newFakeMetaStoreSimple()
	meta.buckets["b1"] = metadata.BucketInfo{Name: "b1", Versioning: metadata.VersioningEnabled}
	meta.objects["b1/my-key"] = metadata.ObjectMD{Bucket: "b1", Key: "my-key"}
	h := New(reg, store, meta)

	router := mux.NewRouter()
	h.Register(router)

	req := httptest.NewRequest("PUT", "/_/backbeat/metadata/b1/my-key", bytes.NewBufferString(`{}`))
	req.Header.Set(HeaderReplicationContent, replicationContentMeta)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlePutPartWrongStorageType(t *testing.T) {
	reg, _ := newRegistryWithMPU()
	store := datastore.NewSingleBackend(backend.NewMemClient(), nil)
	meta := newFakeMetaStoreSimple()
	h := New(reg, store, meta)

	router := mux.NewRouter()
	h.Register(router)

	req := httptest.NewRequest("PUT", "/_/backbeat/multiplebackenddata/b1/my-key?operation=putpart", bytes.NewBufferString("x"))
	req.Header.Set(HeaderStorageType, backend.TypeAWS)
	req.Header.Set(HeaderStorageClass, "loc1")
	req.Header.Set(HeaderUploadID, "upload-1")
	req.Header.Set(HeaderPartNumber, "1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Fatalf("expected 400 InvalidRequest, got %d: %s", rec.Code, rec.Body.String())
	}
}
