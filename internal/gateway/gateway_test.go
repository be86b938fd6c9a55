package gateway

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/scality/cloudserver/internal/backend"
	apperrors "github.com/scality/cloudserver/internal/errors"
	"github.com/scality/cloudserver/internal/location"
)

func newTestGateway(t *testing.T) (*Gateway, *location.Registry) {
	t.Helper()
	reg := location.New()
	reg.Register(location.Constraint{Name: "loc1", Type: backend.TypeMem}, backend.NewMemClient())
	fc, err := backend.NewFileClient(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reg.Register(location.Constraint{Name: "loc2", Type: backend.TypeFile}, fc)
	return New(reg), reg
}

func TestGatewayPutGetDelete(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()
	kc := backend.KeyContext{BucketName: "b1", ObjectKey: "k1"}

	res, err := g.Put(ctx, "loc1", bytes.NewReader([]byte("hello")), 5, kc, "req1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info := backend.RetrievalInfo{Key: res.Key, DataStoreName: "loc1"}
	rc, err := g.Get(ctx, info, nil, "req1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := io.ReadAll(rc)
	if string(data) != "hello" {
		t.Fatalf("unexpected data: %s", data)
	}

	if err := g.Delete(ctx, info, "req1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGatewayGetBareStringGoesToLegacy(t *testing.T) {
	g, reg := newTestGateway(t)
	ctx := context.Background()

	legacy, _ := reg.Client(backend.TypeLegacy)
	res, _ := legacy.Put(bytes.NewReader([]byte("legacy-data")), 11, backend.KeyContext{BucketName: "b1", ObjectKey: "k1"}, "req1")

	rc, err := g.Get(ctx, res.Key, nil, "req1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := io.ReadAll(rc)
	if string(data) != "legacy-data" {
		t.Fatalf("unexpected data: %s", data)
	}
}

func TestGatewayPutRejectsMalformedTagging(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()
	kc := backend.KeyContext{BucketName: "b1", ObjectKey: "k1", Tagging: "k1=v1&k1=v2"}

	_, err := g.Put(ctx, "loc1", bytes.NewReader([]byte("x")), 1, kc, "req1")
	if !apperrors.Is(err, "InvalidArgument") {
		t.Fatalf("expected InvalidArgument for malformed tagging, got %v", err)
	}
}

func TestGatewayUnknownLocationFails(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()
	_, err := g.Put(ctx, "nonexistent", bytes.NewReader(nil), 0, backend.KeyContext{}, "req1")
	if err == nil {
		t.Fatal("expected error for unregistered location")
	}
}

func TestGatewayMultipartCapabilityGating(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	// loc1 is backed by MemClient, which has no multipart support.
	_, err := g.CreateMPU(ctx, "loc1", backend.KeyContext{BucketName: "b1", ObjectKey: "k1"}, "req1")
	if !apperrors.Is(err, "NotImplemented") {
		t.Fatalf("expected NotImplemented, got %v", err)
	}
}

func TestGatewayAbortMPUAzureSkipsDataDelete(t *testing.T) {
	reg := location.New()
	az := &fakeAzureLikeClient{}
	reg.Register(location.Constraint{Name: "loc-az", Type: backend.TypeAzure}, az)
	g := New(reg)

	skip, err := g.AbortMPU(context.Background(), "loc-az", backend.KeyContext{}, "upload-1", "req1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !skip {
		t.Fatal("expected skipDataDelete=true for azure-typed backend")
	}
}

func TestGatewayCheckHealthAggregation(t *testing.T) {
	g, _ := newTestGateway(t)
	results := g.CheckHealth(context.Background())
	if len(results) == 0 {
		t.Fatal("expected at least one health result")
	}
	if _, ok := results["loc1"]; !ok {
		t.Fatalf("expected a mem-backed location to report OK directly, got %+v", results)
	}
}

// fakeAzureLikeClient satisfies backend.Client and backend.MultipartClient
// while reporting TypeAzure, to exercise the Azure-specific
// skipDataDelete fallback in Gateway.AbortMPU without depending on the
// real azblob SDK.
type fakeAzureLikeClient struct{}

func (f *fakeAzureLikeClient) Type() string { return backend.TypeAzure }
func (f *fakeAzureLikeClient) Capabilities() backend.Capabilities {
	return backend.Capabilities{Multipart: true}
}
func (f *fakeAzureLikeClient) Put(io.Reader, int64, backend.KeyContext, string) (backend.PutResult, error) {
	return backend.PutResult{}, nil
}
func (f *fakeAzureLikeClient) Get(interface{}, *backend.ByteRange, string) (io.ReadCloser, error) {
	return nil, nil
}
func (f *fakeAzureLikeClient) Delete(interface{}, string) error { return nil }
func (f *fakeAzureLikeClient) CheckHealth() backend.HealthResult {
	return backend.HealthResult{Message: "OK"}
}
func (f *fakeAzureLikeClient) CreateMPU(backend.KeyContext, string) (string, error) { return "", nil }
func (f *fakeAzureLikeClient) UploadPart(backend.KeyContext, string, int, io.Reader, int64, string) (backend.PartInfo, error) {
	return backend.PartInfo{}, nil
}
func (f *fakeAzureLikeClient) ListParts(backend.KeyContext, string, int, int, string) ([]backend.PartInfo, error) {
	return nil, nil
}
func (f *fakeAzureLikeClient) CompleteMPU(backend.KeyContext, string, []backend.PartInfo, string) (backend.RetrievalInfo, error) {
	return backend.RetrievalInfo{}, nil
}
func (f *fakeAzureLikeClient) AbortMPU(backend.KeyContext, string, string) (bool, error) {
	return false, nil
}
