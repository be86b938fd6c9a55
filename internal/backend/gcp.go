package backend

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	apperrors "github.com/scality/cloudserver/internal/errors"
)

// GCPClient talks to Google Cloud Storage. GCS objects have no distinct
// tagging API, so tagging is folded into the same native metadata map
// user headers already use (spec §3, §9): objectPutTagging rewrites the
// whole metadata map rather than a side-channel tag set, which is why the
// spec flags this as something to revisit if GCS ever grows native tags.
type GCPClient struct {
	client      *storage.Client
	bucket      string
	bucketMatch bool
	location    string
}

// NewGCPClient wires a client against one bucket; bucketName must already
// match the GCS client's own configured bucket (spec §9 open question:
// the documented behaviour — use the client's own bucket name — is
// authoritative, not a `_client._gcpBucketName` lookup).
func NewGCPClient(client *storage.Client, bucket string, bucketMatch bool, location string) *GCPClient {
	return &GCPClient{client: client, bucket: bucket, bucketMatch: bucketMatch, location: location}
}

func (c *GCPClient) Type() string { return TypeGCP }

func (c *GCPClient) Capabilities() Capabilities {
	return Capabilities{Multipart: true, Tagging: true, Copy: true}
}

func (c *GCPClient) nativeKey(kc KeyContext) string { return nativeKey(kc, c.bucketMatch) }

func (c *GCPClient) metadataFor(kc KeyContext) map[string]string {
	meta := stripMetaPrefix(kc.MetaHeaders)
	if kc.Tagging != "" {
		if tags, err := ParseTagging(kc.Tagging); err == nil {
			for k, v := range tags {
				meta["tag-"+k] = v
			}
		}
	}
	return meta
}

func (c *GCPClient) Put(stream io.Reader, size int64, kc KeyContext, reqID string) (PutResult, error) {
	key := c.nativeKey(kc)
	ctx := context.Background()
	w := c.client.Bucket(c.bucket).Object(key).NewWriter(ctx)
	w.Metadata = c.metadataFor(kc)

	if _, err := io.Copy(w, stream); err != nil {
		w.Close()
		return PutResult{}, apperrors.Internal(TypeGCP, err)
	}
	if err := w.Close(); err != nil {
		return PutResult{}, apperrors.Internal(TypeGCP, err)
	}
	return PutResult{Key: key, ETag: fmt.Sprintf("%q", w.Attrs().Etag)}, nil
}

func (c *GCPClient) Get(info interface{}, rng *ByteRange, reqID string) (io.ReadCloser, error) {
	ri, err := gcpInfoOf(info)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	obj := c.client.Bucket(c.bucket).Object(ri.Key)
	if rng == nil {
		r, err := obj.NewReader(ctx)
		if err != nil {
			return nil, apperrors.Internal(TypeGCP, err)
		}
		return r, nil
	}
	r, err := obj.NewRangeReader(ctx, rng.First, rng.Last-rng.First+1)
	if err != nil {
		return nil, apperrors.Internal(TypeGCP, err)
	}
	return r, nil
}

func (c *GCPClient) Delete(info interface{}, reqID string) error {
	ri, err := gcpInfoOf(info)
	if err != nil {
		return err
	}
	if err := c.client.Bucket(c.bucket).Object(ri.Key).Delete(context.Background()); err != nil {
		return apperrors.Internal(TypeGCP, err)
	}
	return nil
}

func (c *GCPClient) CheckHealth() HealthResult {
	if _, err := c.client.Bucket(c.bucket).Attrs(context.Background()); err != nil {
		return HealthResult{Err: apperrors.Internal(TypeGCP, err)}
	}
	return HealthResult{Message: "OK"}
}

// CreateMPU on GCS is emulated with a staging prefix of per-part objects
// later assembled with a compose call, the same trick the corpus's own
// GCS gateway backend uses for its shadow multipart bucket.
func (c *GCPClient) CreateMPU(kc KeyContext, reqID string) (string, error) {
	return fmt.Sprintf("mpu-%s-%s", kc.BucketName, kc.ObjectKey), nil
}

func (c *GCPClient) partObjectName(uploadID string, partNumber int) string {
	return fmt.Sprintf(".cloudserver-mpu/%s/part-%05d", uploadID, partNumber)
}

func (c *GCPClient) UploadPart(kc KeyContext, uploadID string, partNumber int, stream io.Reader, size int64, reqID string) (PartInfo, error) {
	ctx := context.Background()
	w := c.client.Bucket(c.bucket).Object(c.partObjectName(uploadID, partNumber)).NewWriter(ctx)
	n, err := io.Copy(w, stream)
	if err != nil {
		w.Close()
		return PartInfo{}, apperrors.Internal(TypeGCP, err)
	}
	if err := w.Close(); err != nil {
		return PartInfo{}, apperrors.Internal(TypeGCP, err)
	}
	return PartInfo{PartNumber: partNumber, ETag: fmt.Sprintf("%q", w.Attrs().Etag), Size: n}, nil
}

func (c *GCPClient) ListParts(kc KeyContext, uploadID string, partNumberMarker int, maxParts int, reqID string) ([]PartInfo, error) {
	ctx := context.Background()
	it := c.client.Bucket(c.bucket).Objects(ctx, &storage.Query{Prefix: fmt.Sprintf(".cloudserver-mpu/%s/", uploadID)})
	parts := make([]PartInfo, 0)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, apperrors.Internal(TypeGCP, err)
		}
		if len(parts) >= maxParts {
			break
		}
		parts = append(parts, PartInfo{ETag: fmt.Sprintf("%q", attrs.Etag), Size: attrs.Size})
	}
	return parts, nil
}

func (c *GCPClient) CompleteMPU(kc KeyContext, uploadID string, parts []PartInfo, reqID string) (RetrievalInfo, error) {
	ctx := context.Background()
	bucket := c.client.Bucket(c.bucket)
	srcs := make([]*storage.ObjectHandle, 0, len(parts))
	for i := range parts {
		srcs = append(srcs, bucket.Object(c.partObjectName(uploadID, i+1)))
	}
	key := c.nativeKey(kc)
	composer := bucket.Object(key).ComposerFrom(srcs...)
	composer.Metadata = c.metadataFor(kc)
	attrs, err := composer.Run(ctx)
	if err != nil {
		return RetrievalInfo{}, apperrors.Internal(TypeGCP, err)
	}
	for i := range parts {
		_ = bucket.Object(c.partObjectName(uploadID, i+1)).Delete(ctx)
	}
	return RetrievalInfo{Key: key, DataStoreName: c.location, DataStoreType: TypeGCP, ETag: fmt.Sprintf("%q", attrs.Etag)}, nil
}

func (c *GCPClient) AbortMPU(kc KeyContext, uploadID string, reqID string) (bool, error) {
	ctx := context.Background()
	it := c.client.Bucket(c.bucket).Objects(ctx, &storage.Query{Prefix: fmt.Sprintf(".cloudserver-mpu/%s/", uploadID)})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return false, apperrors.Internal(TypeGCP, err)
		}
		if err := c.client.Bucket(c.bucket).Object(attrs.Name).Delete(ctx); err != nil {
			return false, apperrors.Internal(TypeGCP, err)
		}
	}
	return false, nil
}

// ObjectPutTagging rewrites the full metadata map, per the documented,
// currently-accepted behaviour (spec §9): GCS has no side-channel tag
// set, so there is nothing less invasive to do without losing existing
// non-tag metadata the caller didn't pass in.
func (c *GCPClient) ObjectPutTagging(info RetrievalInfo, tagging string, reqID string) error {
	tags, err := ParseTagging(tagging)
	if err != nil {
		return err
	}
	ctx := context.Background()
	obj := c.client.Bucket(c.bucket).Object(info.Key)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return apperrors.Internal(TypeGCP, err)
	}
	meta := make(map[string]string, len(attrs.Metadata))
	for k, v := range attrs.Metadata {
		meta[k] = v
	}
	for k, v := range tags {
		meta["tag-"+k] = v
	}
	_, err = obj.Update(ctx, storage.ObjectAttrsToUpdate{Metadata: meta})
	if err != nil {
		return apperrors.Internal(TypeGCP, err)
	}
	return nil
}

func (c *GCPClient) ObjectDeleteTagging(info RetrievalInfo, reqID string) error {
	ctx := context.Background()
	obj := c.client.Bucket(c.bucket).Object(info.Key)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return apperrors.Internal(TypeGCP, err)
	}
	meta := make(map[string]string)
	for k, v := range attrs.Metadata {
		if len(k) >= 4 && k[:4] == "tag-" {
			continue
		}
		meta[k] = v
	}
	_, err = obj.Update(ctx, storage.ObjectAttrsToUpdate{Metadata: meta})
	if err != nil {
		return apperrors.Internal(TypeGCP, err)
	}
	return nil
}

func (c *GCPClient) CopyObject(srcInfo RetrievalInfo, srcLocation string, dstKC KeyContext, reqID string) (RetrievalInfo, error) {
	if srcLocation != c.location {
		return RetrievalInfo{}, apperrors.NotImplemented(fmt.Sprintf("cross-backend copyObject: source=%s target=%s", srcLocation, TypeGCP))
	}
	ctx := context.Background()
	bucket := c.client.Bucket(c.bucket)
	dstKey := c.nativeKey(dstKC)
	copier := bucket.Object(dstKey).CopierFrom(bucket.Object(srcInfo.Key))
	copier.Metadata = c.metadataFor(dstKC)
	attrs, err := copier.Run(ctx)
	if err != nil {
		return RetrievalInfo{}, apperrors.Internal(TypeGCP, err)
	}
	return RetrievalInfo{Key: dstKey, DataStoreName: c.location, DataStoreType: TypeGCP, ETag: fmt.Sprintf("%q", attrs.Etag)}, nil
}

func (c *GCPClient) UploadPartCopy(srcInfo RetrievalInfo, srcLocation string, dstKC KeyContext, uploadID string, partNumber int, rng *ByteRange, reqID string) (PartInfo, error) {
	return PartInfo{}, apperrors.NotImplemented("gcp uploadPartCopy")
}

func gcpInfoOf(info interface{}) (RetrievalInfo, error) {
	switch v := info.(type) {
	case RetrievalInfo:
		return v, nil
	case string:
		return RetrievalInfo{Key: v}, nil
	default:
		return RetrievalInfo{}, apperrors.InternalMsg("gcp backend: unsupported retrieval info type %T", info)
	}
}
