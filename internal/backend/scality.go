package backend

import (
	"context"
	"fmt"
	"io"

	miniogo "github.com/minio/minio-go/v7"
	miniotags "github.com/minio/minio-go/v7/pkg/tags"

	apperrors "github.com/scality/cloudserver/internal/errors"
)

// ScalityClient proxies a RING (or any S3-protocol-speaking scality
// deployment) over native signed HTTP. It is distinguished from the
// AWSClient variant only by its GET path: callers pass the bare backend
// key instead of a RetrievalInfo record, since the scality proxy has
// historically been addressed this way and changing it would break every
// object written before dataStoreName existed.
type ScalityClient struct {
	client      *miniogo.Core
	bucket      string
	bucketMatch bool
	location    string
}

// NewScalityClient wires a scality proxy client against an already
// constructed minio-go Core client.
func NewScalityClient(client *miniogo.Core, bucket string, bucketMatch bool, location string) *ScalityClient {
	return &ScalityClient{client: client, bucket: bucket, bucketMatch: bucketMatch, location: location}
}

func (c *ScalityClient) Type() string { return TypeScality }

func (c *ScalityClient) Capabilities() Capabilities {
	return Capabilities{Multipart: true, Tagging: true, Copy: true}
}

func (c *ScalityClient) nativeKey(kc KeyContext) string {
	return nativeKey(kc, c.bucketMatch)
}

func (c *ScalityClient) Put(stream io.Reader, size int64, kc KeyContext, reqID string) (PutResult, error) {
	key := c.nativeKey(kc)
	info, err := c.client.PutObject(context.Background(), c.bucket, key, stream, size, "", "", miniogo.PutObjectOptions{
		UserMetadata: kc.MetaHeaders,
	})
	if err != nil {
		return PutResult{}, apperrors.Internal(TypeScality, err)
	}
	return PutResult{Key: key, ETag: fmt.Sprintf("%q", info.ETag)}, nil
}

// Get accepts either a bare key string (the scality-native shape) or a
// full RetrievalInfo, so the gateway's legacy-record fallback still works.
func (c *ScalityClient) Get(info interface{}, rng *ByteRange, reqID string) (io.ReadCloser, error) {
	key, err := scalityKeyOf(info)
	if err != nil {
		return nil, err
	}

	opts := miniogo.GetObjectOptions{}
	if rng != nil {
		if err := opts.SetRange(rng.First, rng.Last); err != nil {
			return nil, apperrors.Internal(TypeScality, err)
		}
	}
	obj, _, _, err := c.client.GetObject(context.Background(), c.bucket, key, opts)
	if err != nil {
		return nil, apperrors.Internal(TypeScality, err)
	}
	return obj, nil
}

func (c *ScalityClient) Delete(info interface{}, reqID string) error {
	key, err := scalityKeyOf(info)
	if err != nil {
		return err
	}
	if err := c.client.RemoveObject(context.Background(), c.bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return apperrors.Internal(TypeScality, err)
	}
	return nil
}

func (c *ScalityClient) CheckHealth() HealthResult {
	exists, err := c.client.BucketExists(context.Background(), c.bucket)
	if err != nil {
		return HealthResult{Err: apperrors.Internal(TypeScality, err)}
	}
	if !exists {
		return HealthResult{Err: apperrors.InternalMsg("scality backend: bucket %s not found", c.bucket)}
	}
	return HealthResult{Message: "OK"}
}

func (c *ScalityClient) CreateMPU(kc KeyContext, reqID string) (string, error) {
	uploadID, err := c.client.NewMultipartUpload(context.Background(), c.bucket, c.nativeKey(kc), miniogo.PutObjectOptions{UserMetadata: kc.MetaHeaders})
	if err != nil {
		return "", apperrors.Internal(TypeScality, err)
	}
	return uploadID, nil
}

func (c *ScalityClient) UploadPart(kc KeyContext, uploadID string, partNumber int, stream io.Reader, size int64, reqID string) (PartInfo, error) {
	part, err := c.client.PutObjectPart(context.Background(), c.bucket, c.nativeKey(kc), uploadID, partNumber, stream, size, "", "", nil)
	if err != nil {
		return PartInfo{}, apperrors.Internal(TypeScality, err)
	}
	return PartInfo{PartNumber: part.PartNumber, ETag: part.ETag, Size: part.Size}, nil
}

func (c *ScalityClient) ListParts(kc KeyContext, uploadID string, partNumberMarker int, maxParts int, reqID string) ([]PartInfo, error) {
	result, err := c.client.ListObjectParts(context.Background(), c.bucket, c.nativeKey(kc), uploadID, partNumberMarker, maxParts)
	if err != nil {
		return nil, apperrors.Internal(TypeScality, err)
	}
	parts := make([]PartInfo, 0, len(result.ObjectParts))
	for _, p := range result.ObjectParts {
		parts = append(parts, PartInfo{PartNumber: p.PartNumber, ETag: p.ETag, Size: p.Size})
	}
	return parts, nil
}

func (c *ScalityClient) CompleteMPU(kc KeyContext, uploadID string, parts []PartInfo, reqID string) (RetrievalInfo, error) {
	complete := make([]miniogo.CompletePart, 0, len(parts))
	for _, p := range parts {
		complete = append(complete, miniogo.CompletePart{PartNumber: p.PartNumber, ETag: p.ETag})
	}
	key := c.nativeKey(kc)
	etag, err := c.client.CompleteMultipartUpload(context.Background(), c.bucket, key, uploadID, complete, miniogo.PutObjectOptions{})
	if err != nil {
		return RetrievalInfo{}, apperrors.Internal(TypeScality, err)
	}
	return RetrievalInfo{Key: key, DataStoreName: c.location, DataStoreType: TypeScality, ETag: fmt.Sprintf("%q", etag)}, nil
}

// AbortMPU is a real data-removing abort on scality, unlike Azure, so
// skipDataDelete is always false here.
func (c *ScalityClient) AbortMPU(kc KeyContext, uploadID string, reqID string) (bool, error) {
	if err := c.client.AbortMultipartUpload(context.Background(), c.bucket, c.nativeKey(kc), uploadID); err != nil {
		return false, apperrors.Internal(TypeScality, err)
	}
	return false, nil
}

func (c *ScalityClient) ObjectPutTagging(info RetrievalInfo, tagging string, reqID string) error {
	parsed, err := ParseTagging(tagging)
	if err != nil {
		return err
	}
	t, err := miniotags.MapToObjectTags(parsed)
	if err != nil {
		return apperrors.InvalidArgument("malformed tagging: " + err.Error())
	}
	if err := c.client.Client.PutObjectTagging(context.Background(), c.bucket, info.Key, t, miniogo.PutObjectTaggingOptions{}); err != nil {
		return apperrors.Internal(TypeScality, err)
	}
	return nil
}

func (c *ScalityClient) ObjectDeleteTagging(info RetrievalInfo, reqID string) error {
	if err := c.client.Client.RemoveObjectTagging(context.Background(), c.bucket, info.Key, miniogo.RemoveObjectTaggingOptions{}); err != nil {
		return apperrors.Internal(TypeScality, err)
	}
	return nil
}

func (c *ScalityClient) CopyObject(srcInfo RetrievalInfo, srcLocation string, dstKC KeyContext, reqID string) (RetrievalInfo, error) {
	dstKey := c.nativeKey(dstKC)
	_, err := c.client.Client.CopyObject(context.Background(), miniogo.CopyDestOptions{
		Bucket: c.bucket,
		Object: dstKey,
	}, miniogo.CopySrcOptions{
		Bucket: c.bucket,
		Object: srcInfo.Key,
	})
	if err != nil {
		return RetrievalInfo{}, apperrors.Internal(TypeScality, err)
	}
	return RetrievalInfo{Key: dstKey, DataStoreName: c.location, DataStoreType: TypeScality}, nil
}

func (c *ScalityClient) UploadPartCopy(srcInfo RetrievalInfo, srcLocation string, dstKC KeyContext, uploadID string, partNumber int, rng *ByteRange, reqID string) (PartInfo, error) {
	if srcLocation != c.location {
		return PartInfo{}, apperrors.NotImplemented(fmt.Sprintf("cross-backend uploadPartCopy: source=%s target=%s", srcLocation, c.location))
	}
	return PartInfo{}, apperrors.NotImplemented("scality uploadPartCopy")
}

func scalityKeyOf(info interface{}) (string, error) {
	switch v := info.(type) {
	case string:
		return v, nil
	case RetrievalInfo:
		return v.Key, nil
	default:
		return "", apperrors.InternalMsg("scality backend: unsupported retrieval info type %T", info)
	}
}
