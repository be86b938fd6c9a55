package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"

	miniogo "github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	miniotags "github.com/minio/minio-go/v7/pkg/tags"

	apperrors "github.com/scality/cloudserver/internal/errors"
)

// AWSClient speaks signed HTTPS to Amazon S3 (or any strictly-compatible
// endpoint configured at a non-default host). Supports MPU, copy-in-place
// and native per-object tagging (spec §4.1).
type AWSClient struct {
	client      *miniogo.Core
	bucket      string
	bucketMatch bool
	location    string
}

// NewAWSClient builds an AWS S3 client, chaining credentials the same way
// the corpus's own S3-compatible gateways do: environment variables, then
// EC2/ECS IAM role, then the shared credentials file, then explicit
// static keys.
func NewAWSClient(endpoint, accessKey, secretKey, bucket string, bucketMatch bool, location string, secure bool) (*AWSClient, error) {
	creds := miniocreds.NewChainCredentials([]miniocreds.Provider{
		&miniocreds.EnvAWS{},
		&miniocreds.IAM{Client: &http.Client{}},
		&miniocreds.FileAWSCredentials{},
		&miniocreds.Static{Value: miniocreds.Value{AccessKeyID: accessKey, SecretAccessKey: secretKey}},
	})

	cl, err := miniogo.New(endpoint, &miniogo.Options{Creds: creds, Secure: secure})
	if err != nil {
		return nil, apperrors.Internal(TypeAWS, err)
	}

	return &AWSClient{client: &miniogo.Core{Client: cl}, bucket: bucket, bucketMatch: bucketMatch, location: location}, nil
}

func (c *AWSClient) Type() string { return TypeAWS }

func (c *AWSClient) Capabilities() Capabilities {
	return Capabilities{Multipart: true, Tagging: true, Copy: true}
}

func (c *AWSClient) nativeKey(kc KeyContext) string { return nativeKey(kc, c.bucketMatch) }

func (c *AWSClient) Put(stream io.Reader, size int64, kc KeyContext, reqID string) (PutResult, error) {
	key := c.nativeKey(kc)
	opts := miniogo.PutObjectOptions{UserMetadata: kc.MetaHeaders}
	if kc.Tagging != "" {
		tags, err := ParseTagging(kc.Tagging)
		if err != nil {
			return PutResult{}, err
		}
		if t, err := miniotags.MapToObjectTags(tags); err == nil {
			opts.UserTags = t.ToMap()
		}
	}
	info, err := c.client.PutObject(context.Background(), c.bucket, key, stream, size, "", "", opts)
	if err != nil {
		return PutResult{}, apperrors.Internal(TypeAWS, err)
	}
	return PutResult{Key: key, ETag: fmt.Sprintf("%q", info.ETag)}, nil
}

func (c *AWSClient) Get(info interface{}, rng *ByteRange, reqID string) (io.ReadCloser, error) {
	ri, err := awsInfoOf(info)
	if err != nil {
		return nil, err
	}
	opts := miniogo.GetObjectOptions{}
	if rng != nil {
		if err := opts.SetRange(rng.First, rng.Last); err != nil {
			return nil, apperrors.Internal(TypeAWS, err)
		}
	}
	obj, _, _, err := c.client.GetObject(context.Background(), c.bucket, ri.Key, opts)
	if err != nil {
		return nil, apperrors.Internal(TypeAWS, err)
	}
	return obj, nil
}

func (c *AWSClient) Delete(info interface{}, reqID string) error {
	ri, err := awsInfoOf(info)
	if err != nil {
		return err
	}
	if err := c.client.RemoveObject(context.Background(), c.bucket, ri.Key, miniogo.RemoveObjectOptions{}); err != nil {
		return apperrors.Internal(TypeAWS, err)
	}
	return nil
}

func (c *AWSClient) CheckHealth() HealthResult {
	exists, err := c.client.BucketExists(context.Background(), c.bucket)
	if err != nil {
		return HealthResult{Err: apperrors.Internal(TypeAWS, err)}
	}
	if !exists {
		return HealthResult{Err: apperrors.InternalMsg("aws_s3 backend: bucket %s not found", c.bucket)}
	}
	return HealthResult{Message: "OK"}
}

func (c *AWSClient) CreateMPU(kc KeyContext, reqID string) (string, error) {
	uploadID, err := c.client.NewMultipartUpload(context.Background(), c.bucket, c.nativeKey(kc), miniogo.PutObjectOptions{UserMetadata: kc.MetaHeaders})
	if err != nil {
		return "", apperrors.Internal(TypeAWS, err)
	}
	return uploadID, nil
}

func (c *AWSClient) UploadPart(kc KeyContext, uploadID string, partNumber int, stream io.Reader, size int64, reqID string) (PartInfo, error) {
	part, err := c.client.PutObjectPart(context.Background(), c.bucket, c.nativeKey(kc), uploadID, partNumber, stream, size, "", "", nil)
	if err != nil {
		return PartInfo{}, apperrors.Internal(TypeAWS, err)
	}
	return PartInfo{PartNumber: part.PartNumber, ETag: part.ETag, Size: part.Size}, nil
}

func (c *AWSClient) ListParts(kc KeyContext, uploadID string, partNumberMarker int, maxParts int, reqID string) ([]PartInfo, error) {
	result, err := c.client.ListObjectParts(context.Background(), c.bucket, c.nativeKey(kc), uploadID, partNumberMarker, maxParts)
	if err != nil {
		return nil, apperrors.Internal(TypeAWS, err)
	}
	parts := make([]PartInfo, 0, len(result.ObjectParts))
	for _, p := range result.ObjectParts {
		parts = append(parts, PartInfo{PartNumber: p.PartNumber, ETag: p.ETag, Size: p.Size})
	}
	return parts, nil
}

func (c *AWSClient) CompleteMPU(kc KeyContext, uploadID string, parts []PartInfo, reqID string) (RetrievalInfo, error) {
	complete := make([]miniogo.CompletePart, 0, len(parts))
	for _, p := range parts {
		complete = append(complete, miniogo.CompletePart{PartNumber: p.PartNumber, ETag: p.ETag})
	}
	key := c.nativeKey(kc)
	etag, err := c.client.CompleteMultipartUpload(context.Background(), c.bucket, key, uploadID, complete, miniogo.PutObjectOptions{})
	if err != nil {
		return RetrievalInfo{}, apperrors.Internal(TypeAWS, err)
	}
	return RetrievalInfo{Key: key, DataStoreName: c.location, DataStoreType: TypeAWS, ETag: fmt.Sprintf("%q", etag)}, nil
}

func (c *AWSClient) AbortMPU(kc KeyContext, uploadID string, reqID string) (bool, error) {
	if err := c.client.AbortMultipartUpload(context.Background(), c.bucket, c.nativeKey(kc), uploadID); err != nil {
		return false, apperrors.Internal(TypeAWS, err)
	}
	return false, nil
}

func (c *AWSClient) ObjectPutTagging(info RetrievalInfo, tagging string, reqID string) error {
	parsed, err := ParseTagging(tagging)
	if err != nil {
		return err
	}
	t, err := miniotags.MapToObjectTags(parsed)
	if err != nil {
		return apperrors.InvalidArgument("malformed tagging: " + err.Error())
	}
	if err := c.client.Client.PutObjectTagging(context.Background(), c.bucket, info.Key, t, miniogo.PutObjectTaggingOptions{}); err != nil {
		return apperrors.Internal(TypeAWS, err)
	}
	return nil
}

func (c *AWSClient) ObjectDeleteTagging(info RetrievalInfo, reqID string) error {
	if err := c.client.Client.RemoveObjectTagging(context.Background(), c.bucket, info.Key, miniogo.RemoveObjectTaggingOptions{}); err != nil {
		return apperrors.Internal(TypeAWS, err)
	}
	return nil
}

// CopyObject only supports same-backend (AWS-to-AWS) copy; cross-backend
// copy is rejected by the gateway before this is ever called, since it
// checks srcLocation against c.location first (spec §4.1 CopyClient:
// "NotImplemented if cross-backend").
func (c *AWSClient) CopyObject(srcInfo RetrievalInfo, srcLocation string, dstKC KeyContext, reqID string) (RetrievalInfo, error) {
	if srcLocation != c.location {
		return RetrievalInfo{}, apperrors.NotImplemented(fmt.Sprintf("cross-backend copyObject: source=%s target=%s", srcLocation, TypeAWS))
	}
	dstKey := c.nativeKey(dstKC)
	src := miniogo.CopySrcOptions{Bucket: c.bucket, Object: srcInfo.Key}
	dst := miniogo.CopyDestOptions{Bucket: c.bucket, Object: dstKey, UserMetadata: dstKC.MetaHeaders, ReplaceMetadata: true}
	ui, err := c.client.Client.CopyObject(context.Background(), dst, src)
	if err != nil {
		return RetrievalInfo{}, apperrors.Internal(TypeAWS, err)
	}
	return RetrievalInfo{Key: dstKey, DataStoreName: c.location, DataStoreType: TypeAWS, ETag: fmt.Sprintf("%q", ui.ETag)}, nil
}

func (c *AWSClient) UploadPartCopy(srcInfo RetrievalInfo, srcLocation string, dstKC KeyContext, uploadID string, partNumber int, rng *ByteRange, reqID string) (PartInfo, error) {
	if srcLocation != c.location {
		return PartInfo{}, apperrors.NotImplemented(fmt.Sprintf("cross-backend uploadPartCopy: source=%s target=%s", srcLocation, TypeAWS))
	}
	startOffset, length := int64(0), int64(-1)
	if rng != nil {
		startOffset, length = rng.First, rng.Last-rng.First+1
	}
	part, err := c.client.CopyObjectPart(context.Background(), c.bucket, srcInfo.Key, c.bucket, c.nativeKey(dstKC), uploadID, partNumber, startOffset, length, nil)
	if err != nil {
		return PartInfo{}, apperrors.Internal(TypeAWS, err)
	}
	return PartInfo{PartNumber: part.PartNumber, ETag: part.ETag}, nil
}

func awsInfoOf(info interface{}) (RetrievalInfo, error) {
	switch v := info.(type) {
	case RetrievalInfo:
		return v, nil
	case string:
		return RetrievalInfo{Key: v}, nil
	default:
		return RetrievalInfo{}, apperrors.InternalMsg("aws_s3 backend: unsupported retrieval info type %T", info)
	}
}
