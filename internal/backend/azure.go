package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"

	"github.com/Azure/azure-storage-blob-go/azblob"

	apperrors "github.com/scality/cloudserver/internal/errors"
)

// AzureClient talks to a block-blob container. MPU is emulated by staging
// blocks and committing a block list (spec §4.1): there is no native
// multipart concept in the blob API. AbortMPU is therefore a no-op at the
// data layer — nothing was ever visible until Commit — so its caller must
// not follow up with a data delete (spec §4.4 abort-MPU skip, §9 open
// question: the skipDataDelete flag is Azure-only).
type AzureClient struct {
	containerURL azblob.ContainerURL
	bucketMatch  bool
	location     string
}

// NewAzureClient builds a client against one container, using the
// location-scoped storage account name/key pulled from config or the
// `{location}_AZURE_STORAGE_ACCOUNT_NAME`-style environment override.
func NewAzureClient(accountName, accountKey, container, location string, bucketMatch bool) (*AzureClient, error) {
	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, apperrors.Internal(TypeAzure, err)
	}
	p := azblob.NewPipeline(cred, azblob.PipelineOptions{})
	containerURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net/%s", accountName, container))
	if err != nil {
		return nil, apperrors.Internal(TypeAzure, err)
	}
	u := azblob.NewContainerURL(*containerURL, p)
	return &AzureClient{containerURL: u, bucketMatch: bucketMatch, location: location}, nil
}

func (c *AzureClient) Type() string { return TypeAzure }

func (c *AzureClient) Capabilities() Capabilities {
	return Capabilities{Multipart: true, Tagging: true, Copy: false}
}

func (c *AzureClient) nativeKey(kc KeyContext) string { return nativeKey(kc, c.bucketMatch) }

func (c *AzureClient) blockBlobURL(key string) azblob.BlockBlobURL {
	return c.containerURL.NewBlockBlobURL(key)
}

func (c *AzureClient) Put(stream io.Reader, size int64, kc KeyContext, reqID string) (PutResult, error) {
	key := c.nativeKey(kc)
	data, err := io.ReadAll(stream)
	if err != nil {
		return PutResult{}, apperrors.Internal(TypeAzure, err)
	}
	resp, err := c.blockBlobURL(key).Upload(context.Background(), bytes.NewReader(data), azblob.BlobHTTPHeaders{},
		azblob.Metadata(stripMetaPrefix(kc.MetaHeaders)), azblob.BlobAccessConditions{}, azblob.DefaultAccessTier, nil, azblob.ClientProvidedKeyOptions{}, azblob.ImmutabilityPolicyOptions{})
	if err != nil {
		return PutResult{}, apperrors.Internal(TypeAzure, err)
	}
	return PutResult{Key: key, ETag: string(resp.ETag())}, nil
}

func (c *AzureClient) Get(info interface{}, rng *ByteRange, reqID string) (io.ReadCloser, error) {
	ri, err := azureInfoOf(info)
	if err != nil {
		return nil, err
	}
	count := int64(azblob.CountToEnd)
	offset := int64(0)
	if rng != nil {
		offset = rng.First
		count = rng.Last - rng.First + 1
	}
	resp, err := c.blockBlobURL(ri.Key).Download(context.Background(), offset, count, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return nil, apperrors.Internal(TypeAzure, err)
	}
	return resp.Body(azblob.RetryReaderOptions{}), nil
}

func (c *AzureClient) Delete(info interface{}, reqID string) error {
	ri, err := azureInfoOf(info)
	if err != nil {
		return err
	}
	_, err = c.blockBlobURL(ri.Key).Delete(context.Background(), azblob.DeleteSnapshotsOptionNone, azblob.BlobAccessConditions{})
	if err != nil {
		return apperrors.Internal(TypeAzure, err)
	}
	return nil
}

func (c *AzureClient) CheckHealth() HealthResult {
	if _, err := c.containerURL.GetProperties(context.Background(), azblob.LeaseAccessConditions{}); err != nil {
		return HealthResult{Err: apperrors.Internal(TypeAzure, err)}
	}
	return HealthResult{Message: "OK"}
}

// CreateMPU for Azure is a local bookkeeping operation only: block blobs
// have no server-side upload-id concept, so the id is synthesized and the
// block list is accumulated by the caller across UploadPart calls.
func (c *AzureClient) CreateMPU(kc KeyContext, reqID string) (string, error) {
	return base64.StdEncoding.EncodeToString([]byte(kc.BucketName + "/" + kc.ObjectKey)), nil
}

func (c *AzureClient) UploadPart(kc KeyContext, uploadID string, partNumber int, stream io.Reader, size int64, reqID string) (PartInfo, error) {
	key := c.nativeKey(kc)
	blockID := blockIDFor(partNumber)
	data, err := io.ReadAll(stream)
	if err != nil {
		return PartInfo{}, apperrors.Internal(TypeAzure, err)
	}
	if _, err := c.blockBlobURL(key).StageBlock(context.Background(), blockID, bytes.NewReader(data), azblob.LeaseAccessConditions{}, nil, azblob.ClientProvidedKeyOptions{}); err != nil {
		return PartInfo{}, apperrors.Internal(TypeAzure, err)
	}
	return PartInfo{PartNumber: partNumber, Size: int64(len(data))}, nil
}

func (c *AzureClient) ListParts(kc KeyContext, uploadID string, partNumberMarker int, maxParts int, reqID string) ([]PartInfo, error) {
	key := c.nativeKey(kc)
	list, err := c.blockBlobURL(key).GetBlockList(context.Background(), azblob.BlockListUncommitted, azblob.LeaseAccessConditions{})
	if err != nil {
		return nil, apperrors.Internal(TypeAzure, err)
	}
	parts := make([]PartInfo, 0, len(list.UncommittedBlocks))
	for i, b := range list.UncommittedBlocks {
		if i < partNumberMarker {
			continue
		}
		if len(parts) >= maxParts {
			break
		}
		parts = append(parts, PartInfo{PartNumber: i + 1, Size: b.Size})
	}
	return parts, nil
}

func (c *AzureClient) CompleteMPU(kc KeyContext, uploadID string, parts []PartInfo, reqID string) (RetrievalInfo, error) {
	key := c.nativeKey(kc)
	blockIDs := make([]string, 0, len(parts))
	for _, p := range parts {
		blockIDs = append(blockIDs, blockIDFor(p.PartNumber))
	}
	resp, err := c.blockBlobURL(key).CommitBlockList(context.Background(), blockIDs, azblob.BlobHTTPHeaders{}, azblob.Metadata(stripMetaPrefix(kc.MetaHeaders)), azblob.BlobAccessConditions{}, azblob.DefaultAccessTier, nil, azblob.ClientProvidedKeyOptions{}, azblob.ImmutabilityPolicyOptions{})
	if err != nil {
		return RetrievalInfo{}, apperrors.Internal(TypeAzure, err)
	}
	return RetrievalInfo{Key: key, DataStoreName: c.location, DataStoreType: TypeAzure, ETag: string(resp.ETag())}, nil
}

// AbortMPU never touches data: uncommitted blocks expire on their own
// after roughly a week on the Azure side, so there is nothing to delete
// here, and skipDataDelete is always true for this variant.
func (c *AzureClient) AbortMPU(kc KeyContext, uploadID string, reqID string) (bool, error) {
	return true, nil
}

func (c *AzureClient) ObjectPutTagging(info RetrievalInfo, tagging string, reqID string) error {
	parsed, err := ParseTagging(tagging)
	if err != nil {
		return err
	}
	blob := c.blockBlobURL(info.Key)
	props, err := blob.GetProperties(context.Background(), azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return apperrors.Internal(TypeAzure, err)
	}
	// Blob Index Tags are not exposed by this SDK version; fold tags into
	// blob metadata under a "tag-" prefix the way object metadata already
	// round-trips, same trick GCP needs natively (spec §9). The blob's
	// existing metadata entries are kept alongside the tags.
	meta := azblob.Metadata{}
	for k, v := range props.NewMetadata() {
		meta[k] = v
	}
	for k, v := range parsed {
		meta["tag-"+k] = v
	}
	_, err = blob.SetMetadata(context.Background(), meta, azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return apperrors.Internal(TypeAzure, err)
	}
	return nil
}

func (c *AzureClient) ObjectDeleteTagging(info RetrievalInfo, reqID string) error {
	_, err := c.blockBlobURL(info.Key).SetMetadata(context.Background(), azblob.Metadata{}, azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return apperrors.Internal(TypeAzure, err)
	}
	return nil
}

func blockIDFor(partNumber int) string {
	raw := []byte(fmt.Sprintf("block-%010d", partNumber))
	return base64.StdEncoding.EncodeToString(raw)
}

func azureInfoOf(info interface{}) (RetrievalInfo, error) {
	switch v := info.(type) {
	case RetrievalInfo:
		return v, nil
	case string:
		return RetrievalInfo{Key: v}, nil
	default:
		return RetrievalInfo{}, apperrors.InternalMsg("azure backend: unsupported retrieval info type %T", info)
	}
}
