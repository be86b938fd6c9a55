// Package backend defines the one-per-backend-type Client contract (spec
// §4.1) and its six concrete variants: in-memory, local file, the
// "scality" native-protocol proxy, AWS S3, Azure block blob, and GCP.
package backend

import "io"

// Backend type tags, stored in every RetrievalInfo so the gateway knows
// which client wrote a given object.
const (
	TypeMem     = "mem"
	TypeFile    = "file"
	TypeScality = "scality"
	TypeAWS     = "aws_s3"
	TypeAzure   = "azure"
	TypeGCP     = "gcp"
	TypeCDMI    = "cdmi"
	TypeLegacy  = "legacy"
)

// IsExternal reports whether backendType names a remote, already-durable
// store (scality, AWS S3, Azure, GCP, CDMI) as opposed to the mem/file/
// legacy variants that only model local process state. The batch-delete
// overwrite-skip policy applies only to external backends (spec §8
// "proceed... for internal backends").
func IsExternal(backendType string) bool {
	switch backendType {
	case TypeScality, TypeAWS, TypeAzure, TypeGCP, TypeCDMI:
		return true
	default:
		return false
	}
}

// CipherBundle carries server-side-encryption material through a PUT. It
// is optional: a nil *CipherBundle means the object is stored in the
// clear at the data-backend level (encryption may still happen upstream).
type CipherBundle struct {
	CipheredDataKey []byte
	CryptoScheme    int
	MasterKeyID     string
}

// KeyContext is everything a Put needs about the object being written,
// independent of which backend ends up serving the write.
type KeyContext struct {
	BucketName  string
	ObjectKey   string
	MetaHeaders map[string]string // x-amz-meta-* with the prefix stripped
	Tagging     string            // query-string encoded k=v&k2=v2
	Cipher      *CipherBundle
}

// ByteRange is an inclusive [First, Last] byte range for a partial GET.
type ByteRange struct {
	First, Last int64
}

// RetrievalInfo is the opaque record a successful Put returns and a
// subsequent Get/Delete consumes (spec §3 "Data retrieval info").
type RetrievalInfo struct {
	Key                string
	DataStoreName      string // location constraint name
	DataStoreType      string // one of the Type* constants
	ETag               string
	DataStoreVersionID string
	DataStoreETag      string

	CipheredDataKey []byte
	CryptoScheme    int
	MasterKeyID     string
}

// PutResult is what a backend Client hands back from Put.
type PutResult struct {
	Key  string
	ETag string
}

// HealthResult is the per-location healthcheck outcome; never an error
// return, so aggregation never needs to recover from a panic-shaped
// failure (spec §4.1: "never throws; errors returned in-band").
type HealthResult struct {
	Message string
	Err     error
}

// PartInfo describes one uploaded MPU part.
type PartInfo struct {
	PartNumber int
	ETag       string
	Size       int64
}

// Capabilities reports which optional operation groups a Client variant
// implements, detected by the gateway via a feature flag on the variant
// rather than by probing for nil method pointers.
type Capabilities struct {
	Multipart bool
	Tagging   bool
	Copy      bool
}

// Client is the capability set every backend variant implements (spec
// §4.1). Get/Delete accept `interface{}` because the scality variant's
// native GET path takes a bare key string instead of a RetrievalInfo
// record — the gateway is responsible for picking the right shape per
// backend type (spec §4.4).
type Client interface {
	Type() string
	Capabilities() Capabilities

	Put(stream io.Reader, size int64, kc KeyContext, reqID string) (PutResult, error)
	Get(info interface{}, rng *ByteRange, reqID string) (io.ReadCloser, error)
	Delete(info interface{}, reqID string) error
	CheckHealth() HealthResult
}

// MultipartClient is implemented by variants whose Capabilities().Multipart
// is true.
type MultipartClient interface {
	CreateMPU(kc KeyContext, reqID string) (uploadID string, err error)
	UploadPart(kc KeyContext, uploadID string, partNumber int, stream io.Reader, size int64, reqID string) (PartInfo, error)
	ListParts(kc KeyContext, uploadID string, partNumberMarker int, maxParts int, reqID string) ([]PartInfo, error)
	CompleteMPU(kc KeyContext, uploadID string, parts []PartInfo, reqID string) (RetrievalInfo, error)
	// AbortMPU's second return value, skipDataDelete, is Azure-specific
	// (spec §4.4: aborting a block-blob MPU is a data-layer no-op, so the
	// caller must not issue a follow-up data delete). Every other variant
	// always returns false there.
	AbortMPU(kc KeyContext, uploadID string, reqID string) (skipDataDelete bool, err error)
}

// TaggingClient is implemented by variants whose Capabilities().Tagging is
// true.
type TaggingClient interface {
	ObjectPutTagging(info RetrievalInfo, tagging string, reqID string) error
	ObjectDeleteTagging(info RetrievalInfo, reqID string) error
}

// CopyClient is implemented by variants whose Capabilities().Copy is true.
type CopyClient interface {
	CopyObject(srcInfo RetrievalInfo, srcLocation string, dstKC KeyContext, reqID string) (RetrievalInfo, error)
	UploadPartCopy(srcInfo RetrievalInfo, srcLocation string, dstKC KeyContext, uploadID string, partNumber int, rng *ByteRange, reqID string) (PartInfo, error)
}
