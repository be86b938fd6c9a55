// Package metadata defines the narrow collaborator interfaces the data
// gateway depends on but does not implement: the metadata key-value
// store, the KMS cipher subsystem, and the IAM replication-principal
// check (spec §1 "Out of scope... invoked through narrow interfaces").
package metadata

import (
	"context"
	"io"
)

// VersionState mirrors spec §3's three bucket versioning states.
type VersionState int

const (
	VersioningUnversioned VersionState = iota
	VersioningEnabled
	VersioningSuspended
)

// BucketInfo is the subset of bucket metadata the data gateway consults.
type BucketInfo struct {
	Name              string
	Owner             string
	LocationName      string // bucket-default location constraint
	Versioning        VersionState
	ServerSideEncAES  bool
	KMSMasterKeyID    string
	Deleted           bool
	Transient         bool
}

// ObjectMD is the subset of per-object metadata the data gateway consults
// or mutates. It intentionally omits ACL/ownership fields that belong to
// the out-of-scope policy/ACL serializer.
type ObjectMD struct {
	Bucket             string
	Key                string
	VersionID          string
	IsDeleteMarker     bool
	IsReplica          bool
	ReplicationStatus  string
	UserMetadata       map[string]string // x-amz-meta-* with prefix kept, as stored
	ContentEncoding    string
	LocationConstraint string // controlling location, as stamped at PUT time
	Location           interface{} // opaque backend.RetrievalInfo, stored as-is
}

// Store is the metadata key-value service collaborator: list/get/put/
// delete plus the separate "users bucket" owner index.
type Store interface {
	GetBucket(ctx context.Context, bucket string) (BucketInfo, error)
	PutBucket(ctx context.Context, info BucketInfo) error
	DeleteBucket(ctx context.Context, bucket string) error

	GetObject(ctx context.Context, bucket, key, versionID string) (ObjectMD, error)
	PutObject(ctx context.Context, md ObjectMD) error
	DeleteObject(ctx context.Context, bucket, key, versionID string) error

	// ListObjectVersions lists at most maxKeys versions (including delete
	// markers) under bucket, used by the bucket-deletion emptiness check.
	ListObjectVersions(ctx context.Context, bucket string, maxKeys int) ([]ObjectMD, error)

	// ListMPUOverview lists at most maxKeys in-flight multipart uploads
	// from the bucket's shadow MPU bucket `overview` prefix.
	ListMPUOverview(ctx context.Context, bucket string, maxKeys int) ([]string, error)

	// RemoveFromUserBucketIndex detaches bucket from owner's index,
	// tolerating both the current and a legacy index layout. Not-found in
	// either is not an error.
	RemoveFromUserBucketIndex(ctx context.Context, owner, bucket string) error
}

// KMSClient is the cipher subsystem collaborator.
type KMSClient interface {
	// NewDecipher returns a decipher stream transform for the
	// given master key / ciphered data key, seeded so a CTR-mode
	// keystream can be aligned to rangeStart.
	NewDecipher(ctx context.Context, masterKeyID string, cipheredDataKey []byte, cryptoScheme int, rangeStart int64) (Decipher, error)
	DestroyMasterKey(ctx context.Context, masterKeyID string) error
}

// Decipher wraps a reader, decrypting as the caller reads.
type Decipher interface {
	Wrap(src io.Reader) io.Reader
}

// AuthPrincipal is the vault/IAM collaborator's replication check.
type AuthPrincipal interface {
	CanReplicate(ctx context.Context, canonicalID string) bool
}

// MPUTracker is an optional capability a Store implementation may offer
// to keep ListMPUOverview's shadow-bucket view in sync as uploads are
// initiated and completed/aborted. Callers type-assert for it rather than
// requiring every Store to implement it, since a real metadata service
// backs ListMPUOverview with its own shadow-bucket storage and has no use
// for this bookkeeping.
type MPUTracker interface {
	RegisterMPU(bucket, uploadID string)
	ResolveMPU(bucket, uploadID string)
}
