// Package bucketdelete implements the Bucket Deletion Coordinator (spec
// §4.7): a sequential five-stage pipeline, plus the invisible-delete
// sweeper variant that resumes a bucket left marked deleted by a crash
// between stages 4 and 5.
package bucketdelete

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	apperrors "github.com/scality/cloudserver/internal/errors"
	"github.com/scality/cloudserver/internal/logger"
	"github.com/scality/cloudserver/internal/metadata"
)

// Coordinator drives the pipeline against a metadata Store and, when a
// bucket had server-side encryption enabled, a KMS client to destroy its
// master key at stage 5.
type Coordinator struct {
	meta metadata.Store
	kms  metadata.KMSClient
}

// New builds a Coordinator.
func New(meta metadata.Store, kms metadata.KMSClient) *Coordinator {
	return &Coordinator{meta: meta, kms: kms}
}

// Delete runs the full five-stage pipeline against bucket, owned by
// owner.
func (c *Coordinator) Delete(ctx context.Context, bucket, owner string) error {
	start := time.Now()
	info, err := c.meta.GetBucket(ctx, bucket)
	if err != nil {
		return err
	}

	if err := c.checkEmpty(ctx, bucket); err != nil {
		return err
	}
	if err := c.checkNoInFlightMPU(ctx, bucket); err != nil {
		return err
	}
	if err := c.mark(ctx, info); err != nil {
		return err
	}
	if err := c.detach(ctx, owner, bucket); err != nil {
		return err
	}
	if err := c.finalise(ctx, info); err != nil {
		return err
	}
	logger.Info(ctx, "bucket deletion pipeline completed "+humanize.Time(start),
		logger.KeyVal{Key: "bucket", Val: bucket})
	return nil
}

// checkEmpty lists at most one version or delete-marker; any hit fails
// with BucketNotEmpty (spec §4.7 stage 1).
func (c *Coordinator) checkEmpty(ctx context.Context, bucket string) error {
	versions, err := c.meta.ListObjectVersions(ctx, bucket, 1)
	if err != nil {
		return err
	}
	if len(versions) > 0 {
		return apperrors.BucketNotEmpty(bucket)
	}
	return nil
}

// checkNoInFlightMPU lists the shadow MPU bucket's overview prefix; any
// hit fails with MPUInProgress, deliberately distinct from
// BucketNotEmpty (spec §4.7 stage 2).
func (c *Coordinator) checkNoInFlightMPU(ctx context.Context, bucket string) error {
	uploads, err := c.meta.ListMPUOverview(ctx, bucket, 1)
	if err != nil {
		return err
	}
	if len(uploads) > 0 {
		return apperrors.MPUInProgress(bucket)
	}
	return nil
}

// mark clears any transient flag and sets deleted, persisting the change
// (spec §4.7 stage 3).
func (c *Coordinator) mark(ctx context.Context, info metadata.BucketInfo) error {
	info.Transient = false
	info.Deleted = true
	return c.meta.PutBucket(ctx, info)
}

// detach removes the bucket from the owner's user-bucket index, in
// either the current or a legacy layout; "not found" in either is not an
// error (spec §4.7 stage 4).
func (c *Coordinator) detach(ctx context.Context, owner, bucket string) error {
	if err := c.meta.RemoveFromUserBucketIndex(ctx, owner, bucket); err != nil && !apperrors.Is(err, "NoSuchBucket") {
		return err
	}
	return nil
}

// finalise deletes the bucket metadata and, if the bucket had AES-256
// SSE enabled, destroys its KMS master key (spec §4.7 stage 5).
func (c *Coordinator) finalise(ctx context.Context, info metadata.BucketInfo) error {
	if err := c.meta.DeleteBucket(ctx, info.Name); err != nil {
		return err
	}
	if info.ServerSideEncAES && c.kms != nil {
		if err := c.kms.DestroyMasterKey(ctx, info.KMSMasterKeyID); err != nil {
			logger.LogIf(ctx, err, logger.KeyVal{Key: "reason", Val: "KMS master key destroy failed after bucket delete"})
		}
	}
	return nil
}

// InvisibleDelete replays stages 4-5 only, for a bucket a sweeper found
// already marked deleted but never finalised (spec §4.7 "invisible-delete
// variant"). Every "not found" along the way is tolerated, not an error.
func (c *Coordinator) InvisibleDelete(ctx context.Context, bucket, owner string) error {
	info, err := c.meta.GetBucket(ctx, bucket)
	if err != nil {
		if apperrors.Is(err, "NoSuchBucket") {
			return nil
		}
		return err
	}
	if !info.Deleted {
		return apperrors.InvalidBucketState("bucket is not marked deleted: " + bucket)
	}

	if err := c.detach(ctx, owner, bucket); err != nil {
		logger.LogIf(ctx, err, logger.KeyVal{Key: "reason", Val: "invisible delete: detach failed"})
		return err
	}
	if err := c.finalise(ctx, info); err != nil {
		logger.LogIf(ctx, err, logger.KeyVal{Key: "reason", Val: "invisible delete: finalise failed"})
		return err
	}
	return nil
}
