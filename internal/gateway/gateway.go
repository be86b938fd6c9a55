// Package gateway implements the Multi-Backend Gateway (spec §4.4): the
// uniform façade over every registered backend.Client, used whenever the
// Data Wrapper is configured with more than one backend.
package gateway

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/scality/cloudserver/internal/backend"
	apperrors "github.com/scality/cloudserver/internal/errors"
	"github.com/scality/cloudserver/internal/location"
	"github.com/scality/cloudserver/internal/logger"
)

// Gateway dispatches every operation to the backend.Client registered
// under the request's controlling location constraint.
type Gateway struct {
	reg *location.Registry
}

// New wraps a Location Registry in a Gateway façade.
func New(reg *location.Registry) *Gateway {
	return &Gateway{reg: reg}
}

func (g *Gateway) clientFor(ctx context.Context, locationName string) (backend.Client, error) {
	c, err := g.reg.Client(locationName)
	if err != nil {
		logger.LogIf(ctx, err, logger.KeyVal{Key: "reason", Val: "no data backend matching controlling locationConstraint"})
		return nil, apperrors.InternalMsg("no data backend matching controlling locationConstraint %q", locationName)
	}
	return c, nil
}

// Put validates tagging locally before calling the client, per spec
// §4.4's "Tag validation on PUT".
func (g *Gateway) Put(ctx context.Context, locationName string, stream io.Reader, size int64, kc backend.KeyContext, reqID string) (backend.PutResult, error) {
	if kc.Tagging != "" {
		if _, err := backend.ParseTagging(kc.Tagging); err != nil {
			return backend.PutResult{}, err
		}
	}
	c, err := g.clientFor(ctx, locationName)
	if err != nil {
		return backend.PutResult{}, err
	}
	res, err := c.Put(stream, size, kc, reqID)
	if err != nil {
		return backend.PutResult{}, err
	}
	return res, nil
}

// Get dispatches a GET. info may be a bare string (pre-dataStoreName
// record, or the scality-native shape) or a backend.RetrievalInfo; the
// backwards-compatible rule is: bare string ⇒ legacy client with the
// string as key, otherwise clients[info.DataStoreName] (spec §4.4).
func (g *Gateway) Get(ctx context.Context, info interface{}, rng *backend.ByteRange, reqID string) (io.ReadCloser, error) {
	c, nativeInfo, err := g.dispatchTarget(ctx, info)
	if err != nil {
		return nil, err
	}
	return c.Get(nativeInfo, rng, reqID)
}

// Delete dispatches a DELETE using the same backwards-compatible rule as
// Get.
func (g *Gateway) Delete(ctx context.Context, info interface{}, reqID string) error {
	c, nativeInfo, err := g.dispatchTarget(ctx, info)
	if err != nil {
		return err
	}
	return c.Delete(nativeInfo, reqID)
}

// dispatchTarget resolves which client owns info and what shape to pass
// it: a bare string always goes to the legacy client; a RetrievalInfo
// goes to clients[DataStoreName], passed through unless the client is
// scality, which always wants the bare key (spec §4.1, §4.4).
func (g *Gateway) dispatchTarget(ctx context.Context, info interface{}) (backend.Client, interface{}, error) {
	switch v := info.(type) {
	case string:
		c, err := g.clientFor(ctx, backend.TypeLegacy)
		if err != nil {
			return nil, nil, err
		}
		return c, v, nil
	case backend.RetrievalInfo:
		c, err := g.clientFor(ctx, v.DataStoreName)
		if err != nil {
			return nil, nil, err
		}
		if c.Type() == backend.TypeScality {
			return c, v.Key, nil
		}
		return c, v, nil
	default:
		return nil, nil, apperrors.InternalMsg("gateway: unsupported retrieval info type %T", info)
	}
}

// CheckHealth runs the aggregated healthcheck (spec §4.4.1): every
// scality location is probed directly; mem/file/other backends report a
// synthesized OK; for aws_s3 and azure, ONE random location per type is
// probed and its result recorded under that location's name only.
func (g *Gateway) CheckHealth(ctx context.Context) map[string]backend.HealthResult {
	start := time.Now()
	all := g.reg.All()

	var scalityNames, awsNames, azureNames []string
	results := make(map[string]backend.HealthResult, len(all))

	for name, c := range all {
		switch c.Type() {
		case backend.TypeScality:
			scalityNames = append(scalityNames, name)
		case backend.TypeAWS:
			awsNames = append(awsNames, name)
		case backend.TypeAzure:
			azureNames = append(azureNames, name)
		default:
			results[name] = backend.HealthResult{Message: "OK"}
		}
	}

	for _, name := range scalityNames {
		results[name] = all[name].CheckHealth()
	}
	if len(awsNames) > 0 {
		probe := awsNames[rand.Intn(len(awsNames))]
		results[probe] = all[probe].CheckHealth()
	}
	if len(azureNames) > 0 {
		probe := azureNames[rand.Intn(len(azureNames))]
		results[probe] = all[probe].CheckHealth()
	}
	logger.Info(ctx, fmt.Sprintf("aggregated healthcheck probed %d locations, started %s", len(results), humanize.Time(start)))
	return results
}

// CheckLocation probes exactly one location directly, bypassing the
// random sampling CheckHealth does for cloud backends — for callers that
// need a per-location liveness guarantee (spec §9 open question, and the
// supplemental feature in SPEC_FULL.md §5).
func (g *Gateway) CheckLocation(ctx context.Context, locationName string) (backend.HealthResult, error) {
	c, err := g.clientFor(ctx, locationName)
	if err != nil {
		return backend.HealthResult{}, err
	}
	return c.CheckHealth(), nil
}

func capabilityError(op, sourceType, targetType string) error {
	return apperrors.NotImplemented(fmt.Sprintf("%s between %s and %s", op, sourceType, targetType))
}

// CreateMPU dispatches NewMultipartUpload, rejecting with NotImplemented
// when the controlling location's backend has no MPU support.
func (g *Gateway) CreateMPU(ctx context.Context, locationName string, kc backend.KeyContext, reqID string) (string, error) {
	c, err := g.clientFor(ctx, locationName)
	if err != nil {
		return "", err
	}
	mpu, ok := c.(backend.MultipartClient)
	if !ok || !c.Capabilities().Multipart {
		return "", capabilityError("initiateMPU", "request", c.Type())
	}
	return mpu.CreateMPU(kc, reqID)
}

// UploadPart dispatches PutObjectPart.
func (g *Gateway) UploadPart(ctx context.Context, locationName string, kc backend.KeyContext, uploadID string, partNumber int, stream io.Reader, size int64, reqID string) (backend.PartInfo, error) {
	c, err := g.clientFor(ctx, locationName)
	if err != nil {
		return backend.PartInfo{}, err
	}
	mpu, ok := c.(backend.MultipartClient)
	if !ok || !c.Capabilities().Multipart {
		return backend.PartInfo{}, capabilityError("uploadPart", "request", c.Type())
	}
	return mpu.UploadPart(kc, uploadID, partNumber, stream, size, reqID)
}

// ListParts dispatches ListObjectParts.
func (g *Gateway) ListParts(ctx context.Context, locationName string, kc backend.KeyContext, uploadID string, partNumberMarker, maxParts int, reqID string) ([]backend.PartInfo, error) {
	c, err := g.clientFor(ctx, locationName)
	if err != nil {
		return nil, err
	}
	mpu, ok := c.(backend.MultipartClient)
	if !ok || !c.Capabilities().Multipart {
		return nil, capabilityError("listParts", "request", c.Type())
	}
	return mpu.ListParts(kc, uploadID, partNumberMarker, maxParts, reqID)
}

// CompleteMPU dispatches CompleteMultipartUpload.
func (g *Gateway) CompleteMPU(ctx context.Context, locationName string, kc backend.KeyContext, uploadID string, parts []backend.PartInfo, reqID string) (backend.RetrievalInfo, error) {
	c, err := g.clientFor(ctx, locationName)
	if err != nil {
		return backend.RetrievalInfo{}, err
	}
	mpu, ok := c.(backend.MultipartClient)
	if !ok || !c.Capabilities().Multipart {
		return backend.RetrievalInfo{}, capabilityError("completeMPU", "request", c.Type())
	}
	return mpu.CompleteMPU(kc, uploadID, parts, reqID)
}

// AbortMPU dispatches AbortMultipartUpload. The skipDataDelete return
// tells the caller whether a follow-up data delete would be redundant —
// true only for Azure, whose abort never wrote visible data in the first
// place (spec §4.4, §9).
func (g *Gateway) AbortMPU(ctx context.Context, locationName string, kc backend.KeyContext, uploadID string, reqID string) (skipDataDelete bool, err error) {
	c, err := g.clientFor(ctx, locationName)
	if err != nil {
		return false, err
	}
	mpu, ok := c.(backend.MultipartClient)
	if !ok || !c.Capabilities().Multipart {
		return false, capabilityError("abortMPU", "request", c.Type())
	}
	skip, err := mpu.AbortMPU(kc, uploadID, reqID)
	if err != nil {
		return false, err
	}
	return skip || c.Type() == backend.TypeAzure, nil
}

// ObjectPutTagging dispatches a tagging write, falling back to nothing
// special: every variant that sets Capabilities().Tagging implements
// backend.TaggingClient.
func (g *Gateway) ObjectPutTagging(ctx context.Context, info backend.RetrievalInfo, tagging string, reqID string) error {
	c, err := g.clientFor(ctx, info.DataStoreName)
	if err != nil {
		return err
	}
	tc, ok := c.(backend.TaggingClient)
	if !ok || !c.Capabilities().Tagging {
		return capabilityError("objectPutTagging", "request", c.Type())
	}
	return tc.ObjectPutTagging(info, tagging, reqID)
}

// ObjectDeleteTagging dispatches a tagging delete.
func (g *Gateway) ObjectDeleteTagging(ctx context.Context, info backend.RetrievalInfo, reqID string) error {
	c, err := g.clientFor(ctx, info.DataStoreName)
	if err != nil {
		return err
	}
	tc, ok := c.(backend.TaggingClient)
	if !ok || !c.Capabilities().Tagging {
		return capabilityError("objectDeleteTagging", "request", c.Type())
	}
	return tc.ObjectDeleteTagging(info, reqID)
}

// CopyObject dispatches a copy, rejecting cross-backend copies with
// NotImplemented (spec §4.1 CopyClient contract) naming both backend
// types so the caller can tell the operator what happened.
func (g *Gateway) CopyObject(ctx context.Context, srcInfo backend.RetrievalInfo, dstLocation string, dstKC backend.KeyContext, reqID string) (backend.RetrievalInfo, error) {
	c, err := g.clientFor(ctx, dstLocation)
	if err != nil {
		return backend.RetrievalInfo{}, err
	}
	cc, ok := c.(backend.CopyClient)
	if !ok || !c.Capabilities().Copy {
		return backend.RetrievalInfo{}, capabilityError("copyObject", srcInfo.DataStoreType, c.Type())
	}
	if srcInfo.DataStoreName != dstLocation {
		return backend.RetrievalInfo{}, capabilityError("cross-backend copyObject", srcInfo.DataStoreType, c.Type())
	}
	return cc.CopyObject(srcInfo, srcInfo.DataStoreName, dstKC, reqID)
}

// UploadPartCopy dispatches a copy-part.
func (g *Gateway) UploadPartCopy(ctx context.Context, srcInfo backend.RetrievalInfo, dstLocation string, dstKC backend.KeyContext, uploadID string, partNumber int, rng *backend.ByteRange, reqID string) (backend.PartInfo, error) {
	c, err := g.clientFor(ctx, dstLocation)
	if err != nil {
		return backend.PartInfo{}, err
	}
	cc, ok := c.(backend.CopyClient)
	if !ok || !c.Capabilities().Copy {
		return backend.PartInfo{}, capabilityError("uploadPartCopy", srcInfo.DataStoreType, c.Type())
	}
	if srcInfo.DataStoreName != dstLocation {
		return backend.PartInfo{}, capabilityError("cross-backend uploadPartCopy", srcInfo.DataStoreType, c.Type())
	}
	return cc.UploadPartCopy(srcInfo, srcInfo.DataStoreName, dstKC, uploadID, partNumber, rng, reqID)
}
