// Package resolver implements the Backend Info Resolver (spec §4.3): it
// picks the controlling location constraint for a request from the
// per-object header override, the bucket default, and the process-wide
// default, in that precedence order.
package resolver

import (
	apperrors "github.com/scality/cloudserver/internal/errors"
)

// HeaderOverrideKey is the per-object metadata header that, when present
// and naming a registered location, wins over the bucket default.
const HeaderOverrideKey = "x-amz-meta-scal-location-constraint"

// Registry is the subset of the Location Registry the resolver needs.
type Registry interface {
	Registered(name string) bool
}

// Resolve returns the controlling location constraint for a request,
// given its per-object header override (may be empty), the bucket's
// configured location, and the process-wide default location. An
// override naming an unregistered location fails resolution rather than
// silently falling back — a misconfigured client should see the error
// immediately (spec §4.3).
func Resolve(reg Registry, headerOverride, bucketLocation, defaultLocation string) (string, error) {
	if headerOverride != "" {
		if !reg.Registered(headerOverride) {
			return "", apperrors.InvalidArgument("location constraint in header is not configured: " + headerOverride)
		}
		return headerOverride, nil
	}
	if bucketLocation != "" {
		if !reg.Registered(bucketLocation) {
			return "", apperrors.InvalidArgument("bucket location constraint is not configured: " + bucketLocation)
		}
		return bucketLocation, nil
	}
	if defaultLocation == "" {
		return "", apperrors.InvalidArgument("no location constraint configured for bucket or default")
	}
	if !reg.Registered(defaultLocation) {
		return "", apperrors.InvalidArgument("default location constraint is not configured: " + defaultLocation)
	}
	return defaultLocation, nil
}
