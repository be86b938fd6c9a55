package datastore

import (
	"time"

	apperrors "github.com/scality/cloudserver/internal/errors"
)

// Precondition carries the four conditional-copy headers a COPY request
// may supply (spec §8 "Conditional-copy truth table").
type Precondition struct {
	IfMatch           []string // parsed from a comma-separated header; "*" matches anything
	IfNoneMatch       []string
	IfModifiedSince   *time.Time
	IfUnmodifiedSince *time.Time
}

// Empty reports whether none of the four conditions were supplied.
func (p Precondition) Empty() bool {
	return len(p.IfMatch) == 0 && len(p.IfNoneMatch) == 0 && p.IfModifiedSince == nil && p.IfUnmodifiedSince == nil
}

func matchesAny(etag string, candidates []string) bool {
	for _, c := range candidates {
		if c == "*" || c == etag {
			return true
		}
	}
	return false
}

// Evaluate applies S3's published precedence rules for the four
// conditional headers against etag/lastModified, returning
// PreconditionFailed when unmet. If-Match and If-Unmodified-Since compose
// with AND; so do If-None-Match and If-Modified-Since — but across the
// two pairs, an If-Match success does not override an If-Modified-Since
// failure, so every supplied header must independently hold.
func Evaluate(p Precondition, etag string, lastModified time.Time) error {
	if len(p.IfMatch) > 0 && !matchesAny(etag, p.IfMatch) {
		return apperrors.PreconditionFailed()
	}
	if p.IfUnmodifiedSince != nil && lastModified.After(*p.IfUnmodifiedSince) {
		return apperrors.PreconditionFailed()
	}
	if len(p.IfNoneMatch) > 0 && matchesAny(etag, p.IfNoneMatch) {
		return apperrors.PreconditionFailed()
	}
	if p.IfModifiedSince != nil && !lastModified.After(*p.IfModifiedSince) {
		return apperrors.PreconditionFailed()
	}
	return nil
}
