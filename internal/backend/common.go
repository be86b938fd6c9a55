package backend

import (
	"net/url"

	apperrors "github.com/scality/cloudserver/internal/errors"
)

// nativeKey derives the backend-native object identifier from a
// KeyContext per the bucketMatch rule (spec §3 "Backend key derivation"):
// one S3 bucket mapped 1:1 onto the remote bucket uses the object key
// alone; multiple S3 buckets multiplexed onto one remote bucket prefix
// every key with the S3 bucket name. This choice is fixed per location
// and must never be recomputed differently for an existing object.
func nativeKey(kc KeyContext, bucketMatch bool) string {
	if bucketMatch {
		return kc.ObjectKey
	}
	return kc.BucketName + "/" + kc.ObjectKey
}

// ParseTagging parses the query-string-encoded tag set from a PUT/tagging
// request (`k=v&k2=v2`) into a plain map, rejecting malformed input before
// any backend call is made (spec §4.4 "Tag validation"). Exported so the
// gateway façade can reject malformed tagging before it ever picks a
// client.
func ParseTagging(raw string) (map[string]string, error) {
	if raw == "" {
		return map[string]string{}, nil
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, apperrors.InvalidArgument("malformed tagging query: " + err.Error())
	}
	tags := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) != 1 {
			return nil, apperrors.InvalidArgument("duplicate tag key: " + k)
		}
		tags[k] = v[0]
	}
	return tags, nil
}

// StripAWSChunked removes the `aws-chunked` transport artifact from a
// Content-Encoding value on the way out to a GET response (spec §3
// round-trip invariant), e.g. "base64,aws-chunked" -> "base64,": when the
// dropped token was the trailing one and something precedes it, the
// trailing comma survives instead of being swallowed by the rejoin.
// Exported so callers storing or replaying object metadata (e.g. the
// backbeat metadata-replication route) can normalize it before
// persisting.
func StripAWSChunked(contentEncoding string) string {
	if contentEncoding == "" {
		return contentEncoding
	}
	parts := make([]string, 0)
	start := 0
	lastTokenDropped := false
	for i := 0; i <= len(contentEncoding); i++ {
		if i == len(contentEncoding) || contentEncoding[i] == ',' {
			token := contentEncoding[start:i]
			lastTokenDropped = token == "aws-chunked"
			if !lastTokenDropped {
				parts = append(parts, token)
			}
			start = i + 1
		}
	}
	result := ""
	for i, p := range parts {
		if i > 0 {
			result += ","
		}
		result += p
	}
	if lastTokenDropped && result != "" {
		result += ","
	}
	return result
}

// stripMetaPrefix strips the `x-amz-meta-` prefix from S3 user-metadata
// headers to produce the backend-native metadata map (spec §3).
func stripMetaPrefix(headers map[string]string) map[string]string {
	const prefix = "x-amz-meta-"
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			out[k[len(prefix):]] = v
			continue
		}
		out[k] = v
	}
	return out
}
