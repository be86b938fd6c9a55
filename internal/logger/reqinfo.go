package logger

import (
	"context"
	"sync"
)

type contextKeyType string

const contextLogKey = contextKeyType("cloudserverlog")

// KeyVal is an extra tag attached to a log line.
type KeyVal struct {
	Key string
	Val string
}

// ReqInfo stores the request info used to annotate log lines. Reading or
// writing the struct directly requires holding the embedded lock.
type ReqInfo struct {
	sync.RWMutex
	RemoteHost    string // client host/IP
	RequestID     string // X-Amz-Request-Id equivalent
	API           string // S3 API name, e.g. "PutObject"
	BucketName    string
	ObjectName    string
	VersionID     string
	LocationName  string // controlling location constraint, once resolved
	tags          []KeyVal
}

// NewReqInfo returns a fresh, empty ReqInfo.
func NewReqInfo(remoteHost, requestID, api, bucket, object string) *ReqInfo {
	return &ReqInfo{
		RemoteHost: remoteHost,
		RequestID:  requestID,
		API:        api,
		BucketName: bucket,
		ObjectName: object,
	}
}

// AppendTags adds a key/value tag to the request info, returning the
// receiver for chaining.
func (r *ReqInfo) AppendTags(key, val string) *ReqInfo {
	if r == nil {
		return nil
	}
	r.Lock()
	defer r.Unlock()
	r.tags = append(r.tags, KeyVal{key, val})
	return r
}

// GetTags returns a copy of the tags currently attached.
func (r *ReqInfo) GetTags() []KeyVal {
	if r == nil {
		return nil
	}
	r.RLock()
	defer r.RUnlock()
	tags := make([]KeyVal, len(r.tags))
	copy(tags, r.tags)
	return tags
}

// SetReqInfo sets the request info on the context, replacing any existing
// one. Returns a new context; does not mutate ctx in place.
func SetReqInfo(ctx context.Context, req *ReqInfo) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, contextLogKey, req)
}

// GetReqInfo extracts the request info from ctx, or a zero-value empty one
// if none was set — never returns nil so callers can tag unconditionally.
func GetReqInfo(ctx context.Context) *ReqInfo {
	if ctx == nil {
		return &ReqInfo{}
	}
	if r, ok := ctx.Value(contextLogKey).(*ReqInfo); ok {
		return r
	}
	return &ReqInfo{}
}
