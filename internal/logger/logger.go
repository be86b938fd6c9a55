// Package logger provides the structured logging surface shared by every
// component of the data gateway: a logrus-backed console target annotated
// with the request info (bucket, object, remote host, request id) carried
// on the context.
package logger

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

var log = newConsoleLogger()

func newConsoleLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return l
}

// SetJSONOutput switches the console target to JSON lines, used by
// deployments that ship logs to a collector instead of a terminal.
func SetJSONOutput(on bool) {
	if on {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func fieldsFor(ctx context.Context, extra ...KeyVal) logrus.Fields {
	f := logrus.Fields{}
	ri := GetReqInfo(ctx)
	ri.RLock()
	if ri.RequestID != "" {
		f["requestID"] = ri.RequestID
	}
	if ri.RemoteHost != "" {
		f["remoteHost"] = ri.RemoteHost
	}
	if ri.API != "" {
		f["api"] = ri.API
	}
	if ri.BucketName != "" {
		f["bucket"] = ri.BucketName
	}
	if ri.ObjectName != "" {
		f["object"] = ri.ObjectName
	}
	if ri.LocationName != "" {
		f["location"] = ri.LocationName
	}
	ri.RUnlock()
	for _, kv := range ri.GetTags() {
		f[kv.Key] = kv.Val
	}
	for _, kv := range extra {
		f[kv.Key] = kv.Val
	}
	return f
}

// LogIf logs err at error level with the request's context attached, and
// is a no-op on a nil error. It never panics and never swallows the error
// — callers still propagate err through their own return value.
func LogIf(ctx context.Context, err error, extra ...KeyVal) {
	if err == nil {
		return
	}
	log.WithFields(fieldsFor(ctx, extra...)).Error(err)
}

// Info logs an informational line with the request's context attached.
func Info(ctx context.Context, msg string, extra ...KeyVal) {
	log.WithFields(fieldsFor(ctx, extra...)).Info(msg)
}

// Error logs msg at error level without requiring an error value, for
// cases where the failure has no single Go error (e.g. aggregate
// healthcheck partial failures).
func Error(ctx context.Context, msg string, extra ...KeyVal) {
	log.WithFields(fieldsFor(ctx, extra...)).Error(msg)
}
