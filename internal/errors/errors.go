// Package errors defines the stable error taxonomy surfaced to S3 request
// handlers (spec §6/§7): every error the data gateway returns carries a
// fixed Code string an SDK client can branch on, and an HTTP status.
package errors

import "fmt"

// Error is the common shape of every taxonomy error.
type Error interface {
	error
	Code() string
	HTTPStatus() int
}

type codedError struct {
	code    string
	status  int
	message string
}

func (e *codedError) Error() string    { return e.message }
func (e *codedError) Code() string     { return e.code }
func (e *codedError) HTTPStatus() int  { return e.status }

func newf(code string, status int, format string, args ...interface{}) Error {
	return &codedError{code: code, status: status, message: fmt.Sprintf(format, args...)}
}

// Constructors, one per Code string in spec §6.

func NoSuchBucket(bucket string) Error {
	return newf("NoSuchBucket", 404, "the specified bucket does not exist: %s", bucket)
}

func NoSuchKey(bucket, key string) Error {
	return newf("NoSuchKey", 404, "the specified key does not exist: %s/%s", bucket, key)
}

func BucketNotEmpty(bucket string) Error {
	return newf("BucketNotEmpty", 409, "the bucket you tried to delete is not empty: %s", bucket)
}

// MPUInProgress is deliberately distinct from BucketNotEmpty so operators
// can tell "objects remain" apart from "an upload is still in flight".
func MPUInProgress(bucket string) Error {
	return newf("MPUinProgress", 409, "bucket %s has multipart uploads in progress", bucket)
}

func MalformedXML(reason string) Error {
	return newf("MalformedXML", 400, "the XML you provided was not well-formed: %s", reason)
}

func AccessDenied(reason string) Error {
	return newf("AccessDenied", 403, "access denied: %s", reason)
}

func InvalidArgument(reason string) Error {
	return newf("InvalidArgument", 400, "invalid argument: %s", reason)
}

func InvalidRequest(reason string) Error {
	return newf("InvalidRequest", 400, "invalid request: %s", reason)
}

func InvalidRedirectLocation(reason string) Error {
	return newf("InvalidRedirectLocation", 400, "invalid redirect location: %s", reason)
}

func InvalidBucketState(reason string) Error {
	return newf("InvalidBucketState", 409, "invalid bucket state: %s", reason)
}

func PreconditionFailed() Error {
	return newf("PreconditionFailed", 412, "at least one of the preconditions you specified did not hold")
}

func BadDigest() Error {
	return newf("BadDigest", 400, "the Content-MD5 you specified did not match what was received")
}

func NotImplemented(reason string) Error {
	return newf("NotImplemented", 501, "not implemented: %s", reason)
}

func MalformedPOSTRequest(reason string) Error {
	return newf("MalformedPOSTRequest", 400, "malformed POST request: %s", reason)
}

func ObjNotFound(bucket, key string) Error {
	return newf("ObjNotFound", 404, "object not found: %s/%s", bucket, key)
}

// Internal wraps a backend-native error. The cause is interpolated into the
// message for operator visibility but is never itself exposed as a typed
// field callers could branch on — only Code() is stable API.
func Internal(backend string, cause error) Error {
	return newf("InternalError", 500, "internal error talking to backend %q: %v", backend, cause)
}

func InternalMsg(format string, args ...interface{}) Error {
	return newf("InternalError", 500, format, args...)
}

// Is reports whether err carries the given taxonomy code.
func Is(err error, code string) bool {
	e, ok := err.(Error)
	return ok && e.Code() == code
}
