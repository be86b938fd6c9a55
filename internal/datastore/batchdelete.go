package datastore

import (
	"context"
	"sync"

	"github.com/scality/cloudserver/internal/backend"
	apperrors "github.com/scality/cloudserver/internal/errors"
)

const (
	batchDeleteConcurrency = 5
	// maxBatchDeleteEntries is the multi-object delete limit (spec §6
	// "Multi-object delete limit"): a request naming more keys than this
	// fails with MalformedXML before any deletion is attempted.
	maxBatchDeleteEntries = 1000
)

// DeletedObject reports one successfully deleted entry of a batch.
type DeletedObject struct {
	Key       string
	VersionID string
}

// DeletedError reports one entry of a batch that failed to delete.
type DeletedError struct {
	Key       string
	VersionID string
	Code      string
	Message   string
}

// BatchDeleteEntry is one record slated for removal, carrying enough of
// the triggering request's shape to evaluate the overwrite-skip policy.
type BatchDeleteEntry struct {
	Key       string
	VersionID string
	Info      backend.RetrievalInfo

	// RequestMethod is the HTTP method of the operation that is causing
	// this delete (PUT when an overwrite is replacing this record, DELETE
	// otherwise).
	RequestMethod string
	// NewLocationName and NewBackendType describe the PUT's destination,
	// used only when RequestMethod == "PUT".
	NewLocationName string
	NewBackendType  string
}

// BatchDeleteOptions carries the request-level flags alongside the entry
// list; kept separate from BatchDeleteEntry since Quiet applies to the
// whole request, not any one entry.
type BatchDeleteOptions struct {
	// Quiet suppresses populating Deleted on success (spec §8 invariant
	// 5: "Quiet=true ⇒ |Deleted|==0 ∧ |Errors|==0"); failed entries still
	// populate Errors regardless of Quiet.
	Quiet bool
}

// BatchDeleteResult mirrors the S3 multi-delete response shape (spec §5
// "Multi-object batch delete outcome reporting").
type BatchDeleteResult struct {
	Deleted []DeletedObject
	Errors  []DeletedError
}

// skipOverwrite applies the overwrite-skip policy (spec §4.5 "Batch
// delete"): a PUT that rewrites the same external backend type, at the
// same destination location as the record being deleted, must not have
// its just-written object clobbered by a delete of the old record —
// external backends already overwrite in place. Internal backends
// (mem/file) never skip: proceed to delete regardless of match.
func skipOverwrite(e BatchDeleteEntry) bool {
	if e.RequestMethod != "PUT" {
		return false
	}
	if !backend.IsExternal(e.Info.DataStoreType) {
		return false
	}
	return e.NewBackendType == e.Info.DataStoreType && e.NewLocationName == e.Info.DataStoreName
}

// BatchDelete removes every entry not skipped by the overwrite-skip
// policy, bounded to batchDeleteConcurrency in-flight deletes (spec §4.5,
// §7 "stream::buffer_unordered(5)"). A request naming more than
// maxBatchDeleteEntries entries fails with MalformedXML before any
// deletion is attempted (spec §6, §8 invariant 7).
func (s *Store) BatchDelete(ctx context.Context, entries []BatchDeleteEntry, opts BatchDeleteOptions, reqID string) (BatchDeleteResult, error) {
	if len(entries) > maxBatchDeleteEntries {
		return BatchDeleteResult{}, apperrors.MalformedXML("multi-object delete request named more than 1000 keys")
	}

	var (
		mu     sync.Mutex
		result BatchDeleteResult
		wg     sync.WaitGroup
	)
	sem := make(chan struct{}, batchDeleteConcurrency)

	for _, e := range entries {
		if skipOverwrite(e) {
			if !opts.Quiet {
				mu.Lock()
				result.Deleted = append(result.Deleted, DeletedObject{Key: e.Key, VersionID: e.VersionID})
				mu.Unlock()
			}
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(e BatchDeleteEntry) {
			defer wg.Done()
			defer func() { <-sem }()

			err := s.Delete(ctx, e.Info, reqID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				code, msg := "InternalError", err.Error()
				if ce, ok := err.(interface{ Code() string }); ok {
					code = ce.Code()
				}
				result.Errors = append(result.Errors, DeletedError{Key: e.Key, VersionID: e.VersionID, Code: code, Message: msg})
				return
			}
			if !opts.Quiet {
				result.Deleted = append(result.Deleted, DeletedObject{Key: e.Key, VersionID: e.VersionID})
			}
		}(e)
	}

	wg.Wait()
	return result, nil
}
