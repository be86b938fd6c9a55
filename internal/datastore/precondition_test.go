package datastore

import (
	"testing"
	"time"

	apperrors "github.com/scality/cloudserver/internal/errors"
)

func TestEvaluate(t *testing.T) {
	etag := `"abc123"`
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name string
		p    Precondition
		ok   bool
	}{
		{"If-Match=etag", Precondition{IfMatch: []string{etag}}, true},
		{"If-Match=*", Precondition{IfMatch: []string{"*"}}, true},
		{"If-Match=bad", Precondition{IfMatch: []string{`"bad"`}}, false},
		{"If-None-Match=bad", Precondition{IfNoneMatch: []string{`"bad"`}}, true},
		{"If-None-Match=etag", Precondition{IfNoneMatch: []string{etag}}, false},
		{"If-Modified-Since=past", Precondition{IfModifiedSince: &past}, true},
		{"If-Modified-Since=equal", Precondition{IfModifiedSince: &now}, false},
		{"If-Unmodified-Since=future", Precondition{IfUnmodifiedSince: &future}, true},
		{"If-Unmodified-Since=equal", Precondition{IfUnmodifiedSince: &now}, true},
		{"If-Unmodified-Since=past", Precondition{IfUnmodifiedSince: &past}, false},
		{"If-Match=etag AND If-Unmodified-Since=future", Precondition{IfMatch: []string{etag}, IfUnmodifiedSince: &future}, true},
		{"If-Match=etag AND If-Unmodified-Since=past", Precondition{IfMatch: []string{etag}, IfUnmodifiedSince: &past}, false},
		{"If-Match=bad AND If-Unmodified-Since=future", Precondition{IfMatch: []string{`"bad"`}, IfUnmodifiedSince: &future}, false},
		{"If-Match=bad AND If-Unmodified-Since=past", Precondition{IfMatch: []string{`"bad"`}, IfUnmodifiedSince: &past}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Evaluate(tc.p, etag, now)
			if tc.ok && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatalf("expected PreconditionFailed, got nil")
				}
				if !apperrors.Is(err, "PreconditionFailed") {
					t.Fatalf("expected PreconditionFailed code, got %v", err)
				}
			}
		})
	}
}

func TestEvaluateEmpty(t *testing.T) {
	if !(Precondition{}).Empty() {
		t.Fatal("expected zero-value Precondition to be Empty")
	}
	now := time.Now()
	if (Precondition{IfModifiedSince: &now}).Empty() {
		t.Fatal("expected non-zero Precondition to not be Empty")
	}
}
