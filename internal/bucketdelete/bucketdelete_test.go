package bucketdelete

import (
	"context"
	"testing"

	apperrors "github.com/scality/cloudserver/internal/errors"
	"github.com/scality/cloudserver/internal/metadata"
)

type fakeStore struct {
	buckets       map[string]metadata.BucketInfo
	versions      map[string][]metadata.ObjectMD
	mpuOverview   map[string][]string
	userBucketIdx map[string][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		buckets:       map[string]metadata.BucketInfo{},
		versions:      map[string][]metadata.ObjectMD{},
		mpuOverview:   map[string][]string{},
		userBucketIdx: map[string][]string{},
	}
}

func (f *fakeStore) GetBucket(_ context.Context, bucket string) (metadata.BucketInfo, error) {
	bi, ok := f.buckets[bucket]
	if !ok {
		return metadata.BucketInfo{}, apperrors.NoSuchBucket(bucket)
	}
	return bi, nil
}

func (f *fakeStore) PutBucket(_ context.Context, info metadata.BucketInfo) error {
	f.buckets[info.Name] = info
	return nil
}

func (f *fakeStore) DeleteBucket(_ context.Context, bucket string) error {
	delete(f.buckets, bucket)
	return nil
}

func (f *fakeStore) GetObject(_ context.Context, bucket, key, versionID string) (metadata.ObjectMD, error) {
	return metadata.ObjectMD{}, apperrors.ObjNotFound(bucket, key)
}

func (f *fakeStore) PutObject(_ context.Context, md metadata.ObjectMD) error { return nil }

func (f *fakeStore) DeleteObject(_ context.Context, bucket, key, versionID string) error { return nil }

func (f *fakeStore) ListObjectVersions(_ context.Context, bucket string, maxKeys int) ([]metadata.ObjectMD, error) {
	v := f.versions[bucket]
	if len(v) > maxKeys {
		v = v[:maxKeys]
	}
	return v, nil
}

func (f *fakeStore) ListMPUOverview(_ context.Context, bucket string, maxKeys int) ([]string, error) {
	v := f.mpuOverview[bucket]
	if len(v) > maxKeys {
		v = v[:maxKeys]
	}
	return v, nil
}

func (f *fakeStore) RemoveFromUserBucketIndex(_ context.Context, owner, bucket string) error {
	idx := f.userBucketIdx[owner]
	out := idx[:0]
	found := false
	for _, b := range idx {
		if b == bucket {
			found = true
			continue
		}
		out = append(out, b)
	}
	f.userBucketIdx[owner] = out
	if !found {
		return apperrors.NoSuchBucket(bucket)
	}
	return nil
}

type fakeKMS struct {
	destroyed []string
}

func (f *fakeKMS) NewDecipher(_ context.Context, masterKeyID string, cipheredDataKey []byte, cryptoScheme int, rangeStart int64) (metadata.Decipher, error) {
	return nil, nil
}

func (f *fakeKMS) DestroyMasterKey(_ context.Context, masterKeyID string) error {
	f.destroyed = append(f.destroyed, masterKeyID)
	return nil
}

func TestDeleteHappyPath(t *testing.T) {
	store := newFakeStore()
	store.buckets["b1"] = metadata.BucketInfo{Name: "b1", Owner: "alice", ServerSideEncAES: true, KMSMasterKeyID: "key1"}
	store.userBucketIdx["alice"] = []string{"b1", "b2"}
	kms := &fakeKMS{}
	c := New(store, kms)

	if err := c.Delete(context.Background(), "b1", "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.buckets["b1"]; ok {
		t.Fatal("expected bucket metadata to be deleted")
	}
	if len(kms.destroyed) != 1 || kms.destroyed[0] != "key1" {
		t.Fatalf("expected master key destroyed, got %v", kms.destroyed)
	}
	if len(store.userBucketIdx["alice"]) != 1 || store.userBucketIdx["alice"][0] != "b2" {
		t.Fatalf("expected bucket detached from owner index, got %v", store.userBucketIdx["alice"])
	}
}

func TestDeleteNotEmpty(t *testing.T) {
	store := newFakeStore()
	store.buckets["b1"] = metadata.BucketInfo{Name: "b1", Owner: "alice"}
	store.versions["b1"] = []metadata.ObjectMD{{Bucket: "b1", Key: "obj1"}}
	c := New(store, nil)

	err := c.Delete(context.Background(), "b1", "alice")
	if !apperrors.Is(err, "BucketNotEmpty") {
		t.Fatalf("expected BucketNotEmpty, got %v", err)
	}
}

func TestDeleteMPUInProgress(t *testing.T) {
	store := newFakeStore()
	store.buckets["b1"] = metadata.BucketInfo{Name: "b1", Owner: "alice"}
	store.mpuOverview["b1"] = []string{"upload-1"}
	c := New(store, nil)

	err := c.Delete(context.Background(), "b1", "alice")
	if !apperrors.Is(err, "MPUinProgress") {
		t.Fatalf("expected MPUinProgress, got %v", err)
	}
}

func TestInvisibleDeleteResumesAfterCrash(t *testing.T) {
	store := newFakeStore()
	store.buckets["b1"] = metadata.BucketInfo{Name: "b1", Owner: "alice", Deleted: true}
	store.userBucketIdx["alice"] = []string{"b1"}
	c := New(store, nil)

	if err := c.InvisibleDelete(context.Background(), "b1", "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.buckets["b1"]; ok {
		t.Fatal("expected bucket metadata to be gone")
	}
}

func TestInvisibleDeleteToleratesAlreadyGone(t *testing.T) {
	store := newFakeStore()
	c := New(store, nil)

	if err := c.InvisibleDelete(context.Background(), "nonexistent", "alice"); err != nil {
		t.Fatalf("expected no error for already-gone bucket, got %v", err)
	}
}

func TestInvisibleDeleteRejectsNonDeletedBucket(t *testing.T) {
	store := newFakeStore()
	store.buckets["b1"] = metadata.BucketInfo{Name: "b1", Owner: "alice", Deleted: false}
	c := New(store, nil)

	err := c.InvisibleDelete(context.Background(), "b1", "alice")
	if !apperrors.Is(err, "InvalidBucketState") {
		t.Fatalf("expected InvalidBucketState, got %v", err)
	}
}
