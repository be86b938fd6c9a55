package metadata

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/scality/cloudserver/internal/errors"
)

// MemStore is an in-process Store, standing in for the external metadata
// service the gateway normally talks to (spec §1: "the metadata store...
// modeled here as narrow Go interfaces with small stub/fake
// implementations"). It is good enough to run the gateway process
// end-to-end against the mem/file backends without a real metadata
// cluster; it is not a substitute for one in production.
type MemStore struct {
	mu       sync.RWMutex
	buckets  map[string]BucketInfo
	objects  map[string]map[string]ObjectMD // bucket -> "key\x00versionID" -> md
	ownerIdx map[string]map[string]bool     // owner -> set of bucket names
	mpus     map[string][]string            // bucket -> upload IDs
}

// NewMemStore returns an empty in-memory Store.
func NewMemStore() *MemStore {
	return &MemStore{
		buckets:  make(map[string]BucketInfo),
		objects:  make(map[string]map[string]ObjectMD),
		ownerIdx: make(map[string]map[string]bool),
		mpus:     make(map[string][]string),
	}
}

func objKey(key, versionID string) string { return key + "\x00" + versionID }

func (m *MemStore) GetBucket(_ context.Context, bucket string) (BucketInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.buckets[bucket]
	if !ok {
		return BucketInfo{}, apperrors.NoSuchBucket(bucket)
	}
	return info, nil
}

func (m *MemStore) PutBucket(_ context.Context, info BucketInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[info.Name] = info
	if info.Owner != "" {
		idx, ok := m.ownerIdx[info.Owner]
		if !ok {
			idx = make(map[string]bool)
			m.ownerIdx[info.Owner] = idx
		}
		idx[info.Name] = true
	}
	return nil
}

func (m *MemStore) DeleteBucket(_ context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		return apperrors.NoSuchBucket(bucket)
	}
	delete(m.buckets, bucket)
	delete(m.objects, bucket)
	delete(m.mpus, bucket)
	return nil
}

func (m *MemStore) GetObject(_ context.Context, bucket, key, versionID string) (ObjectMD, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byKey, ok := m.objects[bucket]
	if !ok {
		return ObjectMD{}, apperrors.NoSuchKey(bucket, key)
	}
	md, ok := byKey[objKey(key, versionID)]
	if !ok {
		return ObjectMD{}, apperrors.NoSuchKey(bucket, key)
	}
	return md, nil
}

func (m *MemStore) PutObject(_ context.Context, md ObjectMD) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byKey, ok := m.objects[md.Bucket]
	if !ok {
		byKey = make(map[string]ObjectMD)
		m.objects[md.Bucket] = byKey
	}
	byKey[objKey(md.Key, md.VersionID)] = md
	return nil
}

func (m *MemStore) DeleteObject(_ context.Context, bucket, key, versionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byKey, ok := m.objects[bucket]
	if !ok {
		return apperrors.NoSuchKey(bucket, key)
	}
	k := objKey(key, versionID)
	if _, ok := byKey[k]; !ok {
		return apperrors.NoSuchKey(bucket, key)
	}
	delete(byKey, k)
	return nil
}

func (m *MemStore) ListObjectVersions(_ context.Context, bucket string, maxKeys int) ([]ObjectMD, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byKey := m.objects[bucket]
	out := make([]ObjectMD, 0, len(byKey))
	for _, md := range byKey {
		out = append(out, md)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].VersionID < out[j].VersionID
	})
	if maxKeys > 0 && len(out) > maxKeys {
		out = out[:maxKeys]
	}
	return out, nil
}

func (m *MemStore) ListMPUOverview(_ context.Context, bucket string, maxKeys int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.mpus[bucket]
	if maxKeys > 0 && len(ids) > maxKeys {
		ids = ids[:maxKeys]
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out, nil
}

// RegisterMPU and ResolveMPU satisfy the optional MPUTracker interface;
// internal/backbeat type-asserts for it from initiateMPU/completeMPU so
// ListMPUOverview reflects in-flight uploads without a real shadow-bucket
// implementation.
func (m *MemStore) RegisterMPU(bucket, uploadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mpus[bucket] = append(m.mpus[bucket], uploadID)
}

func (m *MemStore) ResolveMPU(bucket, uploadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.mpus[bucket]
	for i, id := range ids {
		if id == uploadID {
			m.mpus[bucket] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

func (m *MemStore) RemoveFromUserBucketIndex(_ context.Context, owner, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx, ok := m.ownerIdx[owner]; ok {
		delete(idx, bucket)
	}
	return nil
}
