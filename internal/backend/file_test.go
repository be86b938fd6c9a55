package backend

import (
	"bytes"
	"io"
	"testing"
)

func TestFileClientPutGetDelete(t *testing.T) {
	c, err := NewFileClient(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	kc := KeyContext{BucketName: "b1", ObjectKey: "k1"}

	res, err := c.Put(bytes.NewReader([]byte("hello")), 5, kc, "req1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Key != "5d41402abc4b2a76b9719d911017c592" {
		t.Fatalf("expected content-addressed key, got %s", res.Key)
	}

	rc, err := c.Get(res.Key, nil, "req1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "hello" {
		t.Fatalf("unexpected data: %s", data)
	}

	if err := c.Delete(res.Key, "req1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Get(res.Key, nil, "req1"); err == nil {
		t.Fatal("expected ObjNotFound after delete")
	}
}

func TestFileClientDeduplicatesIdenticalContent(t *testing.T) {
	c, err := NewFileClient(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	kc1 := KeyContext{BucketName: "b1", ObjectKey: "k1"}
	kc2 := KeyContext{BucketName: "b1", ObjectKey: "k2"}

	res1, _ := c.Put(bytes.NewReader([]byte("same content")), 12, kc1, "req1")
	res2, _ := c.Put(bytes.NewReader([]byte("same content")), 12, kc2, "req2")
	if res1.Key != res2.Key {
		t.Fatalf("expected identical content to produce the same key, got %s vs %s", res1.Key, res2.Key)
	}
}

func TestFileClientGetRange(t *testing.T) {
	c, err := NewFileClient(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	kc := KeyContext{BucketName: "b1", ObjectKey: "k1"}
	res, _ := c.Put(bytes.NewReader([]byte("0123456789")), 10, kc, "req1")

	rc, err := c.Get(res.Key, &ByteRange{First: 2, Last: 5}, "req1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "2345" {
		t.Fatalf("unexpected range data: %q", data)
	}
}

func TestFileClientDeleteMissingIsNotAnError(t *testing.T) {
	c, err := NewFileClient(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Delete("0123456789abcdef0123456789abcdef", "req1"); err != nil {
		t.Fatalf("expected delete of missing key to be a no-op, got %v", err)
	}
}
