package backend

import (
	"bytes"
	"io"
	"testing"
)

func TestMemClientPutGetDelete(t *testing.T) {
	c := NewMemClient()
	kc := KeyContext{BucketName: "b1", ObjectKey: "k1"}

	res, err := c.Put(bytes.NewReader([]byte("hello")), 5, kc, "req1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ETag != `"5d41402abc4b2a76b9719d911017c592"` {
		t.Fatalf("unexpected etag: %s", res.ETag)
	}

	rc, err := c.Get(res.Key, nil, "req1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := io.ReadAll(rc)
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

func TestMemClientGetRange(t *testing.T) {
	c := NewMemClient()
	kc := KeyContext{BucketName: "b1", ObjectKey: "k1"}
	res, _ := c.Put(bytes.NewReader([]byte("0123456789")), 10, kc, "req1")

	rc, err := c.Get(res.Key, &ByteRange{First: 2, Last: 5}, "req1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := io.ReadAll(rc)
	if string(data) != "2345" {
		t.Fatalf("unexpected range data: %q", data)
	}
}

func TestMemClientHealthAlwaysOK(t *testing.T) {
	c := NewMemClient()
	if res := c.CheckHealth(); res.Err != nil {
		t.Fatalf("expected healthy, got %v", res.Err)
	}
}

func TestMemClientCapabilitiesNone(t *testing.T) {
	c := NewMemClient()
	caps := c.Capabilities()
	if caps.Multipart || caps.Tagging || caps.Copy {
		t.Fatalf("expected mem client to advertise no optional capabilities, got %+v", caps)
	}
}
