package backend

import "testing"

func TestNativeKey(t *testing.T) {
	kc := KeyContext{BucketName: "b1", ObjectKey: "path/to/obj"}

	if got := nativeKey(kc, true); got != "path/to/obj" {
		t.Fatalf("bucketMatch=true: got %q", got)
	}
	if got := nativeKey(kc, false); got != "b1/path/to/obj" {
		t.Fatalf("bucketMatch=false: got %q", got)
	}
}

func TestParseTagging(t *testing.T) {
	tags, err := ParseTagging("k1=v1&k2=v2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tags["k1"] != "v1" || tags["k2"] != "v2" {
		t.Fatalf("unexpected tags: %+v", tags)
	}

	if tags, err := ParseTagging(""); err != nil || len(tags) != 0 {
		t.Fatalf("expected empty map for empty input, got %+v, %v", tags, err)
	}

	if _, err := ParseTagging("k1=v1&k1=v2"); err == nil {
		t.Fatal("expected error for duplicate tag key")
	}

	if _, err := ParseTagging("%zz"); err == nil {
		t.Fatal("expected error for malformed query string")
	}
}

func TestStripAWSChunked(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"aws-chunked", ""},
		{"base64,aws-chunked", "base64,"},
		{"aws-chunked,base64", "base64"},
		{"base64", "base64"},
		{"gzip,aws-chunked,base64", "gzip,base64"},
	}
	for _, tc := range cases {
		if got := StripAWSChunked(tc.in); got != tc.want {
			t.Errorf("StripAWSChunked(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStripMetaPrefix(t *testing.T) {
	in := map[string]string{
		"x-amz-meta-foo": "bar",
		"other-header":   "baz",
	}
	out := stripMetaPrefix(in)
	if out["foo"] != "bar" {
		t.Fatalf("expected stripped prefix, got %+v", out)
	}
	if out["other-header"] != "baz" {
		t.Fatalf("expected non-meta header untouched, got %+v", out)
	}
}
