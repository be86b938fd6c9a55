package resolver

import (
	"testing"

	apperrors "github.com/scality/cloudserver/internal/errors"
)

type fakeRegistry map[string]bool

func (f fakeRegistry) Registered(name string) bool { return f[name] }

func TestResolvePrecedence(t *testing.T) {
	reg := fakeRegistry{"override": true, "bucket-default": true, "global-default": true}

	got, err := Resolve(reg, "override", "bucket-default", "global-default")
	if err != nil || got != "override" {
		t.Fatalf("expected override to win, got %q, %v", got, err)
	}

	got, err = Resolve(reg, "", "bucket-default", "global-default")
	if err != nil || got != "bucket-default" {
		t.Fatalf("expected bucket default to win, got %q, %v", got, err)
	}

	got, err = Resolve(reg, "", "", "global-default")
	if err != nil || got != "global-default" {
		t.Fatalf("expected global default to win, got %q, %v", got, err)
	}
}

func TestResolveUnregisteredOverrideFails(t *testing.T) {
	reg := fakeRegistry{"bucket-default": true}

	_, err := Resolve(reg, "nonexistent", "bucket-default", "")
	if !apperrors.Is(err, "InvalidArgument") {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestResolveNoConfigurationFails(t *testing.T) {
	reg := fakeRegistry{}
	_, err := Resolve(reg, "", "", "")
	if !apperrors.Is(err, "InvalidArgument") {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestResolveUnregisteredDefaultFails(t *testing.T) {
	reg := fakeRegistry{}
	_, err := Resolve(reg, "", "", "global-default")
	if !apperrors.Is(err, "InvalidArgument") {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}
