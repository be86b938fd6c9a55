package metadata

import (
	"context"
	"io"
)

// NopKMS is a KMSClient stand-in for deployments that never encrypt
// (spec §1: "KMS internals... modeled here as narrow Go interfaces").
// NewDecipher returns an identity transform; it must never be wired to a
// location whose objects carry CipheredDataKey, since it cannot actually
// decrypt one.
type NopKMS struct{}

type identityDecipher struct{}

func (identityDecipher) Wrap(src io.Reader) io.Reader { return src }

func (NopKMS) NewDecipher(context.Context, string, []byte, int, int64) (Decipher, error) {
	return identityDecipher{}, nil
}

func (NopKMS) DestroyMasterKey(context.Context, string) error { return nil }
