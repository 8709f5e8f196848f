package testutil

import (
	"context"

	"fleetpulse/pkg/histcache"
)

// FlakyKV wraps a KV and fails reads or writes on demand, for exercising the
// cache's degrade-to-empty behavior.
type FlakyKV struct {
	Inner    histcache.KV
	GetError error
	SetError error
}

func (f *FlakyKV) Get(ctx context.Context, key string) ([]byte, error) {
	if f.GetError != nil {
		return nil, f.GetError
	}
	return f.Inner.Get(ctx, key)
}

func (f *FlakyKV) Set(ctx context.Context, key string, value []byte) error {
	if f.SetError != nil {
		return f.SetError
	}
	return f.Inner.Set(ctx, key, value)
}

var _ histcache.KV = (*FlakyKV)(nil)
