package cache

import (
	"context"
	"testing"
)

func TestMemoryStateStoreDefaults(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()

	if got := store.GetBool(ctx, KeyShuffle, false); got != false {
		t.Errorf("GetBool default = %v, want false", got)
	}
	if got := store.GetInt(ctx, KeyIndex, -1); got != -1 {
		t.Errorf("GetInt default = %d, want -1", got)
	}
	if got := store.GetInt64(ctx, KeyBookmark, 0); got != 0 {
		t.Errorf("GetInt64 default = %d, want 0", got)
	}
	if got := store.GetString(ctx, KeyRepeat, "off"); got != "off" {
		t.Errorf("GetString default = %q, want %q", got, "off")
	}
}

func TestMemoryStateStoreRoundTrip(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()

	if err := store.SetBool(ctx, KeyShuffle, true); err != nil {
		t.Fatal(err)
	}
	if err := store.SetInt(ctx, KeyIndex, 7); err != nil {
		t.Fatal(err)
	}
	if err := store.SetInt64(ctx, KeyBookmark, 123456789012); err != nil {
		t.Fatal(err)
	}
	if err := store.SetString(ctx, KeyRepeat, "all"); err != nil {
		t.Fatal(err)
	}

	if !store.GetBool(ctx, KeyShuffle, false) {
		t.Error("bool did not round trip")
	}
	if got := store.GetInt(ctx, KeyIndex, -1); got != 7 {
		t.Errorf("int round trip = %d, want 7", got)
	}
	if got := store.GetInt64(ctx, KeyBookmark, 0); got != 123456789012 {
		t.Errorf("int64 round trip = %d", got)
	}
	if got := store.GetString(ctx, KeyRepeat, ""); got != "all" {
		t.Errorf("string round trip = %q, want %q", got, "all")
	}
}

func TestMemoryStateStoreMalformedValueFallsBack(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()

	store.SetString(ctx, KeyIndex, "not-a-number")

	if got := store.GetInt(ctx, KeyIndex, -1); got != -1 {
		t.Errorf("malformed int read = %d, want default -1", got)
	}
	if got := store.GetBool(ctx, KeyIndex, true); got != true {
		t.Errorf("malformed bool read = %v, want default true", got)
	}
}
