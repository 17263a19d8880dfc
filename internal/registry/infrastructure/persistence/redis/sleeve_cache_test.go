package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/wyfcoding/tradingassistant/internal/registry/domain"
	"github.com/wyfcoding/tradingassistant/internal/registry/infrastructure/persistence/memory"
)

type fakeCache struct {
	data    map[string][]byte
	sets    int
	failGet bool
}

func newFakeCache() *fakeCache { return &fakeCache{data: make(map[string][]byte)} }

func (f *fakeCache) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	if f.failGet {
		return false, errors.New("connection refused")
	}
	b, ok := f.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (f *fakeCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.sets++
	f.data[key] = b
	return nil
}

func (f *fakeCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func TestCachedSleeveRepository(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	c := newFakeCache()
	repo := NewCachedSleeveRepository(store.Sleeves(), c, time.Minute)

	if err := repo.Seed(ctx, domain.DefaultSleeves); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		got, err := repo.List(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != len(domain.DefaultSleeves) {
			t.Fatalf("Expected %d sleeves, got %d", len(domain.DefaultSleeves), len(got))
		}
	}
	if c.sets != 1 {
		t.Errorf("Expected a single cache fill, got %d", c.sets)
	}

	if err := repo.Seed(ctx, []domain.Sleeve{{Code: "CORE", Name: "Core"}}); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.data[sleevesKey]; ok {
		t.Error("Expected Seed to invalidate the cache")
	}
}

func TestCachedSleeveRepositoryFallsBack(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	_ = store.Sleeves().Seed(ctx, domain.DefaultSleeves)
	c := newFakeCache()
	c.failGet = true

	got, err := NewCachedSleeveRepository(store.Sleeves(), c, time.Minute).List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(domain.DefaultSleeves) {
		t.Errorf("Expected fallback to repository, got %d sleeves", len(got))
	}

	missing, _ := NewCachedSleeveRepository(store.Sleeves(), c, time.Minute).MissingCodes(ctx, []string{"CORE", "X"})
	if len(missing) != 1 || missing[0] != "X" {
		t.Errorf("Expected MissingCodes passthrough, got %v", missing)
	}
}
