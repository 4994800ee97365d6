package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testHelper(t *testing.T, prefix string) (*CacheHelper, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCacheHelper(client, prefix), mr
}

type cachedExam struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func TestCacheHelper_SetGetRoundTrip(t *testing.T) {
	helper, _ := testHelper(t, "exam:")
	ctx := context.Background()

	want := cachedExam{ID: 7, Title: "Networking basics"}
	if err := helper.Set(ctx, "id:7", want, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var got cachedExam
	if err := helper.Get(ctx, "id:7", &got); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
}

func TestCacheHelper_GetMiss(t *testing.T) {
	helper, _ := testHelper(t, "exam:")

	var got cachedExam
	if err := helper.Get(context.Background(), "id:404", &got); err != ErrCacheNotFound {
		t.Errorf("Get() miss error = %v, want ErrCacheNotFound", err)
	}
}

func TestCacheHelper_NilClientDegradesGracefully(t *testing.T) {
	helper := NewCacheHelper(nil, "exam:")
	ctx := context.Background()

	if err := helper.Set(ctx, "id:1", cachedExam{ID: 1}, time.Minute); err != nil {
		t.Errorf("Set() with nil client error = %v, want nil", err)
	}

	var got cachedExam
	if err := helper.Get(ctx, "id:1", &got); err != ErrCacheNotAvailable {
		t.Errorf("Get() with nil client error = %v, want ErrCacheNotAvailable", err)
	}
	if err := helper.Delete(ctx, "id:1"); err != nil {
		t.Errorf("Delete() with nil client error = %v, want nil", err)
	}
}

func TestCacheHelper_TTLExpiry(t *testing.T) {
	helper, mr := testHelper(t, "exam:")
	ctx := context.Background()

	if err := helper.SetString(ctx, "id:1", "cached", 30*time.Second); err != nil {
		t.Fatalf("SetString() error = %v", err)
	}
	mr.FastForward(time.Minute)

	if _, err := helper.GetString(ctx, "id:1"); err != ErrCacheNotFound {
		t.Errorf("GetString() after expiry error = %v, want ErrCacheNotFound", err)
	}
}

func TestCacheHelper_CacheOrExecuteServesCachedValue(t *testing.T) {
	helper, _ := testHelper(t, "exam:")
	ctx := context.Background()

	seeded := cachedExam{ID: 3, Title: "Databases"}
	if err := helper.Set(ctx, "id:3", seeded, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// Cached entry must short-circuit, the fetch never runs
	var got cachedExam
	err := helper.CacheOrExecute(ctx, "id:3", &got, time.Minute, func() (interface{}, error) {
		t.Fatal("fetch ran despite cached value")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("CacheOrExecute() error = %v", err)
	}
	if got != seeded {
		t.Errorf("CacheOrExecute() = %+v, want %+v", got, seeded)
	}
}

func TestCacheHelper_CacheOrExecuteFetchesOnMiss(t *testing.T) {
	helper, _ := testHelper(t, "exam:")

	fetched := cachedExam{ID: 9, Title: "Operating systems"}
	var got cachedExam
	err := helper.CacheOrExecute(context.Background(), "id:9", &got, time.Minute, func() (interface{}, error) {
		return &fetched, nil
	})
	if err != nil {
		t.Fatalf("CacheOrExecute() error = %v", err)
	}
	if got != fetched {
		t.Errorf("CacheOrExecute() = %+v, want %+v", got, fetched)
	}
}

func TestCacheHelper_InvalidatePattern(t *testing.T) {
	helper, _ := testHelper(t, "attempt:")
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := helper.SetString(ctx, fmt.Sprintf("exam:5:%d", i), "x", time.Minute); err != nil {
			t.Fatalf("SetString() error = %v", err)
		}
	}
	if err := helper.SetString(ctx, "exam:6:1", "keep", time.Minute); err != nil {
		t.Fatalf("SetString() error = %v", err)
	}

	if err := helper.InvalidatePattern(ctx, "exam:5:*"); err != nil {
		t.Fatalf("InvalidatePattern() error = %v", err)
	}

	if _, err := helper.GetString(ctx, "exam:5:1"); err != ErrCacheNotFound {
		t.Errorf("invalidated key still readable, error = %v", err)
	}
	if got, err := helper.GetString(ctx, "exam:6:1"); err != nil || got != "keep" {
		t.Errorf("unrelated key lost: value = %q, error = %v", got, err)
	}
}

func TestInvalidateAttemptCache_DropsDerivedEntries(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	cm := NewCacheManager(client)
	ctx := context.Background()

	if err := cm.Attempt.SetString(ctx, "id:10", "x", time.Minute); err != nil {
		t.Fatalf("SetString() error = %v", err)
	}
	if err := cm.Attempt.SetString(ctx, "student:student-1:list", "x", time.Minute); err != nil {
		t.Fatalf("SetString() error = %v", err)
	}
	if err := cm.Attempt.SetString(ctx, "exam:5:page:1", "x", time.Minute); err != nil {
		t.Fatalf("SetString() error = %v", err)
	}
	if err := cm.Stats.SetString(ctx, "exam:5:attempts", "x", time.Minute); err != nil {
		t.Fatalf("SetString() error = %v", err)
	}
	if err := cm.Stats.SetString(ctx, "exam:6:attempts", "keep", time.Minute); err != nil {
		t.Fatalf("SetString() error = %v", err)
	}

	InvalidateAttemptCache(ctx, cm, 10, 5, "student-1")

	if _, err := cm.Attempt.GetString(ctx, "id:10"); err != ErrCacheNotFound {
		t.Error("attempt id entry survived invalidation")
	}
	if _, err := cm.Stats.GetString(ctx, "exam:5:attempts"); err != ErrCacheNotFound {
		t.Error("exam stats entry survived invalidation")
	}
	if _, err := cm.Attempt.GetString(ctx, "student:student-1:list"); err != ErrCacheNotFound {
		t.Error("student pattern entry survived invalidation")
	}
	if _, err := cm.Attempt.GetString(ctx, "exam:5:page:1"); err != ErrCacheNotFound {
		t.Error("exam pattern entry survived invalidation")
	}
	if got, err := cm.Stats.GetString(ctx, "exam:6:attempts"); err != nil || got != "keep" {
		t.Errorf("unrelated exam stats lost: value = %q, error = %v", got, err)
	}
}

func TestCacheManager_NilClient(t *testing.T) {
	cm := NewCacheManager(nil)

	if err := cm.HealthCheck(context.Background()); err != ErrCacheNotAvailable {
		t.Errorf("HealthCheck() with nil client error = %v, want ErrCacheNotAvailable", err)
	}
}
