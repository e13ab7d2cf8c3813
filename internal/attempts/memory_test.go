package attempts

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	return newMemoryStore(15*time.Minute, clock.Now), clock
}

// 試行回数がウィンドウ内で累積され、Hitが加算後の値を返すことを検証
func TestMemoryStore_Hit_Accumulates(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		n, err := s.Hit(ctx, "alice")
		if err != nil {
			t.Fatalf("Hit: %v", err)
		}
		if n != i {
			t.Errorf("Hit #%d = %d, want %d", i, n, i)
		}
	}

	n, err := s.Failures(ctx, "alice")
	if err != nil {
		t.Fatalf("Failures: %v", err)
	}
	if n != 3 {
		t.Errorf("Failures = %d, want 3", n)
	}

	if n, _ := s.Failures(ctx, "bob"); n != 0 {
		t.Errorf("Failures(bob) = %d, want 0", n)
	}
}

// ウィンドウ経過後は0に戻ることを検証
func TestMemoryStore_WindowExpires(t *testing.T) {
	s, clock := newTestStore()
	ctx := context.Background()

	s.Hit(ctx, "alice")
	clock.Advance(10 * time.Minute)
	s.Hit(ctx, "alice")

	// 最初の失敗から15分経過した時点でウィンドウが閉じる
	clock.Advance(5 * time.Minute)

	n, _ := s.Failures(ctx, "alice")
	if n != 0 {
		t.Errorf("Failures after window = %d, want 0", n)
	}
	if s.Len() != 0 {
		t.Errorf("expired entry should be removed, Len = %d", s.Len())
	}
}

// 期限切れ後の失敗は新しいウィンドウを開始することを検証
func TestMemoryStore_Hit_AfterExpiryStartsNewWindow(t *testing.T) {
	s, clock := newTestStore()
	ctx := context.Background()

	s.Hit(ctx, "alice")
	s.Hit(ctx, "alice")
	clock.Advance(16 * time.Minute)

	if n, _ := s.Hit(ctx, "alice"); n != 1 {
		t.Errorf("Hit = %d, want 1", n)
	}
}

func TestMemoryStore_Reset(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	s.Hit(ctx, "alice")
	if err := s.Reset(ctx, "alice"); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if n, _ := s.Failures(ctx, "alice"); n != 0 {
		t.Errorf("Failures after reset = %d, want 0", n)
	}
}

// pruneが期限切れエントリのみを削除することを検証
func TestMemoryStore_Prune(t *testing.T) {
	s, clock := newTestStore()
	ctx := context.Background()

	s.Hit(ctx, "old")
	clock.Advance(10 * time.Minute)
	s.Hit(ctx, "new")
	clock.Advance(6 * time.Minute)

	s.prune()

	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	if n, _ := s.Failures(ctx, "new"); n != 1 {
		t.Errorf("Failures(new) = %d, want 1", n)
	}
}

// 並行に記録しても回数が失われず、各Hitが異なる値を受け取ることを検証
func TestMemoryStore_ConcurrentHit(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[int]bool)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, _ := s.Hit(ctx, "alice")
			mu.Lock()
			seen[got] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	for i := 1; i <= n; i++ {
		if !seen[i] {
			t.Errorf("no Hit returned %d", i)
		}
	}

	if n, _ := s.Failures(ctx, "alice"); n != 50 {
		t.Errorf("Failures = %d, want 50", n)
	}
}

func TestNewMemoryStore_Stop(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	s.Stop()
	// 二重停止でもpanicしない
	s.Stop()
}
