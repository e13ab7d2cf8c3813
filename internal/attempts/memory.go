// Package attempts はログイン失敗回数の固定ウィンドウカウンタを提供する。
// 単一プロセスではMemoryStore、複数インスタンス構成ではRedisStoreを使う。
package attempts

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count     int
	expiresAt time.Time
}

// MemoryStore はプロセス内メモリで失敗回数を保持する。
type MemoryStore struct {
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*window

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore はMemoryStoreを生成し、期限切れエントリの定期削除を開始する。
func NewMemoryStore(windowSize time.Duration) *MemoryStore {
	s := newMemoryStore(windowSize, time.Now)
	go s.cleanupLoop()
	return s
}

func newMemoryStore(windowSize time.Duration, now func() time.Time) *MemoryStore {
	return &MemoryStore{
		window:  windowSize,
		now:     now,
		entries: make(map[string]*window),
		stopCh:  make(chan struct{}),
	}
}

// Failures は現在のウィンドウ内の失敗回数を返す。
func (s *MemoryStore) Failures(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.entries[key]
	if !ok {
		return 0, nil
	}
	if !s.now().Before(w.expiresAt) {
		delete(s.entries, key)
		return 0, nil
	}
	return w.count, nil
}

// Hit は試行を1回記録し、加算後のウィンドウ内の回数を返す。
// ウィンドウは最初の試行時刻から始まり、途中の試行では延長しない。
func (s *MemoryStore) Hit(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.entries[key]
	if !ok || !now.Before(w.expiresAt) {
		s.entries[key] = &window{count: 1, expiresAt: now.Add(s.window)}
		return 1, nil
	}
	w.count++
	return w.count, nil
}

// Reset は失敗回数を消去する。
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Len は保持しているエントリ数を返す。テスト用。
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stop は定期削除のgoroutineを停止する。
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.prune()
		case <-s.stopCh:
			return
		}
	}
}

// prune は期限切れのエントリを削除する。
func (s *MemoryStore) prune() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, w := range s.entries {
		if !now.Before(w.expiresAt) {
			delete(s.entries, key)
		}
	}
}
