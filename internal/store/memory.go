package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-memory Store. It backs tests and local runs without a
// Supabase project; row ids are generated client-side.
type Memory struct {
	mu        sync.RWMutex
	users     map[int64]*User
	watchlist map[string]*WatchlistEntry
	alerts    map[string]*PriceAlert
	tokens    map[string]*TokenCacheEntry
	wallets   map[string]*WalletSnapshot // keyed by user_id|wallet_address
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:     make(map[int64]*User),
		watchlist: make(map[string]*WatchlistEntry),
		alerts:    make(map[string]*PriceAlert),
		tokens:    make(map[string]*TokenCacheEntry),
		wallets:   make(map[string]*WalletSnapshot),
	}
}

func (m *Memory) GetOrCreateUser(_ context.Context, telegramID int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[telegramID]; ok {
		return *u, nil
	}
	now := time.Now().UTC()
	u := &User{
		TelegramID:           telegramID,
		Language:             "en",
		NotificationsEnabled: true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	m.users[telegramID] = u
	return *u, nil
}

// UserCount reports how many user rows exist. Test hook for the
// get-or-create idempotency contract.
func (m *Memory) UserCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

// SetNotificationsEnabled flips the stored flag for an existing user.
func (m *Memory) SetNotificationsEnabled(telegramID int64, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[telegramID]
	if !ok {
		return ErrNotFound
	}
	u.NotificationsEnabled = enabled
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) GetUserWatchlist(_ context.Context, telegramID int64) ([]WatchlistEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []WatchlistEntry
	for _, e := range m.watchlist {
		if e.UserID == telegramID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) AddToWatchlist(_ context.Context, telegramID int64, kind WatchKind, address, alias string) (WatchlistEntry, error) {
	if address == "" {
		return WatchlistEntry{}, ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e := &WatchlistEntry{
		ID:        uuid.NewString(),
		UserID:    telegramID,
		Kind:      kind,
		Address:   address,
		Alias:     alias,
		CreatedAt: time.Now().UTC(),
	}
	m.watchlist[e.ID] = e
	return *e, nil
}

func (m *Memory) RemoveFromWatchlist(_ context.Context, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.watchlist[entryID]; !ok {
		return ErrNotFound
	}
	delete(m.watchlist, entryID)
	return nil
}

func (m *Memory) CreatePriceAlert(_ context.Context, telegramID int64, tokenMint string, targetPrice float64, direction AlertDirection) (PriceAlert, error) {
	if tokenMint == "" || targetPrice <= 0 {
		return PriceAlert{}, ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a := &PriceAlert{
		ID:          uuid.NewString(),
		UserID:      telegramID,
		TokenMint:   tokenMint,
		TargetPrice: targetPrice,
		Direction:   direction,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	m.alerts[a.ID] = a
	return *a, nil
}

func (m *Memory) ActivePriceAlerts(_ context.Context, telegramID int64) ([]PriceAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []PriceAlert
	for _, a := range m.alerts {
		if a.UserID == telegramID && a.Active {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) DeactivatePriceAlert(_ context.Context, alertID string, triggeredAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[alertID]
	if !ok {
		return ErrNotFound
	}
	a.Active = false
	ts := triggeredAt.UTC()
	a.TriggeredAt = &ts
	return nil
}

func (m *Memory) UserIDsWithActiveAlerts(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[int64]struct{})
	var ids []int64
	for _, a := range m.alerts {
		if !a.Active {
			continue
		}
		if _, dup := seen[a.UserID]; dup {
			continue
		}
		seen[a.UserID] = struct{}{}
		ids = append(ids, a.UserID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Memory) UpdateUserWallet(_ context.Context, snap WalletSnapshot) error {
	if snap.WalletAddress == "" {
		return ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := walletKey(snap.UserID, snap.WalletAddress)
	cp := snap
	m.wallets[key] = &cp
	return nil
}

// WalletSnapshotFor returns the stored snapshot for (user, wallet).
// Test hook; the bot itself only writes snapshots.
func (m *Memory) WalletSnapshotFor(telegramID int64, walletAddress string) (WalletSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.wallets[walletKey(telegramID, walletAddress)]
	if !ok {
		return WalletSnapshot{}, false
	}
	return *s, true
}

func (m *Memory) CacheTokenMetadata(_ context.Context, entry TokenCacheEntry) error {
	if entry.Mint == "" {
		return ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := entry
	m.tokens[entry.Mint] = &cp
	return nil
}

// CachedToken returns the cached metadata for a mint. Test hook.
func (m *Memory) CachedToken(mint string) (TokenCacheEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.tokens[mint]
	if !ok {
		return TokenCacheEntry{}, false
	}
	return *e, true
}

func walletKey(telegramID int64, walletAddress string) string {
	return strconv.FormatInt(telegramID, 10) + "|" + walletAddress
}

var _ Store = (*Memory)(nil)
