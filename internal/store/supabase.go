package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// Supabase talks to a hosted Postgres over the PostgREST API. Each Store
// operation is exactly one HTTP request with an equality filter on the
// key columns; there is no connection state beyond the http.Client.
type Supabase struct {
	baseURL string
	key     string
	client  *http.Client
}

// NewSupabase builds a client for the given project URL and API key.
// An empty URL or key yields a client whose every call reports
// ErrUnavailable without dialing.
func NewSupabase(baseURL, key string) *Supabase {
	return &Supabase{
		baseURL: baseURL,
		key:     key,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Supabase) configured() bool {
	return s.baseURL != "" && s.key != ""
}

// do performs one PostgREST request against a table. out, when non-nil,
// receives the decoded JSON array PostgREST responds with.
func (s *Supabase) do(ctx context.Context, method, table string, query url.Values, prefer string, body, out any) error {
	if !s.configured() {
		return fmt.Errorf("%w: supabase url/key not configured", ErrUnavailable)
	}

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", table, err)
		}
		rdr = bytes.NewReader(buf)
	}

	u := s.baseURL + "/rest/v1/" + table
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("build %s request: %w", table, err)
	}
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrUnavailable, method, table, resp.StatusCode, bytes.TrimSpace(msg))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrUnavailable, table, err)
	}
	return nil
}

func eqInt64(v int64) string { return "eq." + strconv.FormatInt(v, 10) }

func (s *Supabase) GetOrCreateUser(ctx context.Context, telegramID int64) (User, error) {
	q := url.Values{}
	q.Set("telegram_id", eqInt64(telegramID))
	q.Set("select", "*")
	q.Set("limit", "1")

	var rows []User
	if err := s.do(ctx, http.MethodGet, "users", q, "", nil, &rows); err != nil {
		return User{}, fmt.Errorf("get user %d: %w", telegramID, err)
	}
	if len(rows) > 0 {
		return rows[0], nil
	}

	payload := map[string]any{
		"telegram_id":           telegramID,
		"language":              "en",
		"notifications_enabled": true,
	}
	var created []User
	if err := s.do(ctx, http.MethodPost, "users", nil, "return=representation", payload, &created); err != nil {
		return User{}, fmt.Errorf("create user %d: %w", telegramID, err)
	}
	if len(created) == 0 {
		return User{}, fmt.Errorf("create user %d: %w", telegramID, ErrUnavailable)
	}
	return created[0], nil
}

func (s *Supabase) GetUserWatchlist(ctx context.Context, telegramID int64) ([]WatchlistEntry, error) {
	q := url.Values{}
	q.Set("user_id", eqInt64(telegramID))
	q.Set("select", "*")

	var rows []WatchlistEntry
	if err := s.do(ctx, http.MethodGet, "watchlists", q, "", nil, &rows); err != nil {
		return nil, fmt.Errorf("get watchlist for %d: %w", telegramID, err)
	}
	return rows, nil
}

func (s *Supabase) AddToWatchlist(ctx context.Context, telegramID int64, kind WatchKind, address, alias string) (WatchlistEntry, error) {
	payload := map[string]any{
		"user_id": telegramID,
		"type":    kind,
		"address": address,
	}
	if alias != "" {
		payload["alias"] = alias
	}
	var rows []WatchlistEntry
	if err := s.do(ctx, http.MethodPost, "watchlists", nil, "return=representation", payload, &rows); err != nil {
		return WatchlistEntry{}, fmt.Errorf("add to watchlist for %d: %w", telegramID, err)
	}
	if len(rows) == 0 {
		return WatchlistEntry{}, fmt.Errorf("add to watchlist for %d: %w", telegramID, ErrUnavailable)
	}
	return rows[0], nil
}

func (s *Supabase) RemoveFromWatchlist(ctx context.Context, entryID string) error {
	q := url.Values{}
	q.Set("id", "eq."+entryID)

	// return=representation so a miss (zero rows deleted) is visible.
	var rows []WatchlistEntry
	if err := s.do(ctx, http.MethodDelete, "watchlists", q, "return=representation", nil, &rows); err != nil {
		return fmt.Errorf("remove watchlist entry %s: %w", entryID, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("watchlist entry %s: %w", entryID, ErrNotFound)
	}
	return nil
}

func (s *Supabase) CreatePriceAlert(ctx context.Context, telegramID int64, tokenMint string, targetPrice float64, direction AlertDirection) (PriceAlert, error) {
	payload := map[string]any{
		"user_id":      telegramID,
		"token_mint":   tokenMint,
		"target_price": targetPrice,
		"alert_type":   direction,
	}
	var rows []PriceAlert
	if err := s.do(ctx, http.MethodPost, "price_alerts", nil, "return=representation", payload, &rows); err != nil {
		return PriceAlert{}, fmt.Errorf("create alert for %d: %w", telegramID, err)
	}
	if len(rows) == 0 {
		return PriceAlert{}, fmt.Errorf("create alert for %d: %w", telegramID, ErrUnavailable)
	}
	return rows[0], nil
}

func (s *Supabase) ActivePriceAlerts(ctx context.Context, telegramID int64) ([]PriceAlert, error) {
	q := url.Values{}
	q.Set("user_id", eqInt64(telegramID))
	q.Set("is_active", "eq.true")
	q.Set("select", "*")

	var rows []PriceAlert
	if err := s.do(ctx, http.MethodGet, "price_alerts", q, "", nil, &rows); err != nil {
		return nil, fmt.Errorf("get alerts for %d: %w", telegramID, err)
	}
	return rows, nil
}

func (s *Supabase) DeactivatePriceAlert(ctx context.Context, alertID string, triggeredAt time.Time) error {
	q := url.Values{}
	q.Set("id", "eq."+alertID)

	payload := map[string]any{
		"is_active":    false,
		"triggered_at": triggeredAt.UTC(),
	}
	var rows []PriceAlert
	if err := s.do(ctx, http.MethodPatch, "price_alerts", q, "return=representation", payload, &rows); err != nil {
		return fmt.Errorf("deactivate alert %s: %w", alertID, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("alert %s: %w", alertID, ErrNotFound)
	}
	return nil
}

func (s *Supabase) UserIDsWithActiveAlerts(ctx context.Context) ([]int64, error) {
	q := url.Values{}
	q.Set("is_active", "eq.true")
	q.Set("select", "user_id")

	var rows []struct {
		UserID int64 `json:"user_id"`
	}
	if err := s.do(ctx, http.MethodGet, "price_alerts", q, "", nil, &rows); err != nil {
		return nil, fmt.Errorf("list alert users: %w", err)
	}

	seen := make(map[int64]struct{}, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		if _, dup := seen[r.UserID]; dup {
			continue
		}
		seen[r.UserID] = struct{}{}
		ids = append(ids, r.UserID)
	}
	// Keep output deterministic for tests / logs.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Supabase) UpdateUserWallet(ctx context.Context, snap WalletSnapshot) error {
	q := url.Values{}
	q.Set("on_conflict", "user_id,wallet_address")

	payload := map[string]any{
		"user_id":        snap.UserID,
		"wallet_address": snap.WalletAddress,
		"balance_sol":    snap.BalanceSOL,
		"token_count":    snap.TokenCount,
		"last_refreshed": snap.LastRefreshed.UTC(),
	}
	if err := s.do(ctx, http.MethodPost, "user_wallets", q, "resolution=merge-duplicates", payload, nil); err != nil {
		return fmt.Errorf("upsert wallet snapshot for %d: %w", snap.UserID, err)
	}
	return nil
}

func (s *Supabase) CacheTokenMetadata(ctx context.Context, entry TokenCacheEntry) error {
	q := url.Values{}
	q.Set("on_conflict", "mint_address")

	payload := map[string]any{
		"mint_address": entry.Mint,
		"symbol":       entry.Symbol,
		"name":         entry.Name,
		"decimals":     entry.Decimals,
		"last_updated": entry.LastUpdated.UTC(),
	}
	if entry.LogoURL != "" {
		payload["logo_url"] = entry.LogoURL
	}
	if err := s.do(ctx, http.MethodPost, "token_cache", q, "resolution=merge-duplicates", payload, nil); err != nil {
		return fmt.Errorf("cache token metadata %s: %w", entry.Mint, err)
	}
	return nil
}

var _ Store = (*Supabase)(nil)
