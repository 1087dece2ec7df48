package store

import (
	"context"
	"errors"
	"time"
)

// Datastore errors. Callers can tell "no such row" apart from "the table
// store did not answer" with errors.Is.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable is returned when the datastore could not be reached
	// or refused the request. The operation did not happen.
	ErrUnavailable = errors.New("datastore unavailable")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

// WatchKind distinguishes the two watchlist entry flavors.
type WatchKind string

const (
	WatchWallet WatchKind = "wallet"
	WatchToken  WatchKind = "token"
)

// AlertDirection is the side of the target price an alert fires on.
type AlertDirection string

const (
	AlertAbove AlertDirection = "above"
	AlertBelow AlertDirection = "below"
)

// User is one row of the users table, keyed by Telegram chat id.
// Created lazily on first interaction, never deleted by the bot.
type User struct {
	TelegramID           int64     `json:"telegram_id"`
	Language             string    `json:"language"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// WatchlistEntry is a user's subscription to a wallet address or token
// symbol. The address is opaque text for tokens; wallet addresses are
// format-checked before insertion. Duplicates are allowed.
type WatchlistEntry struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Kind      WatchKind `json:"type"`
	Address   string    `json:"address"`
	Alias     string    `json:"alias,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PriceAlert is a standing rule that fires once. Active and TriggeredAt
// are mutually exclusive: the first observed trigger flips Active off and
// stamps TriggeredAt; an alert is never reactivated.
type PriceAlert struct {
	ID          string         `json:"id"`
	UserID      int64          `json:"user_id"`
	TokenMint   string         `json:"token_mint"`
	TargetPrice float64        `json:"target_price"`
	Direction   AlertDirection `json:"alert_type"`
	Active      bool           `json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	TriggeredAt *time.Time     `json:"triggered_at,omitempty"`
}

// TokenCacheEntry is cached on-chain token metadata, upserted on mint.
type TokenCacheEntry struct {
	Mint        string    `json:"mint_address"`
	Symbol      string    `json:"symbol"`
	Name        string    `json:"name"`
	Decimals    int       `json:"decimals"`
	LogoURL     string    `json:"logo_url,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// WalletSnapshot is the last-known state of a wallet a user looked up,
// upserted on (user, wallet).
type WalletSnapshot struct {
	UserID        int64     `json:"user_id"`
	WalletAddress string    `json:"wallet_address"`
	BalanceSOL    float64   `json:"balance_sol"`
	TokenCount    int       `json:"token_count"`
	LastRefreshed time.Time `json:"last_refreshed"`
}

// Store is the datastore contract. Every operation is a single
// request/response round trip; no call spans a transaction.
type Store interface {
	// GetOrCreateUser looks up the user by Telegram id and inserts the
	// row with defaults (language "en", notifications on) if absent.
	// Idempotent: a second call returns the same row without inserting.
	GetOrCreateUser(ctx context.Context, telegramID int64) (User, error)

	// GetUserWatchlist returns every watchlist entry owned by the user.
	GetUserWatchlist(ctx context.Context, telegramID int64) ([]WatchlistEntry, error)

	// AddToWatchlist inserts a watchlist entry. No uniqueness is
	// enforced; tracking the same address twice yields two rows.
	AddToWatchlist(ctx context.Context, telegramID int64, kind WatchKind, address, alias string) (WatchlistEntry, error)

	// RemoveFromWatchlist deletes an entry by id. Returns ErrNotFound
	// when no row matched.
	RemoveFromWatchlist(ctx context.Context, entryID string) error

	// CreatePriceAlert inserts an active alert.
	CreatePriceAlert(ctx context.Context, telegramID int64, tokenMint string, targetPrice float64, direction AlertDirection) (PriceAlert, error)

	// ActivePriceAlerts returns the user's alerts with the active flag set.
	ActivePriceAlerts(ctx context.Context, telegramID int64) ([]PriceAlert, error)

	// DeactivatePriceAlert clears the active flag and stamps the trigger
	// time. One-way: there is no reactivation path.
	DeactivatePriceAlert(ctx context.Context, alertID string, triggeredAt time.Time) error

	// UserIDsWithActiveAlerts returns the distinct owners of at least
	// one active alert. This is the sweep's candidate set.
	UserIDsWithActiveAlerts(ctx context.Context) ([]int64, error)

	// UpdateUserWallet upserts a wallet snapshot on (user, wallet).
	UpdateUserWallet(ctx context.Context, snap WalletSnapshot) error

	// CacheTokenMetadata upserts token metadata on mint address.
	CacheTokenMetadata(ctx context.Context, entry TokenCacheEntry) error
}
