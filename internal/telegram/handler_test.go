package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"

	tg "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metasolana/metasolanabot/internal/price"
	"github.com/metasolana/metasolanabot/internal/solana"
	"github.com/metasolana/metasolanabot/internal/store"
)

const chatID = int64(7)

// fakeAPI records every outbound send so tests can assert on the exact
// message sequence.
type fakeAPI struct {
	sent     []*tg.SendMessageParams
	answered []string
}

func (f *fakeAPI) SendMessage(_ context.Context, params *tg.SendMessageParams) (*models.Message, error) {
	f.sent = append(f.sent, params)
	return &models.Message{}, nil
}

func (f *fakeAPI) AnswerCallbackQuery(_ context.Context, params *tg.AnswerCallbackQueryParams) (bool, error) {
	f.answered = append(f.answered, params.CallbackQueryID)
	return true, nil
}

func (f *fakeAPI) texts() []string {
	out := make([]string, len(f.sent))
	for i, p := range f.sent {
		out[i] = p.Text
	}
	return out
}

type fakeChain struct {
	balance    float64
	balanceErr error
	sigs       []solana.SignatureInfo
	tokenCount int
	meta       solana.TokenMeta
	metaErr    error
}

func (f *fakeChain) WalletBalance(context.Context, string) (float64, error) {
	return f.balance, f.balanceErr
}

func (f *fakeChain) WalletTransactions(context.Context, string, int) ([]solana.SignatureInfo, error) {
	return f.sigs, nil
}

func (f *fakeChain) TokenAccountCount(context.Context, string) (int, error) {
	return f.tokenCount, nil
}

func (f *fakeChain) TokenMetadata(context.Context, string) (solana.TokenMeta, error) {
	return f.meta, f.metaErr
}

type fakeQuotes struct {
	quotes map[string]price.Quote
	err    error
}

func (f *fakeQuotes) TokenPrice(_ context.Context, symbol string) (price.Quote, error) {
	if f.err != nil {
		return price.Quote{}, f.err
	}
	q, ok := f.quotes[strings.ToUpper(symbol)]
	if !ok {
		return price.Quote{}, price.ErrUnknownToken
	}
	return q, nil
}

func newTestHandler() (*Handler, *fakeAPI, *store.Memory, *fakeChain, *fakeQuotes) {
	api := &fakeAPI{}
	mem := store.NewMemory()
	chain := &fakeChain{}
	quotes := &fakeQuotes{quotes: map[string]price.Quote{}}
	h := &Handler{api: api, st: mem, chain: chain, quotes: quotes}
	return h, api, mem, chain, quotes
}

func message(text string) *models.Message {
	return &models.Message{Text: text, Chat: models.Chat{ID: chatID}}
}

func TestStartCreatesUserAndSendsMenu(t *testing.T) {
	h, api, mem, _, _ := newTestHandler()

	h.HandleMessage(context.Background(), message("/start"))

	assert.Equal(t, 1, mem.UserCount())
	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0].Text, "Welcome to MetasolanaBot")

	kb, ok := api.sent[0].ReplyMarkup.(*models.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Len(t, kb.InlineKeyboard, 5)
}

func TestHelpListsEveryCommand(t *testing.T) {
	h, api, _, _, _ := newTestHandler()

	h.HandleMessage(context.Background(), message("/help"))

	require.Len(t, api.sent, 1)
	for _, c := range commandList {
		assert.Contains(t, api.sent[0].Text, c.name)
	}
}

func TestUnknownCommand(t *testing.T) {
	h, api, _, _, _ := newTestHandler()

	h.HandleMessage(context.Background(), message("/frobnicate"))

	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0].Text, "unknown command")
}

func TestCommandUsageOnMissingArgs(t *testing.T) {
	h, api, _, _, _ := newTestHandler()

	h.HandleMessage(context.Background(), message("/alert_price SOL"))

	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0].Text, "/alert_price &lt;symbol&gt; &lt;above|below&gt; &lt;price&gt;")
}

func TestCommandNameStripsBotMention(t *testing.T) {
	h, api, _, _, _ := newTestHandler()

	h.HandleMessage(context.Background(), message("/alerts@MetasolanaBot"))

	require.Len(t, api.sent, 1)
	assert.Equal(t, "No active price alerts", api.sent[0].Text)
}

func TestAlertPriceThenAlertsListing(t *testing.T) {
	h, api, _, _, _ := newTestHandler()
	ctx := context.Background()

	h.HandleMessage(ctx, message("/alert_price SOL above 150"))
	h.HandleMessage(ctx, message("/alerts"))

	texts := api.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "Price alert set: SOL above $150", texts[0])
	assert.Contains(t, texts[1], "SOL above $150")
}

func TestAlertPriceRejectsBadDirection(t *testing.T) {
	h, api, mem, _, _ := newTestHandler()

	h.HandleMessage(context.Background(), message("/alert_price SOL sideways 150"))

	require.Len(t, api.sent, 1)
	assert.Equal(t, "Direction must be above or below", api.sent[0].Text)

	alerts, err := mem.ActivePriceAlerts(context.Background(), chatID)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestAlertPriceRejectsBadPrice(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-5", "NaN", "Inf"} {
		h, api, mem, _, _ := newTestHandler()

		h.HandleMessage(context.Background(), message("/alert_price SOL above "+raw))

		require.Len(t, api.sent, 1, raw)
		assert.Equal(t, "Target price must be a positive number", api.sent[0].Text, raw)

		alerts, err := mem.ActivePriceAlerts(context.Background(), chatID)
		require.NoError(t, err)
		assert.Empty(t, alerts, raw)
	}
}

func TestTokenBySymbol(t *testing.T) {
	h, api, _, _, quotes := newTestHandler()
	quotes.quotes["SOL"] = price.Quote{Symbol: "SOL", Price: 151.2345, MarketCap: 65123456789, Change24h: 2.345}

	h.HandleMessage(context.Background(), message("/token sol"))

	texts := api.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "Looking up token: sol", texts[0])
	assert.Contains(t, texts[1], "Price: $151.2345")
	assert.Contains(t, texts[1], "📈 2.35%")
	assert.Contains(t, texts[1], "Market Cap: $65,123,456,789")
}

func TestTokenUnknownSymbol(t *testing.T) {
	h, api, _, _, _ := newTestHandler()

	h.HandleMessage(context.Background(), message("/token doesnotexist123"))

	texts := api.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "Could not find token: doesnotexist123", texts[1])
}

func TestTokenQuoteServiceDown(t *testing.T) {
	h, api, _, _, quotes := newTestHandler()
	quotes.err = errors.New("status 429")

	h.HandleMessage(context.Background(), message("/token sol"))

	texts := api.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "Price service is unavailable right now, try again later.", texts[1])
}

func TestTokenByMintCachesMetadata(t *testing.T) {
	const mint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	h, api, mem, chain, _ := newTestHandler()
	chain.meta = solana.TokenMeta{Mint: mint, Name: "USD Coin", Symbol: "USDC", Decimals: 6}

	h.HandleMessage(context.Background(), message("/token "+mint))

	texts := api.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[1], "Token: USDC")
	assert.Contains(t, texts[1], "Name: USD Coin")

	cached, ok := mem.CachedToken(mint)
	require.True(t, ok)
	assert.Equal(t, "USDC", cached.Symbol)
	assert.Equal(t, 6, cached.Decimals)
}

func TestTrackWalletRejectsMalformedAddress(t *testing.T) {
	h, api, mem, _, _ := newTestHandler()

	h.HandleMessage(context.Background(), message("/track_wallet not-an-address"))

	require.Len(t, api.sent, 1)
	assert.Equal(t, "Invalid Solana address", api.sent[0].Text)

	entries, err := mem.GetUserWatchlist(context.Background(), chatID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTrackWalletAndWatchlist(t *testing.T) {
	const addr = "So11111111111111111111111111111111111111112"
	h, api, mem, _, _ := newTestHandler()
	ctx := context.Background()

	h.HandleMessage(ctx, message("/track_wallet "+addr))
	h.HandleMessage(ctx, message("/watchlist"))

	texts := api.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "Now tracking wallet: "+addr, texts[0])
	assert.Contains(t, texts[1], addr)

	entries, err := mem.GetUserWatchlist(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, store.WatchWallet, entries[0].Kind)
}

func TestUntrack(t *testing.T) {
	h, api, mem, _, _ := newTestHandler()
	ctx := context.Background()

	entry, err := mem.AddToWatchlist(ctx, chatID, store.WatchToken, "SOL", "")
	require.NoError(t, err)

	h.HandleMessage(ctx, message("/untrack "+entry.ID))
	h.HandleMessage(ctx, message("/untrack "+entry.ID))

	texts := api.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "Removed from watchlist", texts[0])
	assert.Equal(t, "No watchlist entry with id: "+entry.ID, texts[1])
}

func TestFreeTextWalletLookup(t *testing.T) {
	const addr = "So11111111111111111111111111111111111111112"
	h, api, mem, chain, _ := newTestHandler()
	chain.balance = 2.5
	chain.sigs = []solana.SignatureInfo{{Signature: "sig1"}, {Signature: "sig2"}}
	chain.tokenCount = 3

	h.HandleMessage(context.Background(), message(addr))

	texts := api.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "Fetching wallet data for: "+addr, texts[0])
	assert.Equal(t, "Balance (SOL): 2.5000\nRecent transactions: 2", texts[1])

	snap, ok := mem.WalletSnapshotFor(chatID, addr)
	require.True(t, ok)
	assert.Equal(t, 2.5, snap.BalanceSOL)
	assert.Equal(t, 3, snap.TokenCount)
}

func TestFreeTextBalanceUnavailableIsNotZero(t *testing.T) {
	const addr = "So11111111111111111111111111111111111111112"
	h, api, mem, chain, _ := newTestHandler()
	chain.balanceErr = errors.New("rpc: status 502")

	h.HandleMessage(context.Background(), message(addr))

	texts := api.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "Wallet data is unavailable right now, try again later.", texts[1])
	assert.NotContains(t, texts[1], "0.0000")

	_, ok := mem.WalletSnapshotFor(chatID, addr)
	assert.False(t, ok)
}

func TestFreeTextNonAddressIsIgnored(t *testing.T) {
	h, api, _, _, _ := newTestHandler()

	h.HandleMessage(context.Background(), message("hello there"))

	assert.Empty(t, api.sent)
}

func TestToggleNotificationsIsDisplayOnly(t *testing.T) {
	h, api, mem, _, _ := newTestHandler()
	ctx := context.Background()

	h.HandleMessage(ctx, message("/toggle_notifications"))
	h.HandleMessage(ctx, message("/toggle_notifications"))

	texts := api.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "Notifications: ON", texts[0])
	assert.Equal(t, "Notifications: ON", texts[1])

	user, err := mem.GetOrCreateUser(ctx, chatID)
	require.NoError(t, err)
	assert.True(t, user.NotificationsEnabled)
}

func TestMenuCallbackSendsHintAndAnswers(t *testing.T) {
	h, api, _, _, _ := newTestHandler()

	h.HandleCallback(context.Background(), &models.CallbackQuery{
		ID:   "cb1",
		Data: "menu_alerts",
		Message: models.MaybeInaccessibleMessage{
			Message: &models.Message{Chat: models.Chat{ID: chatID}},
		},
	})

	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0].Text, "Alerts:")
	assert.Equal(t, []string{"cb1"}, api.answered)
}

func TestMenuCallbackUnknownDataStillAnswers(t *testing.T) {
	h, api, _, _, _ := newTestHandler()

	h.HandleCallback(context.Background(), &models.CallbackQuery{ID: "cb2", Data: "menu_bogus"})

	assert.Empty(t, api.sent)
	assert.Equal(t, []string{"cb2"}, api.answered)
}

func TestAlertTriggeredHonorsNotificationsFlag(t *testing.T) {
	h, api, mem, _, _ := newTestHandler()
	ctx := context.Background()

	_, err := mem.GetOrCreateUser(ctx, chatID)
	require.NoError(t, err)

	alert := store.PriceAlert{UserID: chatID, TokenMint: "SOL", TargetPrice: 150, Direction: store.AlertAbove}
	h.AlertTriggered(ctx, alert, 151.5)

	require.Len(t, api.sent, 1)
	assert.Equal(t, "🔔 Price alert triggered: SOL above $150\nCurrent price: $151.5000", api.sent[0].Text)

	require.NoError(t, mem.SetNotificationsEnabled(chatID, false))
	h.AlertTriggered(ctx, alert, 151.5)

	assert.Len(t, api.sent, 1)
}
