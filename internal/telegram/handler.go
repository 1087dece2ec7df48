package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tg "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/metasolana/metasolanabot/internal/price"
	"github.com/metasolana/metasolanabot/internal/solana"
	"github.com/metasolana/metasolanabot/internal/store"
)

// botAPI is the slice of *tg.Bot the handler sends through. Narrow so
// tests can substitute a recording fake.
type botAPI interface {
	SendMessage(ctx context.Context, params *tg.SendMessageParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *tg.AnswerCallbackQueryParams) (bool, error)
}

// ChainReader is what the router needs from the chain client.
type ChainReader interface {
	WalletBalance(ctx context.Context, addr string) (float64, error)
	WalletTransactions(ctx context.Context, addr string, limit int) ([]solana.SignatureInfo, error)
	TokenAccountCount(ctx context.Context, owner string) (int, error)
	TokenMetadata(ctx context.Context, mint string) (solana.TokenMeta, error)
}

// QuoteReader is what the router needs from the price client.
type QuoteReader interface {
	TokenPrice(ctx context.Context, symbol string) (price.Quote, error)
}

// Handler routes incoming Telegram updates to command handlers. One
// update runs one handler to completion; there is no session state.
type Handler struct {
	bot    *tg.Bot
	api    botAPI
	st     store.Store
	chain  ChainReader
	quotes QuoteReader
}

// New constructs the router with its injected dependencies.
func New(bot *tg.Bot, st store.Store, chain ChainReader, quotes QuoteReader) *Handler {
	return &Handler{bot: bot, api: bot, st: st, chain: chain, quotes: quotes}
}

// Run starts long-polling and handles updates until ctx is done.
func (h *Handler) Run(ctx context.Context) {
	h.bot.RegisterHandler(tg.HandlerTypeMessageText, "", tg.MatchTypePrefix, func(c context.Context, _ *tg.Bot, u *models.Update) {
		if u.Message == nil {
			return
		}
		h.HandleMessage(c, u.Message)
	})
	h.bot.RegisterHandler(tg.HandlerTypeCallbackQueryData, "menu_", tg.MatchTypePrefix, func(c context.Context, _ *tg.Bot, u *models.Update) {
		if u.CallbackQuery == nil {
			return
		}
		h.HandleCallback(c, u.CallbackQuery)
	})
	h.bot.Start(ctx)
}

// HandleMessage dispatches one inbound message: commands through the
// command table, anything else through the free-text path.
func (h *Handler) HandleMessage(ctx context.Context, m *models.Message) {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return
	}
	if strings.HasPrefix(text, "/") {
		h.dispatchCommand(ctx, m.Chat.ID, text)
		return
	}
	h.handleFreeText(ctx, m.Chat.ID, text)
}

func (h *Handler) dispatchCommand(ctx context.Context, chatID int64, text string) {
	fields := strings.Fields(text)
	name := strings.ToLower(fields[0])
	if idx := strings.IndexRune(name, '@'); idx != -1 {
		name = name[:idx]
	}

	cmd, ok := commands[name]
	if !ok {
		h.sendHTML(ctx, chatID, "unknown command. try <code>/help</code>")
		return
	}

	args := fields[1:]
	if len(args) < cmd.minArgs {
		h.sendHTML(ctx, chatID, "usage: <code>"+escapeHTML(cmd.usage)+"</code>")
		return
	}
	cmd.run(ctx, h, chatID, args)
}

// handleFreeText treats a message that parses as a Solana address as a
// wallet lookup. Anything else is silently ignored.
func (h *Handler) handleFreeText(ctx context.Context, chatID int64, text string) {
	if !solana.IsValidAddress(text) {
		return
	}

	h.sendText(ctx, chatID, "Fetching wallet data for: "+text)

	balance, err := h.chain.WalletBalance(ctx, text)
	if err != nil {
		log.Printf("[telegram] balance for %s: %v", text, err)
		h.sendText(ctx, chatID, "Wallet data is unavailable right now, try again later.")
		return
	}

	txs, err := h.chain.WalletTransactions(ctx, text, 5)
	if err != nil {
		log.Printf("[telegram] signatures for %s: %v", text, err)
	}

	h.sendText(ctx, chatID, fmt.Sprintf("Balance (SOL): %.4f\nRecent transactions: %d", balance, len(txs)))
	h.refreshWalletSnapshot(ctx, chatID, text, balance)
}

// refreshWalletSnapshot upserts the last-known state for a wallet the
// user just looked up. Best effort; failures only log.
func (h *Handler) refreshWalletSnapshot(ctx context.Context, chatID int64, addr string, balance float64) {
	count, err := h.chain.TokenAccountCount(ctx, addr)
	if err != nil {
		log.Printf("[telegram] token account count for %s: %v", addr, err)
	}
	snap := store.WalletSnapshot{
		UserID:        chatID,
		WalletAddress: addr,
		BalanceSOL:    balance,
		TokenCount:    count,
		LastRefreshed: time.Now().UTC(),
	}
	if err := h.st.UpdateUserWallet(ctx, snap); err != nil {
		log.Printf("[telegram] wallet snapshot for %d: %v", chatID, err)
	}
}

// menuHints maps a menu button's callback data to the category hint.
var menuHints = map[string]string{
	"menu_wallet":   "Wallet Tools:\nSend your Solana wallet address to view its balance.",
	"menu_token":    "Token Tools:\nUse /token <symbol_or_mint> to look up token info.",
	"menu_tracking": "Tracking:\nUse /track_wallet <address> or /track_token <symbol_or_mint>",
	"menu_alerts":   "Alerts:\nUse /alert_price <symbol> <above|below> <price> to create price alerts.",
	"menu_settings": "Settings:\nUse /toggle_notifications to view notifications.",
}

// HandleCallback answers a menu button press with the category hint.
func (h *Handler) HandleCallback(ctx context.Context, q *models.CallbackQuery) {
	if hint, ok := menuHints[q.Data]; ok {
		if q.Message.Message != nil {
			h.sendText(ctx, q.Message.Message.Chat.ID, hint)
		}
	}
	if _, err := h.api.AnswerCallbackQuery(ctx, &tg.AnswerCallbackQueryParams{CallbackQueryID: q.ID}); err != nil {
		log.Printf("[telegram] answer callback: %v", err)
	}
}

// AlertTriggered tells an alert's owner it fired, honoring the user's
// notifications flag. Called by the sweep after deactivation.
func (h *Handler) AlertTriggered(ctx context.Context, alert store.PriceAlert, current float64) {
	user, err := h.st.GetOrCreateUser(ctx, alert.UserID)
	if err != nil {
		log.Printf("[telegram] alert notify user %d: %v", alert.UserID, err)
		return
	}
	if !user.NotificationsEnabled {
		return
	}
	h.sendText(ctx, alert.UserID, fmt.Sprintf(
		"🔔 Price alert triggered: %s %s $%s\nCurrent price: $%.4f",
		alert.TokenMint, alert.Direction, formatTarget(alert.TargetPrice), current,
	))
}

func (h *Handler) sendText(ctx context.Context, chatID int64, text string) {
	_, err := h.api.SendMessage(ctx, &tg.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		log.Printf("[telegram] send error: %v", err)
	}
}

func (h *Handler) sendHTML(ctx context.Context, chatID int64, html string) {
	disable := true
	_, err := h.api.SendMessage(ctx, &tg.SendMessageParams{
		ChatID:    chatID,
		Text:      html,
		ParseMode: models.ParseModeHTML,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: &disable,
		},
	})
	if err != nil {
		log.Printf("[telegram] send error: %v", err)
	}
}

func (h *Handler) sendMenu(ctx context.Context, chatID int64) {
	kb := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "Wallet Tools", CallbackData: "menu_wallet"}},
			{{Text: "Token Tools", CallbackData: "menu_token"}},
			{{Text: "Tracking", CallbackData: "menu_tracking"}},
			{{Text: "Alerts", CallbackData: "menu_alerts"}},
			{{Text: "Settings", CallbackData: "menu_settings"}},
		},
	}
	_, err := h.api.SendMessage(ctx, &tg.SendMessageParams{
		ChatID:      chatID,
		Text:        "Welcome to MetasolanaBot! Track wallets and tokens on Solana. Choose an option:",
		ReplyMarkup: kb,
	})
	if err != nil {
		log.Printf("[telegram] send error: %v", err)
	}
}
