package telegram

import (
	"context"
	"errors"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/metasolana/metasolanabot/internal/price"
	"github.com/metasolana/metasolanabot/internal/solana"
	"github.com/metasolana/metasolanabot/internal/store"
)

// command declares one recognized slash command: its argument shape and
// the handler it dispatches to. The table replaces regex matching so
// parsing rules stay auditable in one place.
type command struct {
	name    string
	minArgs int
	usage   string
	help    string
	run     func(ctx context.Context, h *Handler, chatID int64, args []string)
}

var commandList = []command{
	{name: "/start", usage: "/start", help: "show the main menu", run: cmdStart},
	{name: "/help", usage: "/help", help: "this menu"},
	{name: "/token", minArgs: 1, usage: "/token <symbol_or_mint>", help: "look up token price or mint metadata", run: cmdToken},
	{name: "/track_wallet", minArgs: 1, usage: "/track_wallet <address>", help: "add a wallet to your watchlist", run: cmdTrackWallet},
	{name: "/track_token", minArgs: 1, usage: "/track_token <symbol_or_mint>", help: "add a token to your watchlist", run: cmdTrackToken},
	{name: "/watchlist", usage: "/watchlist", help: "list your watchlist entries", run: cmdWatchlist},
	{name: "/untrack", minArgs: 1, usage: "/untrack <entry_id>", help: "remove a watchlist entry", run: cmdUntrack},
	{name: "/alert_price", minArgs: 3, usage: "/alert_price <symbol> <above|below> <price>", help: "create a one-shot price alert", run: cmdAlertPrice},
	{name: "/alerts", usage: "/alerts", help: "list your active price alerts", run: cmdAlerts},
	{name: "/toggle_notifications", usage: "/toggle_notifications", help: "show your notifications setting", run: cmdToggleNotifications},
}

// cmdHelp iterates commandList, so wiring it up in the literal above
// would form an initialization cycle; assign it after initialization.
func init() {
	commands["/help"].run = cmdHelp
}

var commands = func() map[string]*command {
	m := make(map[string]*command, len(commandList))
	for i := range commandList {
		m[commandList[i].name] = &commandList[i]
	}
	return m
}()

func cmdStart(ctx context.Context, h *Handler, chatID int64, _ []string) {
	if _, err := h.st.GetOrCreateUser(ctx, chatID); err != nil {
		log.Printf("[telegram] get-or-create user %d: %v", chatID, err)
	}
	h.sendMenu(ctx, chatID)
}

func cmdHelp(ctx context.Context, h *Handler, chatID int64, _ []string) {
	var b strings.Builder
	b.WriteString("🛠 <b>MetasolanaBot</b>\n\n<b>Commands:</b>\n")
	for _, c := range commandList {
		b.WriteString("- <code>")
		b.WriteString(escapeHTML(c.usage))
		b.WriteString("</code> - ")
		b.WriteString(c.help)
		b.WriteString("\n")
	}
	b.WriteString("\nSend a wallet address as plain text to view its balance.")
	h.sendHTML(ctx, chatID, b.String())
}

func cmdToken(ctx context.Context, h *Handler, chatID int64, args []string) {
	query := strings.Join(args, " ")
	h.sendText(ctx, chatID, "Looking up token: "+query)

	if solana.IsValidAddress(query) {
		h.lookupMint(ctx, chatID, query)
		return
	}

	quote, err := h.quotes.TokenPrice(ctx, query)
	switch {
	case err == nil:
		h.sendText(ctx, chatID, formatQuote(quote))
	case errors.Is(err, price.ErrUnknownToken):
		h.sendText(ctx, chatID, "Could not find token: "+query)
	default:
		log.Printf("[telegram] token price %s: %v", query, err)
		h.sendText(ctx, chatID, "Price service is unavailable right now, try again later.")
	}
}

// lookupMint resolves on-chain metadata for a mint address and caches it
// in the token cache table. Price is attempted by symbol afterwards.
func (h *Handler) lookupMint(ctx context.Context, chatID int64, mint string) {
	meta, err := h.chain.TokenMetadata(ctx, mint)
	if err != nil {
		log.Printf("[telegram] token metadata %s: %v", mint, err)
		h.sendText(ctx, chatID, "Could not find token: "+mint)
		return
	}

	if err := h.st.CacheTokenMetadata(ctx, store.TokenCacheEntry{
		Mint:        meta.Mint,
		Symbol:      meta.Symbol,
		Name:        meta.Name,
		Decimals:    meta.Decimals,
		LastUpdated: nowUTC(),
	}); err != nil {
		log.Printf("[telegram] cache token %s: %v", mint, err)
	}

	msg := formatTokenMeta(meta)
	if quote, err := h.quotes.TokenPrice(ctx, meta.Symbol); err == nil {
		msg += "\n\n" + formatQuote(quote)
	}
	h.sendText(ctx, chatID, msg)
}

func cmdTrackWallet(ctx context.Context, h *Handler, chatID int64, args []string) {
	addr := args[0]
	if !solana.IsValidAddress(addr) {
		h.sendText(ctx, chatID, "Invalid Solana address")
		return
	}
	if _, err := h.st.AddToWatchlist(ctx, chatID, store.WatchWallet, addr, ""); err != nil {
		log.Printf("[telegram] track wallet for %d: %v", chatID, err)
		h.sendText(ctx, chatID, "Failed to add wallet to watchlist")
		return
	}
	h.sendText(ctx, chatID, "Now tracking wallet: "+addr)
}

func cmdTrackToken(ctx context.Context, h *Handler, chatID int64, args []string) {
	token := strings.Join(args, " ")
	if _, err := h.st.AddToWatchlist(ctx, chatID, store.WatchToken, token, ""); err != nil {
		log.Printf("[telegram] track token for %d: %v", chatID, err)
		h.sendText(ctx, chatID, "Failed to add token to watchlist")
		return
	}
	h.sendText(ctx, chatID, "Now tracking token: "+token)
}

func cmdWatchlist(ctx context.Context, h *Handler, chatID int64, _ []string) {
	entries, err := h.st.GetUserWatchlist(ctx, chatID)
	if err != nil {
		log.Printf("[telegram] watchlist for %d: %v", chatID, err)
		h.sendText(ctx, chatID, "Could not load your watchlist right now.")
		return
	}
	if len(entries) == 0 {
		h.sendText(ctx, chatID, "Your watchlist is empty. Use /track_wallet or /track_token to add entries.")
		return
	}

	var b strings.Builder
	b.WriteString("📋 <b>Your watchlist:</b>\n")
	for _, e := range entries {
		b.WriteString("• ")
		b.WriteString(string(e.Kind))
		b.WriteString(" <code>")
		b.WriteString(escapeHTML(e.Address))
		b.WriteString("</code>")
		if e.Alias != "" {
			b.WriteString(" (")
			b.WriteString(escapeHTML(e.Alias))
			b.WriteString(")")
		}
		b.WriteString("\n  id: <code>")
		b.WriteString(escapeHTML(e.ID))
		b.WriteString("</code>\n")
	}
	b.WriteString("\nRemove one with <code>/untrack &lt;entry_id&gt;</code>")
	h.sendHTML(ctx, chatID, b.String())
}

func cmdUntrack(ctx context.Context, h *Handler, chatID int64, args []string) {
	entryID := args[0]
	err := h.st.RemoveFromWatchlist(ctx, entryID)
	switch {
	case err == nil:
		h.sendText(ctx, chatID, "Removed from watchlist")
	case errors.Is(err, store.ErrNotFound):
		h.sendText(ctx, chatID, "No watchlist entry with id: "+entryID)
	default:
		log.Printf("[telegram] untrack %s: %v", entryID, err)
		h.sendText(ctx, chatID, "Failed to remove watchlist entry")
	}
}

func cmdAlertPrice(ctx context.Context, h *Handler, chatID int64, args []string) {
	symbol := args[0]
	direction := store.AlertDirection(strings.ToLower(args[1]))
	if direction != store.AlertAbove && direction != store.AlertBelow {
		h.sendText(ctx, chatID, "Direction must be above or below")
		return
	}
	target, err := strconv.ParseFloat(args[2], 64)
	if err != nil || target <= 0 || math.IsInf(target, 0) || math.IsNaN(target) {
		h.sendText(ctx, chatID, "Target price must be a positive number")
		return
	}

	if _, err := h.st.CreatePriceAlert(ctx, chatID, symbol, target, direction); err != nil {
		log.Printf("[telegram] create alert for %d: %v", chatID, err)
		h.sendText(ctx, chatID, "Failed to create alert")
		return
	}
	h.sendText(ctx, chatID, "Price alert set: "+symbol+" "+string(direction)+" $"+formatTarget(target))
}

func cmdAlerts(ctx context.Context, h *Handler, chatID int64, _ []string) {
	alerts, err := h.st.ActivePriceAlerts(ctx, chatID)
	if err != nil {
		log.Printf("[telegram] alerts for %d: %v", chatID, err)
		h.sendText(ctx, chatID, "Could not load your alerts right now.")
		return
	}
	if len(alerts) == 0 {
		h.sendText(ctx, chatID, "No active price alerts")
		return
	}

	var b strings.Builder
	b.WriteString("Active alerts:\n")
	for _, a := range alerts {
		b.WriteString("• ")
		b.WriteString(a.TokenMint)
		b.WriteString(" ")
		b.WriteString(string(a.Direction))
		b.WriteString(" $")
		b.WriteString(formatTarget(a.TargetPrice))
		b.WriteString("\n")
	}
	h.sendText(ctx, chatID, strings.TrimRight(b.String(), "\n"))
}

func cmdToggleNotifications(ctx context.Context, h *Handler, chatID int64, _ []string) {
	user, err := h.st.GetOrCreateUser(ctx, chatID)
	if err != nil {
		log.Printf("[telegram] toggle notifications for %d: %v", chatID, err)
		h.sendText(ctx, chatID, "Settings are unavailable right now.")
		return
	}
	state := "OFF"
	if user.NotificationsEnabled {
		state = "ON"
	}
	h.sendText(ctx, chatID, "Notifications: "+state)
}
