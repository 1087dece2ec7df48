package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/metasolana/metasolanabot/internal/price"
	"github.com/metasolana/metasolanabot/internal/solana"
)

// formatQuote renders one token quote the way the bot always has:
// 4-decimal price, signed 2-decimal change with a direction marker,
// grouped integer market cap.
func formatQuote(q price.Quote) string {
	indicator := "📈"
	if q.Change24h < 0 {
		indicator = "📉"
	}
	return fmt.Sprintf(
		"Token: %s\nPrice: $%.4f\n24h Change: %s %.2f%%\nMarket Cap: $%s",
		q.Symbol, q.Price, indicator, q.Change24h, groupThousands(q.MarketCap),
	)
}

func formatTokenMeta(meta solana.TokenMeta) string {
	name := meta.Name
	if name == "" {
		name = "(unnamed)"
	}
	return fmt.Sprintf("Token: %s\nName: %s\nDecimals: %d\nMint: %s", meta.Symbol, name, meta.Decimals, meta.Mint)
}

// formatTarget prints a user-chosen price without trailing zeros, so an
// alert set at 150 echoes back as "150", not "150.0000".
func formatTarget(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// groupThousands renders v as a grouped integer ("1,234,567").
func groupThousands(v float64) string {
	if v < 0 {
		return "-" + groupThousands(-v)
	}
	s := strconv.FormatFloat(v, 'f', 0, 64)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func nowUTC() time.Time { return time.Now().UTC() }

func escapeHTML(s string) string {
	replacer := strings.NewReplacer(
		`&`, "&amp;",
		`<`, "&lt;",
		`>`, "&gt;",
		`"`, "&quot;",
	)
	return replacer.Replace(s)
}
