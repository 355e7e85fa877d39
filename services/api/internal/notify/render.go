package notify

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/cimillas/site-market/services/api/internal/domain"
)

// Render formats an event as a Telegram HTML message. Payload values are
// escaped; unknown event types fall back to a key/value dump.
func Render(event domain.Event) string {
	p := payload(event.Payload)
	var b strings.Builder

	switch event.Type {
	case domain.EventOfferCreated:
		b.WriteString("💰 <b>New price offer</b>\n\n")
		fmt.Fprintf(&b, "🌐 Site: %s\n", p.get("site_title"))
		fmt.Fprintf(&b, "🔗 URL: %s\n", p.get("site_url"))
		fmt.Fprintf(&b, "👤 User: %s\n", p.get("username"))
		fmt.Fprintf(&b, "💵 Offered: %s\n", p.get("price"))
		fmt.Fprintf(&b, "🏷 Fixed price: %s\n", p.or("fixed_price", "not set"))
		fmt.Fprintf(&b, "⏳ Bidding closes: %s", p.time("expires_at"))
	case domain.EventAuctionWon:
		b.WriteString("🏆 <b>Auction won</b>\n\n")
		fmt.Fprintf(&b, "🌐 Site: %s\n", p.get("site_title"))
		fmt.Fprintf(&b, "🔗 URL: %s\n", p.get("site_url"))
		fmt.Fprintf(&b, "👤 Winner: %s\n", p.or("username", p.get("user_id")))
		fmt.Fprintf(&b, "💵 Price: %s\n", p.get("price"))
		fmt.Fprintf(&b, "⏰ Buy before: %s", p.time("purchase_deadline"))
	case domain.EventLastChance:
		b.WriteString("⚠️ <b>Purchase deadline is close</b>\n\n")
		fmt.Fprintf(&b, "🌐 Site: %s\n", p.or("site_title", p.get("site_id")))
		fmt.Fprintf(&b, "👤 Winner: %s\n", p.get("user_id"))
		fmt.Fprintf(&b, "💵 Price: %s\n", p.get("price"))
		fmt.Fprintf(&b, "⏰ Deadline: %s", p.time("purchase_deadline"))
	case domain.EventUserBlocked:
		b.WriteString("🚫 <b>User blocked</b>\n\n")
		fmt.Fprintf(&b, "👤 User: %s\n", p.get("username"))
		fmt.Fprintf(&b, "📝 Reason: %s\n", p.or("reason", "not given"))
		if _, ok := event.Payload["blocked_until"]; ok {
			fmt.Fprintf(&b, "⏳ Until: %s", p.time("blocked_until"))
		} else {
			b.WriteString("⏳ Until: indefinitely")
		}
	case domain.EventUserUnblocked:
		b.WriteString("✅ <b>User unblocked</b>\n\n")
		fmt.Fprintf(&b, "👤 User: %s", p.get("username"))
	case domain.EventOrderCreated:
		b.WriteString("🛒 <b>New order</b>\n\n")
		fmt.Fprintf(&b, "🆔 Order: %s\n", p.get("order_id"))
		fmt.Fprintf(&b, "👤 User: %s\n", p.get("username"))
		fmt.Fprintf(&b, "💵 Total: %s\n", p.get("total"))
		fmt.Fprintf(&b, "📦 Items: %s\n", p.get("items"))
		fmt.Fprintf(&b, "💳 Payment: %s", p.or("payment_method", "not given"))
	default:
		fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(string(event.Type)))
		keys := make([]string, 0, len(event.Payload))
		for k := range event.Payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\n%s: %s", html.EscapeString(k), p.get(k))
		}
	}
	return b.String()
}

// RenderStats formats the /stats reply.
func RenderStats(s domain.MarketStats) string {
	var b strings.Builder
	b.WriteString("📊 <b>Marketplace stats</b>\n\n")
	fmt.Fprintf(&b, "👥 Users: %d (blocked %d)\n", s.Users, s.BlockedUsers)
	fmt.Fprintf(&b, "🌐 Available sites: %d\n", s.AvailableSites)
	fmt.Fprintf(&b, "💰 Sold sites: %d\n\n", s.SoldSites)
	fmt.Fprintf(&b, "🎯 Active offers: %d\n", s.ActiveOffers)
	fmt.Fprintf(&b, "🏆 Awaiting purchase: %d\n\n", s.WinningOffers)
	fmt.Fprintf(&b, "🛒 Orders: %d pending, %d confirmed\n", s.PendingOrders, s.ConfirmedOrders)
	fmt.Fprintf(&b, "💵 Revenue: %s", s.Revenue.StringFixed(2))
	return b.String()
}

type payload map[string]string

func (p payload) get(key string) string {
	return html.EscapeString(p[key])
}

func (p payload) or(key, fallback string) string {
	if v := p[key]; v != "" {
		return html.EscapeString(v)
	}
	return fallback
}

func (p payload) time(key string) string {
	t, err := time.Parse(time.RFC3339, p[key])
	if err != nil {
		return p.get(key)
	}
	return t.UTC().Format("2006-01-02 15:04 MST")
}
