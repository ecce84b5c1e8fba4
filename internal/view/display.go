package view

import (
	"fmt"
	"os"
	"strings"

	"mexc_go/internal/book"
)

const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"

	clearScreen = "\033[2J\033[H"
)

// Display renders order-book snapshots to the terminal. It is driven from
// the manager's update sink and reads nothing but the snapshot it is given,
// so it stays safe on whatever goroutine delivers frames.
type Display struct {
	symbol string
	levels int
	out    *os.File
}

// NewDisplay creates a renderer showing up to levels per side.
func NewDisplay(symbol string, levels int) *Display {
	if levels <= 0 {
		levels = 10
	}
	return &Display{symbol: symbol, levels: levels, out: os.Stdout}
}

// Render draws the snapshot. Invalid books render with a prominent warning
// and the diagnostic instead of being suppressed.
func (d *Display) Render(snapshot book.Snapshot, latencyLine string) {
	var b strings.Builder

	b.WriteString(clearScreen)
	fmt.Fprintf(&b, "%s%s  ORDER BOOK: %s%s\n", bold, cyan, d.symbol, reset)
	fmt.Fprintf(&b, "  last_update_id=%d  %s\n\n", snapshot.LastUpdateID,
		snapshot.Timestamp.Format("15:04:05.000"))

	if !snapshot.Valid() {
		fmt.Fprintf(&b, "%s%s  !! BOOK INVALID: %s !!%s\n\n", bold, red,
			snapshot.InvalidReason(), reset)
	}

	fmt.Fprintf(&b, "  %s%-16s %16s %16s%s\n", bold, "SIDE", "PRICE", "QUANTITY", reset)

	// Asks print highest first so the touch sits next to the spread row.
	asks := snapshot.Asks
	if len(asks) > d.levels {
		asks = asks[:d.levels]
	}
	for i := len(asks) - 1; i >= 0; i-- {
		level := asks[i]
		color := reset
		if i == 0 {
			color = red + bold
		}
		fmt.Fprintf(&b, "  %sASK %28.8f %16.4f%s\n", color, level.Price, level.Quantity, reset)
	}

	spreadBPS := 0.0
	if snapshot.BestBid > 0 {
		spreadBPS = snapshot.Spread / snapshot.BestBid * 10000
	}
	fmt.Fprintf(&b, "  %s%s-- spread %.8f (%.2f bps)  microprice %.8f --%s\n",
		bold, yellow, snapshot.Spread, spreadBPS, snapshot.Microprice, reset)

	bids := snapshot.Bids
	if len(bids) > d.levels {
		bids = bids[:d.levels]
	}
	for i, level := range bids {
		color := reset
		if i == 0 {
			color = green + bold
		}
		fmt.Fprintf(&b, "  %sBID %28.8f %16.4f%s\n", color, level.Price, level.Quantity, reset)
	}

	fmt.Fprintf(&b, "\n  bid_vol=%.2f ask_vol=%.2f\n", snapshot.BidVolume, snapshot.AskVolume)
	if latencyLine != "" {
		fmt.Fprintf(&b, "  latency: %s\n", latencyLine)
	}

	fmt.Fprint(d.out, b.String())
}
