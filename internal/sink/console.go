package sink

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"mempool-flow/internal/domain"
)

var consoleHeader = []string{
	"Time", "Side", "SOL In/Out", "Token In/Out", "Price (SOL)", "Price (USD)", "Tx Hash",
}

// Console renders each batch as a table.
type Console struct {
	mu   sync.Mutex
	out  io.Writer
	buy  func(a ...interface{}) string
	sell func(a ...interface{}) string
}

// NewConsole creates a console sink writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{
		out:  out,
		buy:  color.New(color.FgGreen, color.Bold).SprintFunc(),
		sell: color.New(color.FgRed, color.Bold).SprintFunc(),
	}
}

// Emit writes one table for the batch. Empty batches print nothing.
func (c *Console) Emit(_ context.Context, trades []domain.InferredTrade) error {
	if len(trades) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	table := tablewriter.NewWriter(c.out)
	table.SetHeader(consoleHeader)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, t := range trades {
		table.Append(c.row(t))
	}
	table.Render()
	return nil
}

func (c *Console) row(t domain.InferredTrade) []string {
	side := c.sell(t.Side.String())
	if t.Side == domain.SideBuy {
		side = c.buy(t.Side.String())
	}
	return []string{
		t.Time.UTC().Format("15:04:05"),
		side,
		fmt.Sprintf("%.6f", t.SOL),
		fmt.Sprintf("%.4f", t.Token),
		fmt.Sprintf("%.8f", t.PriceSOL),
		formatUSD(t.PriceUSD),
		t.Signature,
	}
}

// formatUSD renders an unknown (zero) price as "-".
func formatUSD(p float64) string {
	if p == 0 {
		return "-"
	}
	return fmt.Sprintf("$%.5f", p)
}
