package notify

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/predmarket/internal/domain"
)

// Console imprime mercados, books y trades en formato tabla.
// Es el renderer del modo demo; no participa en el path de matching.
type Console struct {
	out io.Writer
}

// NewConsole crea un renderer que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un renderer para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// PrintMarket imprime el resumen de un mercado.
func (c *Console) PrintMarket(m *domain.Market) {
	fmt.Fprintf(c.out, "\nMarket %s\n", m.ID)
	fmt.Fprintf(c.out, "  Question:   %s\n", m.Question)
	fmt.Fprintf(c.out, "  Outcomes:   %s\n", joinOutcomes(m.Outcomes))
	fmt.Fprintf(c.out, "  Resolves:   %s\n", m.ResolutionTime.Format(time.RFC3339))
	fmt.Fprintf(c.out, "  Volume:     %.2f\n", m.TotalVolume)
	fmt.Fprintf(c.out, "  Resolved:   %v\n", m.Resolved)
	if m.Resolved {
		fmt.Fprintf(c.out, "  Winner:     %s\n", m.WinningOutcome)
	}
}

// PrintDepth imprime la profundidad del book de un outcome.
// Asks primero (el mejor abajo, pegado al spread), luego bids.
func (c *Console) PrintDepth(outcome string, depth domain.Depth) {
	fmt.Fprintf(c.out, "\nOrder book — %s\n", outcome)
	if len(depth.Bids) == 0 && len(depth.Asks) == 0 {
		fmt.Fprintln(c.out, "  (empty)")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Side", "Price", "Size")

	for i := len(depth.Asks) - 1; i >= 0; i-- {
		entry := depth.Asks[i]
		table.Append("ASK", fmt.Sprintf("%.4f", entry.Price), fmt.Sprintf("%.2f", entry.Size))
	}
	for _, entry := range depth.Bids {
		table.Append("BID", fmt.Sprintf("%.4f", entry.Price), fmt.Sprintf("%.2f", entry.Size))
	}
	table.Render()

	if mid := depth.Midpoint(); mid > 0 {
		fmt.Fprintf(c.out, "  mid: %.4f  spread: %.4f\n", mid, depth.BestAsk()-depth.BestBid())
	}
}

// PrintTrades imprime los trades más recientes.
func (c *Console) PrintTrades(trades []domain.Trade) {
	fmt.Fprintf(c.out, "\nRecent trades (%d)\n", len(trades))
	if len(trades) == 0 {
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Trade", "Outcome", "Price", "Qty", "Buyer", "Seller")

	for _, t := range trades {
		table.Append(
			shortID(t.ID),
			t.Outcome,
			fmt.Sprintf("%.4f", t.Price),
			fmt.Sprintf("%.2f", t.Quantity),
			t.BuyerID,
			t.SellerID,
		)
	}
	table.Render()
}

// PrintPrices imprime el precio actual (mid) por outcome.
func (c *Console) PrintPrices(prices map[string]*float64) {
	fmt.Fprintln(c.out, "\nCurrent prices")

	outcomes := make([]string, 0, len(prices))
	for outcome := range prices {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)

	for _, outcome := range outcomes {
		if p := prices[outcome]; p != nil {
			fmt.Fprintf(c.out, "  %-10s %.4f (%.2f%%)\n", outcome, *p, *p*100)
		} else {
			fmt.Fprintf(c.out, "  %-10s no market\n", outcome)
		}
	}
}

// --- helpers internos ---

func joinOutcomes(outcomes []string) string {
	out := ""
	for i, o := range outcomes {
		if i > 0 {
			out += ", "
		}
		out += o
	}
	return out
}

// shortID trunca un UUID para que quepa en la tabla.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
