package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/predmarket/internal/adapters/notify"
	"github.com/alejandrodnm/predmarket/internal/domain"
	"github.com/alejandrodnm/predmarket/internal/engine"
)

// runDemo ejecuta un walkthrough guionizado del engine contra un mercado
// binario: órdenes LIMIT que descansan, una MARKET que cruza, y el estado
// del book, precios y trades después de cada paso.
func runDemo(ctx context.Context) error {
	eng := engine.New(nil, nil)
	console := notify.NewConsole()

	market, err := eng.CreateMarket(ctx,
		"Will it rain in Madrid tomorrow?",
		"Resolves YES if any official station records rainfall.",
		[]string{"YES", "NO"},
		time.Now().Add(24*time.Hour),
		"demo",
	)
	if err != nil {
		return fmt.Errorf("demo: create market: %w", err)
	}
	console.PrintMarket(market)

	// Alice quiere comprar 100 YES hasta 0.60: descansa como bid.
	limit := func(p float64) *float64 { return &p }
	aliceOrder, _, err := eng.PlaceOrder(ctx, market.ID, "YES", "alice",
		domain.SideBuy, domain.OrderTypeLimit, 100, limit(0.60))
	if err != nil {
		return fmt.Errorf("demo: alice order: %w", err)
	}
	slog.Info("limit bid resting", "trader", "alice", "order_id", aliceOrder.ID)

	// Bob vende 50 YES a 0.65: no cruza con 0.60, descansa como ask.
	if _, _, err := eng.PlaceOrder(ctx, market.ID, "YES", "bob",
		domain.SideSell, domain.OrderTypeLimit, 50, limit(0.65)); err != nil {
		return fmt.Errorf("demo: bob order: %w", err)
	}

	depth, err := eng.GetOrderBookDepth(market.ID, "YES", 5)
	if err != nil {
		return fmt.Errorf("demo: depth: %w", err)
	}
	console.PrintDepth("YES", depth)

	// Charlie compra 30 YES a mercado: cruza contra el ask de Bob a 0.65.
	_, trades, err := eng.PlaceOrder(ctx, market.ID, "YES", "charlie",
		domain.SideBuy, domain.OrderTypeMarket, 30, nil)
	if err != nil {
		return fmt.Errorf("demo: charlie order: %w", err)
	}
	console.PrintTrades(trades)

	depth, err = eng.GetOrderBookDepth(market.ID, "YES", 5)
	if err != nil {
		return fmt.Errorf("demo: depth after trade: %w", err)
	}
	console.PrintDepth("YES", depth)

	prices, err := eng.GetMarketPrices(market.ID)
	if err != nil {
		return fmt.Errorf("demo: prices: %w", err)
	}
	console.PrintPrices(prices)

	// Alice retira su bid; la segunda cancelación ya no encuentra nada.
	slog.Info("cancelling resting bid", "cancelled", eng.CancelOrder(ctx, aliceOrder.ID))
	slog.Info("cancelling again", "cancelled", eng.CancelOrder(ctx, aliceOrder.ID))

	if err := eng.ResolveMarket(ctx, market.ID, "YES"); err != nil {
		return fmt.Errorf("demo: resolve: %w", err)
	}

	final, err := eng.GetMarket(market.ID)
	if err != nil {
		return fmt.Errorf("demo: final market: %w", err)
	}
	console.PrintMarket(final)

	return nil
}
