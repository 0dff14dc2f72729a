package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/predmarket/internal/domain"
	"github.com/alejandrodnm/predmarket/internal/ports"
)

// TradingEngine orquesta los mercados y sus books: valida órdenes, las
// enruta al book correcto, convierte matches en trades y mantiene el
// ledger y el índice global de órdenes.
//
// Todo el estado vive bajo un RWMutex único: las mutaciones (place,
// cancel, create, resolve) son atómicas de cara al caller, y ninguna
// validación fallida deja mutación observable. Journal y feed son
// colaboradores best-effort: sus errores se loggean y no afectan al
// resultado de la operación.
type TradingEngine struct {
	mu      sync.RWMutex
	markets map[string]*domain.Market
	books   map[string]map[string]*OrderBook // marketID → outcome → book
	orders  map[string]*domain.Order         // índice global de órdenes vivas
	trades  []domain.Trade                   // ledger append-only

	journal ports.Journal
	feed    ports.TradeFeed

	now   func() time.Time
	newID func() string
}

// New crea un engine vacío. journal y feed pueden ser nil.
func New(journal ports.Journal, feed ports.TradeFeed) *TradingEngine {
	return &TradingEngine{
		markets: make(map[string]*domain.Market),
		books:   make(map[string]map[string]*OrderBook),
		orders:  make(map[string]*domain.Order),
		journal: journal,
		feed:    feed,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// CreateMarket registra un mercado nuevo con un book vacío por outcome.
// Valida los outcomes: lista no vacía, sin nombres en blanco ni duplicados.
func (e *TradingEngine) CreateMarket(ctx context.Context, question, description string, outcomes []string, resolutionTime time.Time, creatorID string) (*domain.Market, error) {
	if err := validateOutcomes(outcomes); err != nil {
		return nil, fmt.Errorf("engine.CreateMarket: %w", err)
	}

	e.mu.Lock()
	market := domain.NewMarket(e.newID(), question, description, outcomes, resolutionTime, creatorID)
	e.markets[market.ID] = market

	books := make(map[string]*OrderBook, len(outcomes))
	for _, outcome := range outcomes {
		books[outcome] = NewOrderBook(market.ID, outcome)
	}
	e.books[market.ID] = books
	snapshot := *market
	e.mu.Unlock()

	if e.journal != nil {
		if err := e.journal.SaveMarket(ctx, &snapshot); err != nil {
			slog.Warn("journal error", "op", "save_market", "market_id", market.ID, "err", err)
		}
	}
	return &snapshot, nil
}

// PlaceOrder valida, construye y ejecuta una orden, y devuelve la orden
// (posiblemente parcial) junto a los trades generados por esta llamada.
//
// La cadena de validación corta en el primer fallo, antes de cualquier
// mutación: mercado existe → activo → outcome válido → LIMIT lleva
// precio → cantidad positiva → precio en (0,1).
func (e *TradingEngine) PlaceOrder(ctx context.Context, marketID, outcome, traderID string, side domain.Side, orderType domain.OrderType, quantity float64, price *float64) (*domain.Order, []domain.Trade, error) {
	e.mu.Lock()

	market, ok := e.markets[marketID]
	if !ok {
		e.mu.Unlock()
		return nil, nil, fmt.Errorf("engine.PlaceOrder: market %s: %w", marketID, domain.ErrMarketNotFound)
	}
	if !market.IsActive(e.now()) {
		e.mu.Unlock()
		return nil, nil, fmt.Errorf("engine.PlaceOrder: market %s: %w", marketID, domain.ErrMarketInactive)
	}
	if !market.HasOutcome(outcome) {
		e.mu.Unlock()
		return nil, nil, fmt.Errorf("engine.PlaceOrder: outcome %q in market %s: %w", outcome, marketID, domain.ErrInvalidOutcome)
	}
	if orderType == domain.OrderTypeLimit && price == nil {
		e.mu.Unlock()
		return nil, nil, fmt.Errorf("engine.PlaceOrder: %w", domain.ErrMissingPrice)
	}
	if quantity <= 0 {
		e.mu.Unlock()
		return nil, nil, fmt.Errorf("engine.PlaceOrder: quantity %v: %w", quantity, domain.ErrInvalidQuantity)
	}
	if price != nil && (*price <= 0 || *price >= 1) {
		e.mu.Unlock()
		return nil, nil, fmt.Errorf("engine.PlaceOrder: price %v: %w", *price, domain.ErrInvalidPrice)
	}

	order := &domain.Order{
		ID:        e.newID(),
		MarketID:  marketID,
		Outcome:   outcome,
		TraderID:  traderID,
		Side:      side,
		Type:      orderType,
		Quantity:  quantity,
		Timestamp: e.now().UTC(),
	}
	if orderType == domain.OrderTypeLimit {
		p := *price
		order.Price = &p
	}
	e.orders[order.ID] = order

	matches, err := e.books[marketID][outcome].AddOrder(order)
	if err != nil {
		// No puede pasar con ids generados aquí; si pasa, la orden no entró.
		delete(e.orders, order.ID)
		e.mu.Unlock()
		return nil, nil, fmt.Errorf("engine.PlaceOrder: %w", err)
	}

	trades := make([]domain.Trade, 0, len(matches))
	for _, m := range matches {
		trade := domain.Trade{
			ID:        e.newID(),
			MarketID:  marketID,
			Outcome:   outcome,
			BuyerID:   m.Buyer.TraderID,
			SellerID:  m.Seller.TraderID,
			Price:     m.Price,
			Quantity:  m.Quantity,
			Timestamp: e.now().UTC(),
		}
		trades = append(trades, trade)
		e.trades = append(e.trades, trade)
		market.TotalVolume += m.Quantity

		// Las órdenes completamente ejecutadas salen del índice global.
		if m.Buyer.IsFilled() {
			delete(e.orders, m.Buyer.ID)
		}
		if m.Seller.IsFilled() {
			delete(e.orders, m.Seller.ID)
		}
	}

	// Una MARKET nunca descansa: lo que no cruzó se descarta del índice.
	if order.Type == domain.OrderTypeMarket {
		delete(e.orders, order.ID)
	}

	snapshot := *order
	e.mu.Unlock()

	if len(trades) > 0 {
		if e.journal != nil {
			if err := e.journal.AppendTrades(ctx, trades); err != nil {
				slog.Warn("journal error", "op", "append_trades", "market_id", marketID, "err", err)
			}
		}
		if e.feed != nil {
			if err := e.feed.Publish(ctx, trades); err != nil {
				slog.Warn("feed error", "market_id", marketID, "err", err)
			}
		}
	}
	return &snapshot, trades, nil
}

// CancelOrder retira una orden en reposo. Nunca devuelve error: false
// significa orden desconocida, ya ejecutada o ya cancelada.
func (e *TradingEngine) CancelOrder(_ context.Context, orderID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[orderID]
	if !ok {
		return false
	}
	// La orden registra su outcome al crearse, así que la cancelación va
	// directa a su book en vez de recorrer todos los outcomes del mercado.
	if !e.books[order.MarketID][order.Outcome].CancelOrder(orderID) {
		return false
	}
	delete(e.orders, orderID)
	return true
}

// GetOrderBookDepth devuelve los mejores `levels` niveles del book.
func (e *TradingEngine) GetOrderBookDepth(marketID, outcome string, levels int) (domain.Depth, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	books, ok := e.books[marketID]
	if !ok {
		return domain.Depth{}, fmt.Errorf("engine.GetOrderBookDepth: market %s: %w", marketID, domain.ErrMarketNotFound)
	}
	book, ok := books[outcome]
	if !ok {
		return domain.Depth{}, fmt.Errorf("engine.GetOrderBookDepth: outcome %q in market %s: %w", outcome, marketID, domain.ErrInvalidOutcome)
	}
	return book.Depth(levels), nil
}

// GetMarketPrices devuelve el precio por outcome: mid si hay bid y ask,
// el lado presente si solo hay uno, nil si el book está vacío.
func (e *TradingEngine) GetMarketPrices(marketID string) (map[string]*float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	books, ok := e.books[marketID]
	if !ok {
		return nil, fmt.Errorf("engine.GetMarketPrices: market %s: %w", marketID, domain.ErrMarketNotFound)
	}

	prices := make(map[string]*float64, len(books))
	for outcome, book := range books {
		bid, okBid := book.BestBid()
		ask, okAsk := book.BestAsk()

		var p float64
		switch {
		case okBid && okAsk:
			p = (bid + ask) / 2
		case okBid:
			p = bid
		case okAsk:
			p = ask
		default:
			prices[outcome] = nil
			continue
		}
		prices[outcome] = &p
	}
	return prices, nil
}

// ResolveMarket marca el mercado como resuelto con el outcome ganador.
// No cancela ni liquida las órdenes en reposo.
func (e *TradingEngine) ResolveMarket(ctx context.Context, marketID, winningOutcome string) error {
	e.mu.Lock()
	market, ok := e.markets[marketID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("engine.ResolveMarket: market %s: %w", marketID, domain.ErrMarketNotFound)
	}
	if err := market.Resolve(winningOutcome); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("engine.ResolveMarket: outcome %q: %w", winningOutcome, err)
	}
	e.mu.Unlock()

	if e.journal != nil {
		if err := e.journal.MarkResolved(ctx, marketID, winningOutcome); err != nil {
			slog.Warn("journal error", "op", "mark_resolved", "market_id", marketID, "err", err)
		}
	}
	return nil
}

// GetMarket devuelve una copia del mercado.
func (e *TradingEngine) GetMarket(marketID string) (*domain.Market, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	market, ok := e.markets[marketID]
	if !ok {
		return nil, fmt.Errorf("engine.GetMarket: market %s: %w", marketID, domain.ErrMarketNotFound)
	}
	snapshot := *market
	return &snapshot, nil
}

// ListMarkets devuelve todos los mercados, o solo los activos.
func (e *TradingEngine) ListMarkets(activeOnly bool) []*domain.Market {
	e.mu.RLock()
	defer e.mu.RUnlock()

	now := e.now()
	markets := make([]*domain.Market, 0, len(e.markets))
	for _, m := range e.markets {
		if activeOnly && !m.IsActive(now) {
			continue
		}
		snapshot := *m
		markets = append(markets, &snapshot)
	}
	return markets
}

// GetTraderOrders devuelve las órdenes vivas (no ejecutadas del todo) de
// un trader, sin orden garantizado.
func (e *TradingEngine) GetTraderOrders(traderID string) []domain.Order {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var orders []domain.Order
	for _, o := range e.orders {
		if o.TraderID == traderID && !o.IsFilled() {
			orders = append(orders, *o)
		}
	}
	return orders
}

// GetMarketTrades devuelve los trades más recientes del mercado,
// del más nuevo al más viejo, hasta `limit`.
func (e *TradingEngine) GetMarketTrades(marketID string, limit int) []domain.Trade {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var trades []domain.Trade
	for i := len(e.trades) - 1; i >= 0 && len(trades) < limit; i-- {
		if e.trades[i].MarketID == marketID {
			trades = append(trades, e.trades[i])
		}
	}
	return trades
}

// validateOutcomes comprueba que la lista de outcomes sea usable: no
// vacía, sin nombres en blanco y sin duplicados (un duplicado pisaría
// el book de su outcome homónimo).
func validateOutcomes(outcomes []string) error {
	if len(outcomes) == 0 {
		return fmt.Errorf("empty outcomes: %w", domain.ErrInvalidOutcome)
	}
	seen := make(map[string]struct{}, len(outcomes))
	for _, o := range outcomes {
		if o == "" {
			return fmt.Errorf("blank outcome name: %w", domain.ErrInvalidOutcome)
		}
		if _, dup := seen[o]; dup {
			return fmt.Errorf("duplicate outcome %q: %w", o, domain.ErrInvalidOutcome)
		}
		seen[o] = struct{}{}
	}
	return nil
}
