package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/alejandrodnm/predmarket/internal/domain"
)

// Match es una ejecución producida por AddOrder. Buyer y Seller son las
// órdenes cruzadas (una de ellas es la entrante); Price es siempre el
// precio de la orden que descansaba en el book.
type Match struct {
	Buyer    *domain.Order
	Seller   *domain.Order
	Price    float64
	Quantity float64
}

// priceLevel agrupa las órdenes que descansan a un precio exacto,
// en orden FIFO de llegada.
type priceLevel struct {
	price  float64
	orders []*domain.Order
}

// totalRemaining suma el remaining de todas las órdenes del nivel.
func (l *priceLevel) totalRemaining() float64 {
	var total float64
	for _, o := range l.orders {
		total += o.Remaining()
	}
	return total
}

// OrderBook mantiene las órdenes en reposo de un par (market, outcome) y
// ejecuta el matching con prioridad precio-tiempo.
//
// Ambos lados son slices de niveles ordenados por precio ascendente: el
// mejor bid es el último nivel de bids, el mejor ask el primero de asks.
// Invariantes: toda orden en un nivel tiene remaining > 0, ningún nivel
// queda vacío, y tras cada AddOrder o bien un lado está vacío o bien
// best bid < best ask.
type OrderBook struct {
	marketID string
	outcome  string
	bids     []*priceLevel
	asks     []*priceLevel
	orders   map[string]*domain.Order // lookup por ID para cancelación
}

// NewOrderBook crea un book vacío para el par (market, outcome).
func NewOrderBook(marketID, outcome string) *OrderBook {
	return &OrderBook{
		marketID: marketID,
		outcome:  outcome,
		orders:   make(map[string]*domain.Order),
	}
}

// AddOrder cruza la orden entrante contra el lado opuesto y descansa el
// remanente si es LIMIT. Devuelve los matches en orden de ejecución.
//
// Una orden MARKET sin contrapartida no descansa: no tiene precio al que
// hacerlo, así que se descarta sin ejecutar (queda parcial o vacía).
func (b *OrderBook) AddOrder(incoming *domain.Order) ([]Match, error) {
	if incoming.MarketID != b.marketID {
		return nil, fmt.Errorf("engine.AddOrder: order market %s vs book %s: %w",
			incoming.MarketID, b.marketID, domain.ErrOrderMarketMismatch)
	}

	matches := b.match(incoming)

	if !incoming.IsFilled() && incoming.Type == domain.OrderTypeLimit {
		b.rest(incoming)
	}
	return matches, nil
}

// match ejecuta el loop de matching: mejor nivel opuesto, orden más
// antigua del nivel, min(remaining) al precio del nivel. Para órdenes
// LIMIT el loop corta en cuanto el mejor precio opuesto viola el límite.
func (b *OrderBook) match(incoming *domain.Order) []Match {
	var matches []Match

	for !incoming.IsFilled() {
		level := b.bestOpposite(incoming.Side)
		if level == nil {
			break
		}

		if incoming.Type == domain.OrderTypeLimit {
			if incoming.Side == domain.SideBuy && level.price > incoming.LimitPrice() {
				break
			}
			if incoming.Side == domain.SideSell && level.price < incoming.LimitPrice() {
				break
			}
		}

		resting := level.orders[0]
		quantity := math.Min(incoming.Remaining(), resting.Remaining())

		incoming.Fill(quantity)
		resting.Fill(quantity)

		buyer, seller := incoming, resting
		if incoming.Side == domain.SideSell {
			buyer, seller = resting, incoming
		}
		matches = append(matches, Match{
			Buyer:    buyer,
			Seller:   seller,
			Price:    level.price, // siempre el precio de la orden en reposo
			Quantity: quantity,
		})

		if resting.IsFilled() {
			b.removeFromLevel(resting)
		}
	}
	return matches
}

// CancelOrder retira una orden en reposo. Devuelve false si el ID no está
// en este book (incluida una segunda cancelación del mismo ID).
func (b *OrderBook) CancelOrder(orderID string) bool {
	order, ok := b.orders[orderID]
	if !ok {
		return false
	}
	b.removeFromLevel(order)
	return true
}

// BestBid devuelve el mayor precio de compra en reposo.
func (b *OrderBook) BestBid() (float64, bool) {
	if len(b.bids) == 0 {
		return 0, false
	}
	return b.bids[len(b.bids)-1].price, true
}

// BestAsk devuelve el menor precio de venta en reposo.
func (b *OrderBook) BestAsk() (float64, bool) {
	if len(b.asks) == 0 {
		return 0, false
	}
	return b.asks[0].price, true
}

// Spread devuelve best ask − best bid, o false si falta algún lado.
func (b *OrderBook) Spread() (float64, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return ask - bid, true
}

// Depth devuelve los mejores `levels` niveles agregados de cada lado.
func (b *OrderBook) Depth(levels int) domain.Depth {
	depth := domain.Depth{}

	for i := len(b.bids) - 1; i >= 0 && len(depth.Bids) < levels; i-- {
		lvl := b.bids[i]
		depth.Bids = append(depth.Bids, domain.BookEntry{Price: lvl.price, Size: lvl.totalRemaining()})
	}
	for i := 0; i < len(b.asks) && len(depth.Asks) < levels; i++ {
		lvl := b.asks[i]
		depth.Asks = append(depth.Asks, domain.BookEntry{Price: lvl.price, Size: lvl.totalRemaining()})
	}
	return depth
}

// --- helpers internos ---

// bestOpposite devuelve el mejor nivel contra el que puede cruzar una
// orden del lado dado: menor ask para un BUY, mayor bid para un SELL.
func (b *OrderBook) bestOpposite(side domain.Side) *priceLevel {
	if side == domain.SideBuy {
		if len(b.asks) == 0 {
			return nil
		}
		return b.asks[0]
	}
	if len(b.bids) == 0 {
		return nil
	}
	return b.bids[len(b.bids)-1]
}

// rest añade la orden al final del nivel de su precio, creándolo si no
// existe, y la registra en el lookup.
func (b *OrderBook) rest(order *domain.Order) {
	side := b.sideLevels(order.Side)
	price := order.LimitPrice()

	idx, found := findLevel(*side, price)
	if !found {
		lvl := &priceLevel{price: price}
		*side = append(*side, nil)
		copy((*side)[idx+1:], (*side)[idx:])
		(*side)[idx] = lvl
	}
	(*side)[idx].orders = append((*side)[idx].orders, order)
	b.orders[order.ID] = order
}

// removeFromLevel saca la orden de su nivel, poda el nivel si queda vacío
// y la elimina del lookup.
func (b *OrderBook) removeFromLevel(order *domain.Order) {
	side := b.sideLevels(order.Side)

	idx, found := findLevel(*side, order.LimitPrice())
	if found {
		lvl := (*side)[idx]
		for i, o := range lvl.orders {
			if o.ID == order.ID {
				lvl.orders = append(lvl.orders[:i], lvl.orders[i+1:]...)
				break
			}
		}
		if len(lvl.orders) == 0 {
			*side = append((*side)[:idx], (*side)[idx+1:]...)
		}
	}
	delete(b.orders, order.ID)
}

// sideLevels devuelve el slice de niveles del lado dado.
func (b *OrderBook) sideLevels(side domain.Side) *[]*priceLevel {
	if side == domain.SideBuy {
		return &b.bids
	}
	return &b.asks
}

// findLevel localiza el nivel de un precio en un slice ordenado
// ascendente. Devuelve la posición de inserción si no existe.
func findLevel(levels []*priceLevel, price float64) (int, bool) {
	idx := sort.Search(len(levels), func(i int) bool {
		return levels[i].price >= price
	})
	return idx, idx < len(levels) && levels[idx].price == price
}
