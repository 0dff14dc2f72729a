package domain

// BookEntry es un nivel de precio agregado del orderbook.
type BookEntry struct {
	Price float64
	Size  float64 // suma de remaining de las órdenes del nivel
}

// Depth es la profundidad agregada de un book: los mejores N niveles por
// lado. Bids ordenados de mayor a menor precio, asks de menor a mayor.
type Depth struct {
	Bids []BookEntry
	Asks []BookEntry
}

// BestBid devuelve el mejor precio de compra (mayor bid).
// Devuelve 0 si el lado está vacío.
func (d Depth) BestBid() float64 {
	if len(d.Bids) == 0 {
		return 0
	}
	return d.Bids[0].Price
}

// BestAsk devuelve el mejor precio de venta (menor ask).
// Devuelve 0 si el lado está vacío.
func (d Depth) BestAsk() float64 {
	if len(d.Asks) == 0 {
		return 0
	}
	return d.Asks[0].Price
}

// Midpoint devuelve el punto medio entre best bid y best ask.
func (d Depth) Midpoint() float64 {
	bid := d.BestBid()
	ask := d.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return (bid + ask) / 2
}
