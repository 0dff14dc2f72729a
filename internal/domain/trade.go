package domain

import "time"

// Trade es una ejecución entre dos órdenes. Inmutable una vez creado;
// el engine lo añade a un ledger append-only que nunca se reescribe.
type Trade struct {
	ID        string
	MarketID  string
	Outcome   string
	BuyerID   string
	SellerID  string
	Price     float64
	Quantity  float64
	Timestamp time.Time
}
