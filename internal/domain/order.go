package domain

import "time"

// Side indica la dirección de una orden.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType indica cómo se ejecuta la orden.
type OrderType string

const (
	// OrderTypeLimit descansa en el book hasta cruzarse o cancelarse.
	OrderTypeLimit OrderType = "LIMIT"
	// OrderTypeMarket consume liquidez inmediatamente al mejor precio.
	OrderTypeMarket OrderType = "MARKET"
)

// Order es una intención de trading sobre un outcome concreto.
// Solo muta vía Fill durante el matching; FilledQuantity nunca decrece.
type Order struct {
	ID             string
	MarketID       string
	Outcome        string
	TraderID       string
	Side           Side
	Type           OrderType
	Quantity       float64
	Price          *float64 // presente solo en órdenes LIMIT, rango (0,1)
	Timestamp      time.Time
	FilledQuantity float64
}

// Remaining devuelve la cantidad pendiente de ejecutar.
func (o *Order) Remaining() float64 {
	return o.Quantity - o.FilledQuantity
}

// IsFilled devuelve true si la orden está completamente ejecutada.
func (o *Order) IsFilled() bool {
	return o.FilledQuantity >= o.Quantity
}

// Fill aplica una ejecución parcial a la orden.
func (o *Order) Fill(quantity float64) {
	o.FilledQuantity += quantity
}

// LimitPrice devuelve el precio límite de la orden, o 0 si no tiene.
func (o *Order) LimitPrice() float64 {
	if o.Price == nil {
		return 0
	}
	return *o.Price
}
