package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/predmarket/internal/domain"
	"github.com/alejandrodnm/predmarket/internal/engine"
)

// API expone el engine por HTTP. Cada handler valida la entrada, delega
// en el engine y traduce los errores de dominio a códigos de estado.
type API struct {
	engine *engine.TradingEngine
	logger *slog.Logger

	depthLevels int
	tradesLimit int
}

// NewAPI crea el conjunto de handlers con los defaults de profundidad
// y de histórico.
func NewAPI(eng *engine.TradingEngine, logger *slog.Logger, depthLevels, tradesLimit int) *API {
	return &API{
		engine:      eng,
		logger:      logger,
		depthLevels: depthLevels,
		tradesLimit: tradesLimit,
	}
}

// --- DTOs ---

type marketJSON struct {
	MarketID       string              `json:"market_id"`
	Question       string              `json:"question"`
	Description    string              `json:"description"`
	Outcomes       []string            `json:"outcomes"`
	ResolutionTime string              `json:"resolution_time"`
	CreatorID      string              `json:"creator_id"`
	CreatedAt      string              `json:"created_at"`
	Resolved       bool                `json:"resolved"`
	WinningOutcome string              `json:"winning_outcome,omitempty"`
	TotalVolume    float64             `json:"total_volume"`
	CurrentPrices  map[string]*float64 `json:"current_prices,omitempty"`
}

type orderJSON struct {
	OrderID           string   `json:"order_id"`
	MarketID          string   `json:"market_id"`
	Outcome           string   `json:"outcome"`
	TraderID          string   `json:"trader_id"`
	Side              string   `json:"side"`
	OrderType         string   `json:"order_type"`
	Quantity          float64  `json:"quantity"`
	Price             *float64 `json:"price"`
	FilledQuantity    float64  `json:"filled_quantity"`
	RemainingQuantity float64  `json:"remaining_quantity"`
	Timestamp         string   `json:"timestamp"`
}

type tradeJSON struct {
	TradeID   string  `json:"trade_id"`
	MarketID  string  `json:"market_id"`
	Outcome   string  `json:"outcome"`
	BuyerID   string  `json:"buyer_id"`
	SellerID  string  `json:"seller_id"`
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	Timestamp string  `json:"timestamp"`
}

type depthJSON struct {
	MarketID string       `json:"market_id"`
	Outcome  string       `json:"outcome"`
	Bids     [][2]float64 `json:"bids"`
	Asks     [][2]float64 `json:"asks"`
	BestBid  *float64     `json:"best_bid"`
	BestAsk  *float64     `json:"best_ask"`
	Midpoint *float64     `json:"midpoint"`
}

func toMarketJSON(m *domain.Market) marketJSON {
	return marketJSON{
		MarketID:       m.ID,
		Question:       m.Question,
		Description:    m.Description,
		Outcomes:       m.Outcomes,
		ResolutionTime: m.ResolutionTime.UTC().Format(time.RFC3339),
		CreatorID:      m.CreatorID,
		CreatedAt:      m.CreatedAt.UTC().Format(time.RFC3339),
		Resolved:       m.Resolved,
		WinningOutcome: m.WinningOutcome,
		TotalVolume:    m.TotalVolume,
	}
}

func toOrderJSON(o *domain.Order) orderJSON {
	return orderJSON{
		OrderID:           o.ID,
		MarketID:          o.MarketID,
		Outcome:           o.Outcome,
		TraderID:          o.TraderID,
		Side:              string(o.Side),
		OrderType:         string(o.Type),
		Quantity:          o.Quantity,
		Price:             o.Price,
		FilledQuantity:    o.FilledQuantity,
		RemainingQuantity: o.Remaining(),
		Timestamp:         o.Timestamp.UTC().Format(time.RFC3339),
	}
}

func toTradeJSON(t domain.Trade) tradeJSON {
	return tradeJSON{
		TradeID:   t.ID,
		MarketID:  t.MarketID,
		Outcome:   t.Outcome,
		BuyerID:   t.BuyerID,
		SellerID:  t.SellerID,
		Price:     t.Price,
		Quantity:  t.Quantity,
		Timestamp: t.Timestamp.UTC().Format(time.RFC3339),
	}
}

func toDepthJSON(marketID, outcome string, d domain.Depth) depthJSON {
	out := depthJSON{MarketID: marketID, Outcome: outcome, Bids: [][2]float64{}, Asks: [][2]float64{}}
	for _, e := range d.Bids {
		out.Bids = append(out.Bids, [2]float64{e.Price, e.Size})
	}
	for _, e := range d.Asks {
		out.Asks = append(out.Asks, [2]float64{e.Price, e.Size})
	}
	if len(d.Bids) > 0 {
		bid := d.BestBid()
		out.BestBid = &bid
	}
	if len(d.Asks) > 0 {
		ask := d.BestAsk()
		out.BestAsk = &ask
	}
	if mid := d.Midpoint(); mid > 0 {
		out.Midpoint = &mid
	}
	return out
}

// --- helpers de respuesta ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// domainStatus traduce un error de dominio al código HTTP correspondiente.
func domainStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrMarketNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMarketInactive),
		errors.Is(err, domain.ErrInvalidOutcome),
		errors.Is(err, domain.ErrMissingPrice),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrOrderMarketMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// --- handlers ---

// Health responde el estado del servicio.
// GET /health
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type createMarketRequest struct {
	Question       string   `json:"question"`
	Description    string   `json:"description"`
	Outcomes       []string `json:"outcomes"`
	ResolutionTime string   `json:"resolution_time"`
	CreatorID      string   `json:"creator_id"`
}

// CreateMarket registra un mercado nuevo.
// POST /api/markets
func (a *API) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.CreatorID == "" {
		writeError(w, http.StatusBadRequest, "creator_id is required")
		return
	}
	resolution, err := time.Parse(time.RFC3339, req.ResolutionTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "resolution_time must be RFC3339")
		return
	}

	market, err := a.engine.CreateMarket(r.Context(), req.Question, req.Description, req.Outcomes, resolution, req.CreatorID)
	if err != nil {
		writeError(w, domainStatus(err), err.Error())
		return
	}

	a.logger.Info("market created", "market_id", market.ID, "question", market.Question)
	writeJSON(w, http.StatusCreated, toMarketJSON(market))
}

// ListMarkets lista los mercados; por defecto solo los activos.
// GET /api/markets?active_only=false
func (a *API) ListMarkets(w http.ResponseWriter, r *http.Request) {
	activeOnly := true
	if v := r.URL.Query().Get("active_only"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "active_only must be a boolean")
			return
		}
		activeOnly = parsed
	}

	markets := a.engine.ListMarkets(activeOnly)
	out := make([]marketJSON, 0, len(markets))
	for _, m := range markets {
		out = append(out, toMarketJSON(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": out, "count": len(out)})
}

// GetMarket devuelve un mercado con sus precios actuales.
// GET /api/markets/{id}
func (a *API) GetMarket(w http.ResponseWriter, r *http.Request) {
	marketID := r.PathValue("id")

	market, err := a.engine.GetMarket(marketID)
	if err != nil {
		writeError(w, domainStatus(err), err.Error())
		return
	}

	out := toMarketJSON(market)
	if prices, err := a.engine.GetMarketPrices(marketID); err == nil {
		out.CurrentPrices = prices
	}
	writeJSON(w, http.StatusOK, out)
}

// GetOrderBook devuelve la profundidad del book de un outcome.
// GET /api/markets/{id}/orderbook?outcome=YES&levels=5
func (a *API) GetOrderBook(w http.ResponseWriter, r *http.Request) {
	marketID := r.PathValue("id")

	outcome := r.URL.Query().Get("outcome")
	if outcome == "" {
		writeError(w, http.StatusBadRequest, "outcome query parameter is required")
		return
	}

	levels := a.depthLevels
	if v := r.URL.Query().Get("levels"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "levels must be a positive integer")
			return
		}
		levels = parsed
	}

	depth, err := a.engine.GetOrderBookDepth(marketID, outcome, levels)
	if err != nil {
		// En esta ruta un outcome desconocido es un recurso inexistente.
		if errors.Is(err, domain.ErrInvalidOutcome) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, domainStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toDepthJSON(marketID, outcome, depth))
}

// GetMarketTrades devuelve los trades recientes del mercado.
// GET /api/markets/{id}/trades?limit=100
func (a *API) GetMarketTrades(w http.ResponseWriter, r *http.Request) {
	marketID := r.PathValue("id")

	if _, err := a.engine.GetMarket(marketID); err != nil {
		writeError(w, domainStatus(err), err.Error())
		return
	}

	limit := a.tradesLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	trades := a.engine.GetMarketTrades(marketID, limit)
	out := make([]tradeJSON, 0, len(trades))
	for _, t := range trades {
		out = append(out, toTradeJSON(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": out, "count": len(out)})
}

type resolveMarketRequest struct {
	WinningOutcome string `json:"winning_outcome"`
}

// ResolveMarket marca el mercado como resuelto.
// POST /api/markets/{id}/resolve
func (a *API) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	marketID := r.PathValue("id")

	var req resolveMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.WinningOutcome == "" {
		writeError(w, http.StatusBadRequest, "winning_outcome is required")
		return
	}

	if err := a.engine.ResolveMarket(r.Context(), marketID, req.WinningOutcome); err != nil {
		writeError(w, domainStatus(err), err.Error())
		return
	}

	a.logger.Info("market resolved", "market_id", marketID, "winning_outcome", req.WinningOutcome)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":          "resolved",
		"market_id":       marketID,
		"winning_outcome": req.WinningOutcome,
	})
}

type placeOrderRequest struct {
	MarketID  string   `json:"market_id"`
	Outcome   string   `json:"outcome"`
	TraderID  string   `json:"trader_id"`
	Side      string   `json:"side"`
	OrderType string   `json:"order_type"`
	Quantity  float64  `json:"quantity"`
	Price     *float64 `json:"price"`
}

// PlaceOrder valida y ejecuta una orden nueva.
// POST /api/orders
func (a *API) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TraderID == "" {
		writeError(w, http.StatusBadRequest, "trader_id is required")
		return
	}

	side := domain.Side(strings.ToUpper(req.Side))
	if side != domain.SideBuy && side != domain.SideSell {
		writeError(w, http.StatusBadRequest, "side must be BUY or SELL")
		return
	}

	orderType := domain.OrderTypeLimit
	if req.OrderType != "" {
		orderType = domain.OrderType(strings.ToUpper(req.OrderType))
		if orderType != domain.OrderTypeLimit && orderType != domain.OrderTypeMarket {
			writeError(w, http.StatusBadRequest, "order_type must be LIMIT or MARKET")
			return
		}
	}

	order, trades, err := a.engine.PlaceOrder(r.Context(), req.MarketID, req.Outcome, req.TraderID, side, orderType, req.Quantity, req.Price)
	if err != nil {
		writeError(w, domainStatus(err), err.Error())
		return
	}

	tradesOut := make([]tradeJSON, 0, len(trades))
	for _, t := range trades {
		tradesOut = append(tradesOut, toTradeJSON(t))
	}

	a.logger.Info("order placed",
		"order_id", order.ID,
		"market_id", order.MarketID,
		"side", order.Side,
		"type", order.Type,
		"trades", len(trades),
	)
	writeJSON(w, http.StatusCreated, map[string]any{
		"order":  toOrderJSON(order),
		"trades": tradesOut,
	})
}

// CancelOrder retira una orden en reposo.
// DELETE /api/orders/{id}
func (a *API) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	if !a.engine.CancelOrder(r.Context(), orderID) {
		writeError(w, http.StatusNotFound, "order not found or already filled")
		return
	}

	a.logger.Info("order cancelled", "order_id", orderID)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "cancelled",
		"order_id": orderID,
	})
}

// GetTraderOrders devuelve las órdenes abiertas de un trader.
// GET /api/traders/{id}/orders
func (a *API) GetTraderOrders(w http.ResponseWriter, r *http.Request) {
	traderID := r.PathValue("id")

	orders := a.engine.GetTraderOrders(traderID)
	out := make([]orderJSON, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderJSON(&orders[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out, "count": len(out)})
}
