package ports

import (
	"context"

	"github.com/alejandrodnm/predmarket/internal/domain"
)

// TradeFeed publica trades ejecutados a los suscriptores en vivo.
// Al igual que Journal, es best-effort: un fallo del feed no invalida
// la ejecución que lo produjo.
type TradeFeed interface {
	Publish(ctx context.Context, trades []domain.Trade) error
}
