package ports

import (
	"context"

	"github.com/alejandrodnm/predmarket/internal/domain"
)

// Journal persiste mercados y trades fuera del proceso. Es un colaborador
// opcional: el engine funciona igual sin él, y sus errores nunca se
// propagan al trader (se loggean y se sigue).
type Journal interface {
	// SaveMarket persiste (o actualiza) un mercado.
	SaveMarket(ctx context.Context, m *domain.Market) error

	// MarkResolved registra la resolución de un mercado.
	MarkResolved(ctx context.Context, marketID, winningOutcome string) error

	// AppendTrades añade los trades de una ejecución al journal.
	AppendTrades(ctx context.Context, trades []domain.Trade) error

	// Close cierra el journal limpiamente.
	Close() error
}
