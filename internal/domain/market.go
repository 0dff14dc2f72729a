package domain

import "time"

// initialLiquidity es la liquidez inicial por outcome del pool CPMM.
const initialLiquidity = 1000.0

// Market representa un mercado de predicción con N outcomes.
//
// El pool de liquidez es un mecanismo de pricing alternativo (constant
// product) que el matching nunca consulta. Se mantiene como dato del
// mercado; Probability lo expone para quien quiera una estimación sin book.
type Market struct {
	ID             string
	Question       string
	Description    string
	Outcomes       []string
	ResolutionTime time.Time
	CreatorID      string
	CreatedAt      time.Time
	Resolved       bool
	WinningOutcome string
	TotalVolume    float64
	LiquidityPool  map[string]float64
}

// NewMarket construye un mercado sin volumen y con el pool inicializado.
func NewMarket(id, question, description string, outcomes []string, resolutionTime time.Time, creatorID string) *Market {
	pool := make(map[string]float64, len(outcomes))
	for _, outcome := range outcomes {
		pool[outcome] = initialLiquidity
	}
	return &Market{
		ID:             id,
		Question:       question,
		Description:    description,
		Outcomes:       outcomes,
		ResolutionTime: resolutionTime,
		CreatorID:      creatorID,
		CreatedAt:      time.Now().UTC(),
		LiquidityPool:  pool,
	}
}

// IsActive devuelve true si el mercado sigue abierto a trading:
// no resuelto y antes de su fecha de resolución.
func (m *Market) IsActive(now time.Time) bool {
	return !m.Resolved && now.Before(m.ResolutionTime)
}

// HasOutcome devuelve true si el outcome pertenece al mercado.
func (m *Market) HasOutcome(outcome string) bool {
	for _, o := range m.Outcomes {
		if o == outcome {
			return true
		}
	}
	return false
}

// Resolve marca el mercado como resuelto con el outcome ganador.
// Falla con ErrInvalidOutcome si el outcome no es del mercado.
// Una vez resuelto, el mercado nunca vuelve a estar activo.
func (m *Market) Resolve(winningOutcome string) error {
	if !m.HasOutcome(winningOutcome) {
		return ErrInvalidOutcome
	}
	m.Resolved = true
	m.WinningOutcome = winningOutcome
	return nil
}

// Probability devuelve la probabilidad implícita del outcome según el pool
// de liquidez: pool[outcome] / total. Devuelve 0 si el pool está vacío o
// el outcome no existe.
func (m *Market) Probability(outcome string) float64 {
	if !m.HasOutcome(outcome) {
		return 0
	}
	var total float64
	for _, liq := range m.LiquidityPool {
		total += liq
	}
	if total == 0 {
		return 0
	}
	return m.LiquidityPool[outcome] / total
}
