package dto

import (
	"time"

	"stevedore/internal/domain/billing"
)

// BuildStatementRequest prices the metrics of a date range with the
// caller-supplied tariffs. The range is inclusive on both ends and
// day-granular.
type BuildStatementRequest struct {
	From    time.Time       `json:"from" binding:"required"`
	To      time.Time       `json:"to" binding:"required"`
	Tariffs billing.Tariffs `json:"tariffs"`
}
