// Package billing_repo loads the read-only billing projection from the
// pallet table.
package billing_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"stevedore/internal/domain/billing"
	"stevedore/internal/infrastructure/storage/postgres"
)

// BillingRepo implements billing.Repository. Queries run without locks;
// the projection is a snapshot, not a serialized read.
type BillingRepo struct {
	txManager *postgres.TxManager
}

var _ billing.Repository = (*BillingRepo)(nil)

// NewBillingRepo creates a new billing repository.
func NewBillingRepo(txManager *postgres.TxManager) *BillingRepo {
	return &BillingRepo{txManager: txManager}
}

// ListFacts returns facts for every pallet created up to the given instant.
// Pallet positions come from the product catalog by natural item key and
// default to 1 when the product is gone; the shipment type joins in from
// the assigned shipping order and stays empty for unassigned pallets.
func (r *BillingRepo) ListFacts(ctx context.Context, until time.Time) ([]billing.PalletFact, error) {
	query := `
		SELECT
			p.id AS pallet_id,
			p.item_id,
			p.status,
			p.is_cross_dock,
			COALESCE(
				(SELECT pr.pallet_positions
				 FROM cat_products pr
				 WHERE pr.item_id = p.item_id AND pr.deletion_mark = false
				 LIMIT 1),
				1
			) AS pallet_positions,
			p.created_at,
			p.received_at,
			p.shipped_at,
			COALESCE(so.shipment_type, '') AS shipment_type
		FROM pallets p
		LEFT JOIN doc_shipping_orders so ON so.id = p.shipping_order_id
		WHERE p.created_at <= $1
		ORDER BY p.created_at
	`

	facts := make([]billing.PalletFact, 0)
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &facts, query, until); err != nil {
		return nil, fmt.Errorf("billing facts: %w", err)
	}

	return facts, nil
}
