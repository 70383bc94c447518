// Package main provides a CLI tool for seeding the database with initial data.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"stevedore/internal/core/id"
	"stevedore/internal/domain/catalogs/location"
	"stevedore/internal/infrastructure/storage/postgres"
	"stevedore/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dsn := os.Getenv("STEVEDORE_DATABASE_DSN")
	if dsn == "" {
		log.Fatal("STEVEDORE_DATABASE_DSN environment variable is required")
	}

	poolCfg := postgres.DefaultPoolConfig(dsn)
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	warehouseID, err := seedWarehouses(ctx, pool, log)
	if err != nil {
		log.Fatalw("failed to seed warehouses", "error", err)
	}

	if err := seedLocations(ctx, pool, log, warehouseID); err != nil {
		log.Fatalw("failed to seed locations", "error", err)
	}

	if err := seedProducts(ctx, pool, log); err != nil {
		log.Fatalw("failed to seed products", "error", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedDemoOrders(ctx, pool, log, warehouseID); err != nil {
			log.Fatalw("failed to seed demo orders", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

// seedWarehouses creates the site warehouses and returns the default one.
func seedWarehouses(ctx context.Context, pool *postgres.Pool, log *logger.Logger) (id.ID, error) {
	warehouses := []struct {
		code      string
		name      string
		address   string
		isDefault bool
	}{
		{"WH-001", "Central Fulfillment", "12 Harbour Rd, Gate 4", true},
		{"WH-002", "Overflow Depot", "3 Quarry Lane", false},
	}

	var defaultID id.ID
	for _, w := range warehouses {
		whID := id.New()
		commandTag, err := pool.Pool.Exec(ctx, `
			INSERT INTO cat_warehouses (id, code, name, address, is_active, is_default, version, deletion_mark, attributes)
			VALUES ($1, $2, $3, $4, true, $5, 1, false, '{}')
			ON CONFLICT (code) WHERE deletion_mark = FALSE DO NOTHING
		`, whID, w.code, w.name, w.address, w.isDefault)
		if err != nil {
			return id.Nil(), fmt.Errorf("insert warehouse %s: %w", w.code, err)
		}

		// Re-runs hit the conflict path; fetch the surviving row's ID.
		if commandTag.RowsAffected() == 0 {
			err = pool.Pool.QueryRow(ctx, `
				SELECT id FROM cat_warehouses WHERE code = $1 AND deletion_mark = FALSE
			`, w.code).Scan(&whID)
			if err != nil {
				return id.Nil(), fmt.Errorf("fetch existing warehouse %s: %w", w.code, err)
			}
		}

		if w.isDefault {
			defaultID = whID
		}
		log.Infow("warehouse ready", "code", w.code, "warehouse_id", whID)
	}

	return defaultID, nil
}

// seedLocations lays out a small rack grid plus dock floor slots in the
// default warehouse. Coordinates follow the scanner naming (A-01-01).
func seedLocations(ctx context.Context, pool *postgres.Pool, log *logger.Logger, warehouseID id.ID) error {
	count := 0

	insert := func(kind location.Kind, rack string, level, position int32) error {
		name := location.CoordinateName(kind, rack, level, position)
		commandTag, err := pool.Pool.Exec(ctx, `
			INSERT INTO cat_locations (id, code, name, warehouse_id, kind, rack, level, position, version, deletion_mark, attributes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, false, '{}')
			ON CONFLICT DO NOTHING
		`, id.New(), name, name, warehouseID, kind, rack, level, position)
		if err != nil {
			return fmt.Errorf("insert location %s: %w", name, err)
		}
		if commandTag.RowsAffected() > 0 {
			count++
		}
		return nil
	}

	for _, rack := range []string{"A", "B"} {
		for level := int32(1); level <= 3; level++ {
			for position := int32(1); position <= 5; position++ {
				if err := insert(location.KindRack, rack, level, position); err != nil {
					return err
				}
			}
		}
	}

	// Dock floor slots for cross-dock staging
	for position := int32(1); position <= 4; position++ {
		if err := insert(location.KindAisle, "DOCK", 0, position); err != nil {
			return err
		}
	}

	log.Infow("locations ready", "created", count)
	return nil
}

// seedProducts creates a handful of SKUs with realistic pallet geometry.
func seedProducts(ctx context.Context, pool *postgres.Pool, log *logger.Logger) error {
	products := []struct {
		code            string
		name            string
		itemID          string
		unitsPerPallet  int64
		palletPositions int32
		unitWeightKg    string
		unitVolumeM3    string
	}{
		{"PRD-00001", "Copy Paper A4 (box of 5 reams)", "ITEM-1001", 40, 1, "12.5", "0.016"},
		{"PRD-00002", "Bottled Water 0.5L (tray of 24)", "ITEM-1002", 72, 1, "12.7", "0.014"},
		{"PRD-00003", "Detergent 5L Canister", "ITEM-1003", 96, 1, "5.3", "0.006"},
		{"PRD-00004", "Flat-pack Shelving Unit", "ITEM-1004", 12, 2, "22.0", "0.11"},
		{"PRD-00005", "LED Panel 60x60", "ITEM-1005", 160, 1, "2.8", "0.009"},
		{"PRD-00006", "Forklift Battery Pack", "ITEM-1006", 4, 1, "310.0", "0.35"},
	}

	for _, p := range products {
		_, err := pool.Pool.Exec(ctx, `
			INSERT INTO cat_products (
				id, code, name, item_id, units_per_pallet, pallet_positions,
				active, unit_weight_kg, unit_volume_m3,
				version, deletion_mark, attributes
			)
			VALUES ($1, $2, $3, $4, $5, $6, true, $7, $8, 1, false, '{}')
			ON CONFLICT (code) WHERE deletion_mark = FALSE DO NOTHING
		`, id.New(), p.code, p.name, p.itemID, p.unitsPerPallet, p.palletPositions, p.unitWeightKg, p.unitVolumeM3)
		if err != nil {
			return fmt.Errorf("insert product %s: %w", p.code, err)
		}
	}

	log.Infow("products ready", "count", len(products))
	return nil
}

// seedDemoOrders creates a matched pair of orders so a fresh environment can
// walk the whole flow: tally the receiving order, watch cross-dock divert
// pallets to the shipping order.
func seedDemoOrders(ctx context.Context, pool *postgres.Pool, log *logger.Logger, warehouseID id.ID) error {
	now := time.Now().UTC()

	receivingID := id.New()
	commandTag, err := pool.Pool.Exec(ctx, `
		INSERT INTO doc_receiving_orders (
			id, number, date, comment, warehouse_id, container_ref, status,
			version, deletion_mark, attributes, created_at, updated_at, created_by, updated_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, false, '{}', $8, $8, 'seed', 'seed')
		ON CONFLICT (number) WHERE deletion_mark = FALSE DO NOTHING
	`, receivingID, "RCV-DEMO-001", now, "Demo container", warehouseID, "MSKU-740011-8", "Pending", now)
	if err != nil {
		return fmt.Errorf("insert demo receiving order: %w", err)
	}

	if commandTag.RowsAffected() > 0 {
		lines := []struct {
			lineNo int
			itemID string
			qty    int64
		}{
			{1, "ITEM-1001", 800},
			{2, "ITEM-1002", 1440},
			{3, "ITEM-1004", 24},
		}
		for _, l := range lines {
			_, err := pool.Pool.Exec(ctx, `
				INSERT INTO doc_receiving_lines (line_id, document_id, line_no, item_id, expected_qty)
				VALUES ($1, $2, $3, $4, $5)
			`, id.New(), receivingID, l.lineNo, l.itemID, l.qty)
			if err != nil {
				return fmt.Errorf("insert demo receiving line %d: %w", l.lineNo, err)
			}
		}
		log.Infow("demo receiving order ready", "number", "RCV-DEMO-001", "order_id", receivingID)
	}

	shippingID := id.New()
	commandTag, err = pool.Pool.Exec(ctx, `
		INSERT INTO doc_shipping_orders (
			id, number, date, comment, warehouse_id, shipment_type, destination, status,
			version, deletion_mark, attributes, created_at, updated_at, created_by, updated_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, false, '{}', $9, $9, 'seed', 'seed')
		ON CONFLICT (number) WHERE deletion_mark = FALSE DO NOTHING
	`, shippingID, "SHP-DEMO-001", now, "Demo outbound", warehouseID, "Container_Loading", "Rotterdam", "Pending", now)
	if err != nil {
		return fmt.Errorf("insert demo shipping order: %w", err)
	}

	if commandTag.RowsAffected() > 0 {
		lines := []struct {
			lineNo int
			itemID string
			qty    int64
		}{
			{1, "ITEM-1001", 320},
			{2, "ITEM-1002", 720},
		}
		for _, l := range lines {
			_, err := pool.Pool.Exec(ctx, `
				INSERT INTO doc_shipping_lines (line_id, document_id, line_no, item_id, requested_qty)
				VALUES ($1, $2, $3, $4, $5)
			`, id.New(), shippingID, l.lineNo, l.itemID, l.qty)
			if err != nil {
				return fmt.Errorf("insert demo shipping line %d: %w", l.lineNo, err)
			}
		}
		log.Infow("demo shipping order ready", "number", "SHP-DEMO-001", "order_id", shippingID)
	}

	_, err = pool.Pool.Exec(ctx, `
		INSERT INTO doc_manifests (
			id, number, date, comment, shipment_type, vehicle_ref, status,
			version, deletion_mark, attributes, created_at, updated_at, created_by, updated_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, false, '{}', $8, $8, 'seed', 'seed')
		ON CONFLICT (number) WHERE deletion_mark = FALSE DO NOTHING
	`, id.New(), "MAN-DEMO-001", now, "Demo truck", "Container_Loading", "TRUCK-AB-1234", "Open", now)
	if err != nil {
		return fmt.Errorf("insert demo manifest: %w", err)
	}

	log.Info("demo data seeded successfully")
	return nil
}
