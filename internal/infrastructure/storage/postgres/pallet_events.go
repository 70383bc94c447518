package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"stevedore/internal/core/id"
	"stevedore/internal/domain/pallet"
)

// CompressionAlgo specifies the compression algorithm used for event details.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// detailsCompressThreshold is the size above which event details are
// zstd-compressed. Tally scans attach full row breakdowns that can run
// to hundreds of KB; ordinary moves stay well under it.
const detailsCompressThreshold = 10 * 1024

// PalletEventStore persists the append-only pallet lifecycle log.
// Events are written in the same transaction as the pallet mutation and
// are never updated or deleted, the table has no FK back to pallets so
// the trail survives even a hard-deleted pallet.
type PalletEventStore struct {
	txManager *TxManager
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
}

var _ pallet.EventStore = (*PalletEventStore)(nil)

// NewPalletEventStore creates the event store with shared zstd codecs.
func NewPalletEventStore(txManager *TxManager) (*PalletEventStore, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &PalletEventStore{
		txManager: txManager,
		encoder:   encoder,
		decoder:   decoder,
	}, nil
}

// Append inserts one event. MUST be called inside a transaction context
// so the event commits or rolls back with the mutation it records.
func (s *PalletEventStore) Append(ctx context.Context, event *pallet.Event) error {
	tx := s.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("pallet event append requires transaction context")
	}

	if id.IsNil(event.ID) {
		event.ID = id.New()
	}

	var detailsJSON []byte
	var detailsCompressed []byte
	algo := CompressionNone

	if len(event.Details) > 0 {
		b, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("marshal event details: %w", err)
		}
		if len(b) > detailsCompressThreshold {
			detailsCompressed = s.encoder.EncodeAll(b, nil)
			algo = CompressionZstd
		} else {
			detailsJSON = b
		}
	}

	var fromStatus *string
	if event.FromStatus != nil {
		fs := string(*event.FromStatus)
		fromStatus = &fs
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO pallet_events (
			id, pallet_id, event, from_status, to_status,
			reason, actor, occurred_at,
			details, details_compressed, compression_algo
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		event.ID, event.PalletID, string(event.Kind), fromStatus, string(event.ToStatus),
		event.Reason, event.Actor, event.OccurredAt,
		detailsJSON, detailsCompressed, algo,
	)
	if err != nil {
		return fmt.Errorf("insert pallet event: %w", err)
	}

	return nil
}

// ListByPallet returns events for one pallet, newest first.
// The id tiebreak keeps same-timestamp events in insertion order
// because ids are UUIDv7.
func (s *PalletEventStore) ListByPallet(ctx context.Context, palletID id.ID, limit, offset int) ([]pallet.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, `
		SELECT id, pallet_id, event, from_status, to_status,
		       reason, actor, occurred_at,
		       details, details_compressed, compression_algo
		FROM pallet_events
		WHERE pallet_id = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, palletID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query pallet events: %w", err)
	}
	defer rows.Close()

	var events []pallet.Event
	for rows.Next() {
		var (
			e                 pallet.Event
			kind              string
			fromStatus        *string
			toStatus          string
			detailsJSON       []byte
			detailsCompressed []byte
			algo              CompressionAlgo
		)

		err := rows.Scan(
			&e.ID, &e.PalletID, &kind, &fromStatus, &toStatus,
			&e.Reason, &e.Actor, &e.OccurredAt,
			&detailsJSON, &detailsCompressed, &algo,
		)
		if err != nil {
			return nil, fmt.Errorf("scan pallet event: %w", err)
		}

		e.Kind = pallet.EventKind(kind)
		e.ToStatus = pallet.Status(toStatus)
		if fromStatus != nil {
			fs := pallet.Status(*fromStatus)
			e.FromStatus = &fs
		}

		if algo == CompressionZstd && len(detailsCompressed) > 0 {
			decompressed, err := s.decoder.DecodeAll(detailsCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress event details: %w", err)
			}
			detailsJSON = decompressed
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshal event details: %w", err)
			}
		}

		events = append(events, e)
	}

	return events, rows.Err()
}
