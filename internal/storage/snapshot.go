package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/andresuchdata/shelfwise/internal/domain"
	"github.com/rs/zerolog/log"
)

const snapshotPrefix = "snapshots"

type PredictionSource interface {
	GetAllPredictions(ctx context.Context, storeID string) ([]domain.Prediction, error)
}

type AlertSource interface {
	GetAlerts(ctx context.Context, storeID string, q domain.AlertQuery) (*domain.AlertReport, error)
}

// Snapshot is the exported state of one store
type Snapshot struct {
	StoreID     string              `json:"store_id"`
	GeneratedAt time.Time           `json:"generated_at"`
	Predictions []domain.Prediction `json:"predictions"`
	Alerts      *domain.AlertReport `json:"alerts"`
}

// Exporter writes point in time snapshots of predictions and alerts to object storage
type Exporter struct {
	objects     ObjectStorage
	predictions PredictionSource
	alerts      AlertSource
	now         func() time.Time
}

func NewExporter(objects ObjectStorage, predictions PredictionSource, alerts AlertSource, now func() time.Time) *Exporter {
	if now == nil {
		now = time.Now
	}
	return &Exporter{objects: objects, predictions: predictions, alerts: alerts, now: now}
}

// SnapshotKey is snapshots/<store>/<UTC timestamp>.json, so keys sort chronologically
func SnapshotKey(storeID string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%s.json", snapshotPrefix, storeID, at.UTC().Format("20060102T150405Z"))
}

// Export uploads the current snapshot of a store and returns its key
func (e *Exporter) Export(ctx context.Context, storeID string) (string, error) {
	preds, err := e.predictions.GetAllPredictions(ctx, storeID)
	if err != nil {
		return "", fmt.Errorf("load predictions: %w", err)
	}
	report, err := e.alerts.GetAlerts(ctx, storeID, domain.AlertQuery{})
	if err != nil {
		return "", fmt.Errorf("load alerts: %w", err)
	}

	snap := Snapshot{
		StoreID:     storeID,
		GeneratedAt: e.now(),
		Predictions: preds,
		Alerts:      report,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	key := SnapshotKey(storeID, snap.GeneratedAt)
	if err := e.objects.UploadObject(ctx, key, data); err != nil {
		return "", err
	}

	log.Info().
		Str("store_id", storeID).
		Str("key", key).
		Int("predictions", len(preds)).
		Int("alerts", len(report.Alerts)).
		Msg("snapshot exported")
	return key, nil
}

// List returns the snapshots of a store, newest first
func (e *Exporter) List(ctx context.Context, storeID string) ([]ObjectInfo, error) {
	objects, err := e.objects.ListObjects(ctx, fmt.Sprintf("%s/%s/", snapshotPrefix, storeID))
	if err != nil {
		return nil, err
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key > objects[j].Key })
	return objects, nil
}

// Load reads a snapshot back
func (e *Exporter) Load(ctx context.Context, key string) (*Snapshot, error) {
	data, err := e.objects.GetObject(ctx, key)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return &snap, nil
}
