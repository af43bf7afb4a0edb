package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/shelfwise/internal/config"
	"github.com/andresuchdata/shelfwise/internal/domain"
	"github.com/andresuchdata/shelfwise/internal/service"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const (
	EventSaleRecorded   = "SaleRecorded"
	EventProductDeleted = "ProductDeleted"
)

// MessageReader is the part of *kafka.Reader the listener consumes
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// PredictionUpdater reacts to sale and catalog events
type PredictionUpdater interface {
	UpdatePredictionAfterSale(ctx context.Context, storeID, productID string, sale service.SaleUpdate) (*domain.Prediction, error)
	DeletePrediction(ctx context.Context, storeID, productID string) error
}

// Event is the envelope published by the point of sale
type Event struct {
	EventID   string       `json:"event_id"`
	EventType string       `json:"event_type"`
	Payload   EventPayload `json:"payload"`
	Timestamp time.Time    `json:"timestamp"`
}

type EventPayload struct {
	StoreID      string `json:"store_id"`
	ProductID    string `json:"product_id"`
	QuantitySold int    `json:"quantity_sold"`
}

// NewKafkaReader opens a consumer group reader on the sales topic
func NewKafkaReader(cfg config.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.SalesTopic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// SalesListener refreshes predictions as sales are recorded
type SalesListener struct {
	reader     MessageReader
	updater    PredictionUpdater
	retryDelay time.Duration
}

func NewSalesListener(reader MessageReader, updater PredictionUpdater) *SalesListener {
	return &SalesListener{
		reader:     reader,
		updater:    updater,
		retryDelay: time.Second,
	}
}

// Start consumes until ctx is cancelled. A failed event is logged and skipped.
func (l *SalesListener) Start(ctx context.Context) {
	log.Info().Msg("starting sales listener")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping sales listener")
			return
		default:
		}

		msg, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("stopping sales listener")
				return
			}
			log.Error().Err(err).Msg("failed to read kafka message")
			select {
			case <-ctx.Done():
				return
			case <-time.After(l.retryDelay):
			}
			continue
		}

		if err := l.Process(ctx, msg.Value); err != nil {
			log.Error().Err(err).
				Int64("offset", msg.Offset).
				Int("partition", msg.Partition).
				Msg("failed to process sales event")
		}
	}
}

// Process handles one raw event. Unknown event types are ignored.
func (l *SalesListener) Process(ctx context.Context, value []byte) error {
	var event Event
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}

	p := event.Payload
	if strings.TrimSpace(p.StoreID) == "" {
		return domain.ErrMissingTenant
	}
	if p.ProductID == "" {
		return domain.NewValidationError("product_id", "is required")
	}

	switch event.EventType {
	case EventSaleRecorded:
		pred, err := l.updater.UpdatePredictionAfterSale(ctx, p.StoreID, p.ProductID, service.SaleUpdate{QuantitySold: p.QuantitySold})
		if err != nil {
			return fmt.Errorf("update prediction %s: %w", p.ProductID, err)
		}
		log.Debug().
			Str("store_id", p.StoreID).
			Str("product_id", p.ProductID).
			Float64("risk_score", pred.Metrics.RiskScore).
			Msg("prediction refreshed after sale")
	case EventProductDeleted:
		if err := l.updater.DeletePrediction(ctx, p.StoreID, p.ProductID); err != nil {
			return fmt.Errorf("delete prediction %s: %w", p.ProductID, err)
		}
		log.Info().Str("store_id", p.StoreID).Str("product_id", p.ProductID).Msg("prediction removed with product")
	default:
		log.Debug().Str("event_type", event.EventType).Msg("ignoring event")
	}
	return nil
}

// Close releases the reader
func (l *SalesListener) Close() error {
	return l.reader.Close()
}
