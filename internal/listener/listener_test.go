package listener

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/andresuchdata/shelfwise/internal/domain"
	"github.com/andresuchdata/shelfwise/internal/service"
	"github.com/segmentio/kafka-go"
)

type call struct {
	kind      string
	storeID   string
	productID string
	qty       int
}

type recordingUpdater struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (u *recordingUpdater) UpdatePredictionAfterSale(_ context.Context, storeID, productID string, sale service.SaleUpdate) (*domain.Prediction, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, call{"sale", storeID, productID, sale.QuantitySold})
	if u.err != nil {
		return nil, u.err
	}
	return &domain.Prediction{StoreID: storeID, ProductID: productID}, nil
}

func (u *recordingUpdater) DeletePrediction(_ context.Context, storeID, productID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, call{kind: "delete", storeID: storeID, productID: productID})
	return u.err
}

func (u *recordingUpdater) snapshot() []call {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]call, len(u.calls))
	copy(out, u.calls)
	return out
}

// fakeReader hands out queued messages, then blocks until the context ends
type fakeReader struct {
	mu       sync.Mutex
	messages []kafka.Message
	errs     []error
	closed   bool
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func TestProcessSaleRecorded(t *testing.T) {
	u := &recordingUpdater{}
	l := NewSalesListener(&fakeReader{}, u)

	err := l.Process(context.Background(), []byte(`{"event_type":"SaleRecorded","payload":{"store_id":"s1","product_id":"p1","quantity_sold":3}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := u.snapshot()
	if len(calls) != 1 || calls[0] != (call{"sale", "s1", "p1", 3}) {
		t.Errorf("expected one sale update, got %+v", calls)
	}
}

func TestProcessProductDeleted(t *testing.T) {
	u := &recordingUpdater{}
	l := NewSalesListener(&fakeReader{}, u)

	if err := l.Process(context.Background(), []byte(`{"event_type":"ProductDeleted","payload":{"store_id":"s1","product_id":"p1"}}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls := u.snapshot(); len(calls) != 1 || calls[0].kind != "delete" {
		t.Errorf("expected one delete, got %+v", calls)
	}
}

func TestProcessRejectsBadEvents(t *testing.T) {
	u := &recordingUpdater{}
	l := NewSalesListener(&fakeReader{}, u)
	ctx := context.Background()

	tests := []struct {
		name  string
		value string
		check func(error) bool
	}{
		{"malformed json", `{`, func(err error) bool { return err != nil }},
		{"missing store", `{"event_type":"SaleRecorded","payload":{"product_id":"p1"}}`, func(err error) bool { return errors.Is(err, domain.ErrMissingTenant) }},
		{"missing product", `{"event_type":"SaleRecorded","payload":{"store_id":"s1"}}`, domain.IsValidation},
		{"unknown type", `{"event_type":"PriceChanged","payload":{"store_id":"s1","product_id":"p1"}}`, func(err error) bool { return err == nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := l.Process(ctx, []byte(tt.value)); !tt.check(err) {
				t.Errorf("unexpected result %v", err)
			}
		})
	}

	if calls := u.snapshot(); len(calls) != 0 {
		t.Errorf("expected no updates, got %+v", calls)
	}
}

func TestProcessWrapsUpdaterError(t *testing.T) {
	u := &recordingUpdater{err: domain.ErrNotFound}
	l := NewSalesListener(&fakeReader{}, u)

	err := l.Process(context.Background(), []byte(`{"event_type":"SaleRecorded","payload":{"store_id":"s1","product_id":"ghost","quantity_sold":1}}`))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected wrapped not found, got %v", err)
	}
}

func TestStartConsumesUntilCancelled(t *testing.T) {
	u := &recordingUpdater{}
	reader := &fakeReader{
		errs: []error{errors.New("broker unavailable")},
		messages: []kafka.Message{
			{Value: []byte(`{"event_type":"SaleRecorded","payload":{"store_id":"s1","product_id":"p1","quantity_sold":1}}`)},
			{Value: []byte(`not json`)},
			{Value: []byte(`{"event_type":"SaleRecorded","payload":{"store_id":"s1","product_id":"p2","quantity_sold":2}}`)},
		},
	}
	l := NewSalesListener(reader, u)
	l.retryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for len(u.snapshot()) < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected two updates, got %+v", u.snapshot())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener did not stop after cancel")
	}

	calls := u.snapshot()
	if calls[0].productID != "p1" || calls[1].productID != "p2" {
		t.Errorf("expected p1 then p2, got %+v", calls)
	}

	if err := l.Close(); err != nil || !reader.closed {
		t.Errorf("expected reader to be closed, got %v", err)
	}
}
