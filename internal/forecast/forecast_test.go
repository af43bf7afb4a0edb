package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andresuchdata/shelfwise/internal/domain"
)

type stubProvider struct {
	res   Result
	err   error
	calls int
}

func (s *stubProvider) Name() string { return ModelLearned }

func (s *stubProvider) Forecast(context.Context, Request) (Result, error) {
	s.calls++
	return s.res, s.err
}

func flatSeries(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestStatisticalForecast(t *testing.T) {
	s := NewStatistical(7)
	res, err := s.Forecast(context.Background(), Request{ProductID: "p1", Daily: flatSeries(30, 1.5), DataPoints: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Next7Days != 11 || res.Next14Days != 21 || res.Next30Days != 45 {
		t.Errorf("expected 11/21/45, got %v/%v/%v", res.Next7Days, res.Next14Days, res.Next30Days)
	}
	if res.Confidence != domain.ConfidenceHigh {
		t.Errorf("expected high confidence for 20 points, got %s", res.Confidence)
	}
	if res.ModelType != ModelStatistical {
		t.Errorf("expected statistical model, got %s", res.ModelType)
	}
}

func TestStatisticalConfidenceFromFourteenPoints(t *testing.T) {
	res, _ := NewStatistical(7).Forecast(context.Background(), Request{Daily: flatSeries(30, 1), DataPoints: 14})
	if res.Confidence != domain.ConfidenceHigh {
		t.Errorf("expected high confidence, got %s", res.Confidence)
	}
}

func TestFallbackSkipsModelBelowMinRecords(t *testing.T) {
	primary := &stubProvider{res: Result{Next7Days: 99}}
	f := NewFallback(primary, NewStatistical(7), true, 14)

	res, err := f.Forecast(context.Background(), Request{Daily: flatSeries(30, 1), DataPoints: 13})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if primary.calls != 0 {
		t.Errorf("expected learned model not to be called, got %d calls", primary.calls)
	}
	if res.ModelType != ModelStatistical {
		t.Errorf("expected statistical model, got %s", res.ModelType)
	}
}

func TestFallbackOnModelError(t *testing.T) {
	primary := &stubProvider{err: errors.New("boom")}
	f := NewFallback(primary, NewStatistical(7), true, 14)

	res, err := f.Forecast(context.Background(), Request{Daily: flatSeries(30, 2), DataPoints: 30})
	if err != nil {
		t.Fatalf("expected failure to be swallowed, got %v", err)
	}
	if res.ModelType != ModelStatistical || res.Next7Days != 14 {
		t.Errorf("expected statistical result 14, got %s %v", res.ModelType, res.Next7Days)
	}
}

func TestFallbackOnNonFiniteModelOutput(t *testing.T) {
	primary := &stubProvider{res: Result{Next7Days: math.NaN(), Next14Days: 1, Next30Days: 1}}
	f := NewFallback(primary, NewStatistical(7), true, 14)

	res, _ := f.Forecast(context.Background(), Request{Daily: flatSeries(30, 2), DataPoints: 30})
	if res.ModelType != ModelStatistical {
		t.Errorf("expected fallback to statistical, got %s", res.ModelType)
	}
}

func TestFallbackUsesLearnedModel(t *testing.T) {
	primary := &stubProvider{res: Result{Next7Days: 10.4, Next14Days: 20.6, Next30Days: 44}}
	f := NewFallback(primary, NewStatistical(7), true, 14)

	res, _ := f.Forecast(context.Background(), Request{Daily: flatSeries(30, 2), DataPoints: 20})
	if res.ModelType != ModelLearned {
		t.Errorf("expected learned model, got %s", res.ModelType)
	}
	if res.Next7Days != 10 || res.Next14Days != 21 {
		t.Errorf("expected rounded 10/21, got %v/%v", res.Next7Days, res.Next14Days)
	}
	if res.Confidence != domain.ConfidenceHigh {
		t.Errorf("expected confidence filled from data points, got %q", res.Confidence)
	}
}

func TestRemoteForecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/forecast" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req remoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID != "p1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(remoteResponse{Next7Days: 7, Next14Days: 14, Next30Days: 30, Confidence: "medium"})
	}))
	defer srv.Close()

	res, err := NewRemote(srv.URL, time.Second).Forecast(context.Background(), Request{ProductID: "p1", Daily: flatSeries(30, 1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Next30Days != 30 || res.ModelType != ModelLearned {
		t.Errorf("expected learned 30 day forecast of 30, got %+v", res)
	}
}

func TestRemoteForecastStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewRemote(srv.URL, time.Second).Forecast(context.Background(), Request{ProductID: "p1"}); err == nil {
		t.Error("expected error for non-200 response")
	}
}
