package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/andresuchdata/shelfwise/internal/domain"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domain.NewValidationError("critical", "must be positive"), http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("update: %w", domain.NewValidationError("x", "bad")), http.StatusBadRequest},
		{"missing tenant", domain.ErrMissingTenant, http.StatusBadRequest},
		{"not found", fmt.Errorf("load product p1: %w", domain.ErrNotFound), http.StatusNotFound},
		{"data quality", domain.ErrDataQuality, http.StatusUnprocessableEntity},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestProductIDsCleaned(t *testing.T) {
	req := productIDsRequest{ProductIDs: []string{" a ", "", "b", "a"}}
	got := req.cleaned()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("expected [a b], got %v", got)
	}
}
