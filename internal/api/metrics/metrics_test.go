package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/rlrepresentacoes/sigem/internal/core/domain"
)

type stubResolver struct {
	profile *domain.Profile
	err     error
}

func (s stubResolver) Resolve(context.Context, domain.Identity) (*domain.Profile, error) {
	return s.profile, s.err
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestInstrumentResolver_CountsOutcomes(t *testing.T) {
	ok := ProfileResolutionsTotal.WithLabelValues("ok")
	notFound := ProfileResolutionsTotal.WithLabelValues("not_found")
	beforeOK, beforeNotFound := counterValue(t, ok), counterValue(t, notFound)

	r := InstrumentResolver(stubResolver{profile: &domain.Profile{ID: "u-1", Role: domain.RoleSales}})
	p, err := r.Resolve(context.Background(), domain.Identity{ID: "u-1"})
	if err != nil || p == nil || p.Role != domain.RoleSales {
		t.Fatalf("resolver result not passed through: %+v %v", p, err)
	}

	_, err = InstrumentResolver(stubResolver{err: domain.ErrProfileNotFound}).Resolve(context.Background(), domain.Identity{ID: "u-2"})
	if err != domain.ErrProfileNotFound {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}

	if got := counterValue(t, ok) - beforeOK; got != 1 {
		t.Fatalf("expected 1 ok resolution, got %v", got)
	}
	if got := counterValue(t, notFound) - beforeNotFound; got != 1 {
		t.Fatalf("expected 1 not_found resolution, got %v", got)
	}
}

func TestResolutionOutcome(t *testing.T) {
	cases := map[error]string{
		nil:                          "ok",
		domain.ErrProfileNotFound:    "not_found",
		domain.ErrBackendUnavailable: "unavailable",
	}
	for err, want := range cases {
		if got := resolutionOutcome(err); got != want {
			t.Fatalf("resolutionOutcome(%v) = %q, want %q", err, got, want)
		}
	}
}
