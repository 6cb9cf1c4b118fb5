package ratelimit

import (
	"testing"

	"github.com/pokevote/gameserver/internal/credentials"
)

func TestLimitsFor(t *testing.T) {
	tests := []struct {
		plan     credentials.Plan
		rpsLimit int
		rate     float64
		burst    float64
	}{
		{credentials.PlanFree, 0, 5, 8},
		{credentials.PlanStandard, 0, 20, 30},
		{credentials.PlanPremium, 0, 100, 150},
		// Unknown plans fall back to the credential's own limit.
		{credentials.Plan("enterprise"), 40, 40, 80},
		{credentials.Plan(""), 7, 7, 14},
	}

	for _, tt := range tests {
		rate, burst := LimitsFor(tt.plan, tt.rpsLimit)
		if rate != tt.rate || burst != tt.burst {
			t.Errorf("LimitsFor(%q, %d) = (%v, %v), want (%v, %v)",
				tt.plan, tt.rpsLimit, rate, burst, tt.rate, tt.burst)
		}
	}
}
