package models_test

import (
	"testing"

	"github.com/amirphl/Kitsune/models"
	"github.com/stretchr/testify/assert"
)

func TestConversionRate(t *testing.T) {
	tests := []struct {
		name        string
		leads       int64
		conversions int64
		want        float64
	}{
		{"no leads", 0, 0, 0},
		{"no leads with stray conversions", 0, 5, 0},
		{"negative leads", -3, 1, 0},
		{"half", 10, 5, 50},
		{"all", 1, 1, 100},
		{"none", 7, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, models.ConversionRate(tt.leads, tt.conversions), 1e-9)
		})
	}
}

func TestGrowthRate(t *testing.T) {
	tests := []struct {
		name     string
		recent   int64
		previous int64
		want     float64
	}{
		{"previous zero", 12, 0, 0},
		{"both zero", 0, 0, 0},
		{"doubled", 20, 10, 100},
		{"halved", 5, 10, -50},
		{"flat", 8, 8, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, models.GrowthRate(tt.recent, tt.previous), 1e-9)
		})
	}
}

func TestAffiliateConversionRate(t *testing.T) {
	a := &models.Affiliate{}
	assert.Zero(t, a.ConversionRate())

	a.TotalLeads = 4
	a.TotalConversions = 1
	assert.InDelta(t, 25.0, a.ConversionRate(), 1e-9)

	asg := &models.AffiliateFormAssignment{LeadsGenerated: 2, Conversions: 2}
	assert.InDelta(t, 100.0, asg.ConversionRate(), 1e-9)
}
