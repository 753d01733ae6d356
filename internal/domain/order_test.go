package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tableflow/internal/domain"
)

func TestComputeTotal(t *testing.T) {
	o := domain.Order{
		Items: []domain.OrderLine{
			{Title: "Tea", Price: 20, Qty: 2},
			{Title: "Cake", Price: 45, Qty: 1},
		},
		AddOns: []domain.AddonBatch{
			{AddedAt: time.Now(), Items: []domain.OrderLine{{Title: "Toast", Price: 15, Qty: 1}}},
			{AddedAt: time.Now(), Items: []domain.OrderLine{{Title: "Tea", Price: 20, Qty: 1}}},
		},
	}
	assert.Equal(t, 120.0, o.ComputeTotal())
	assert.Zero(t, (&domain.Order{}).ComputeTotal())
}

func TestLive(t *testing.T) {
	tests := []struct {
		status domain.OrderStatus
		paid   bool
		live   bool
	}{
		{domain.StatusPending, false, true},
		{domain.StatusMaking, false, true},
		{domain.StatusReady, false, true},
		{domain.StatusServed, false, false},
		{domain.StatusServed, true, false},
	}
	for _, tt := range tests {
		o := domain.Order{Status: tt.status, Paid: tt.paid}
		assert.Equal(t, tt.live, o.Live(), "status=%s paid=%v", tt.status, tt.paid)
	}
}

func TestOrderStatusValid(t *testing.T) {
	assert.True(t, domain.StatusPending.Valid())
	assert.True(t, domain.StatusServed.Valid())
	assert.False(t, domain.OrderStatus("cancelled").Valid())
	assert.False(t, domain.OrderStatus("").Valid())
}
