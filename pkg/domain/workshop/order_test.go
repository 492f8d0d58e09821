package workshop

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
)

func TestOrderLifecycle(t *testing.T) {
	o, err := OpenOrder(domain.NewID(), domain.NewID(), "noise on braking")
	require.NoError(t, err)
	assert.Equal(t, StatusReceived, o.Status)

	steps := []OrderStatus{StatusDiagnosing, StatusAwaitingApproval, StatusInProgress, StatusCompleted, StatusDelivered}
	for _, next := range steps {
		require.NoError(t, o.Advance(next), "advance to %s", next)
	}
	assert.False(t, o.CompletedAt.IsZero())
	assert.True(t, o.Status.Final())

	var types []domain.EventType
	for _, e := range o.PullEvents() {
		types = append(types, e.EventType())
	}
	assert.Contains(t, types, domain.EventOrderOpened)
	assert.Contains(t, types, domain.EventOrderCompleted)
}

func TestOrderRejectsSkippedTransitions(t *testing.T) {
	tests := []struct {
		name string
		from OrderStatus
		to   OrderStatus
	}{
		{"received to in progress", StatusReceived, StatusInProgress},
		{"completed to cancelled", StatusCompleted, StatusCancelled},
		{"delivered to received", StatusDelivered, StatusReceived},
		{"cancelled to diagnosing", StatusCancelled, StatusDiagnosing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &ServiceOrder{Status: tt.from}
			err := o.Advance(tt.to)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("err = %v, want ErrInvalidTransition", err)
			}
			if o.Status != tt.from {
				t.Errorf("status changed to %s", o.Status)
			}
		})
	}
}

func TestOrderTotals(t *testing.T) {
	o, _ := OpenOrder(domain.NewID(), domain.NewID(), "")
	pad, _ := NewPart("BRK-01", "Brake pad", domain.Reais(89.90), 10, 2)
	oil, _ := NewPart("OIL-5W30", "Oil 5W30", domain.Reais(42.50), 30, 5)

	_, err := o.AddItem(pad, 2)
	require.NoError(t, err)
	_, err = o.AddItem(oil, 4)
	require.NoError(t, err)

	require.NoError(t, o.Advance(StatusDiagnosing))
	require.NoError(t, o.Diagnose("worn pads", domain.Reais(150)))
	assert.Equal(t, domain.Reais(150)+domain.Reais(89.90)*2+domain.Reais(42.50)*4, o.Total)

	require.NoError(t, o.Quote())
	_, err = o.AddItem(pad, 1)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOrderItemValidation(t *testing.T) {
	pad, _ := NewPart("BRK-01", "Brake pad", domain.Reais(10), 1, 0)
	_, err := NewOrderItem(domain.NewID(), pad, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = NewOrderItem(domain.NewID(), nil, 1)
	assert.ErrorIs(t, err, ErrMissingPart)
}

func TestDeactivateCancelsOpenOrder(t *testing.T) {
	o, _ := OpenOrder(domain.NewID(), domain.NewID(), "")
	o.Deactivate()
	assert.False(t, o.IsActive())
	assert.Equal(t, StatusCancelled, o.Status)
}
