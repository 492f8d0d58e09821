package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
)

func TestPublishOrder(t *testing.T) {
	bus := New()
	var got []string
	bus.SubscribeAll(func(domain.Event) { got = append(got, "all") })
	bus.Subscribe(domain.EventOrderOpened, func(domain.Event) { got = append(got, "typed") })
	bus.Subscribe(domain.EventOrderCompleted, func(domain.Event) { got = append(got, "other") })

	bus.Publish(domain.NewEvent(domain.EventOrderOpened, "o1", nil))
	assert.Equal(t, []string{"typed", "all"}, got)
	assert.Equal(t, 3, bus.HandlerCount())
}

func TestPanickingHandlerDoesNotStopOthers(t *testing.T) {
	bus := New()
	called := 0
	bus.Subscribe(domain.EventStockLow, func(domain.Event) { panic("boom") })
	bus.Subscribe(domain.EventStockLow, func(domain.Event) { called++ })

	assert.NotPanics(t, func() { bus.Publish(domain.NewEvent(domain.EventStockLow, "p1", nil)) })
	assert.Equal(t, 1, called)
}

func TestClosedBusDropsEvents(t *testing.T) {
	bus := New()
	called := 0
	bus.SubscribeAll(func(domain.Event) { called++ })
	bus.Close()
	bus.PublishAll([]domain.Event{domain.NewEvent(domain.EventSystemShutdown, "", nil)})
	assert.Zero(t, called)
}

func TestHandlersMayPublish(t *testing.T) {
	bus := New()
	var seen []domain.EventType
	bus.Subscribe(domain.EventOrderCompleted, func(e domain.Event) {
		bus.Publish(domain.NewEvent(domain.EventStockReleased, e.AggregateID(), nil))
	})
	bus.SubscribeAll(func(e domain.Event) { seen = append(seen, e.EventType()) })

	bus.Publish(domain.NewEvent(domain.EventOrderCompleted, "o1", nil))
	assert.Equal(t, []domain.EventType{domain.EventStockReleased, domain.EventOrderCompleted}, seen)
}
