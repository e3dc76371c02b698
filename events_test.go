package bullq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHubDeliversOnlyToMatchingKind(t *testing.T) {
	h := NewHub()
	var completed, failed int
	h.On(EventCompleted, func(Event) { completed++ })
	h.On(EventFailed, func(Event) { failed++ })

	h.Emit(Event{Kind: EventCompleted, JobID: 1})

	assert.Equal(t, 1, completed)
	assert.Equal(t, 0, failed)
}

func TestHubDeliversInRegistrationOrder(t *testing.T) {
	h := NewHub()
	var order []int
	h.On(EventProgress, func(Event) { order = append(order, 1) })
	h.On(EventProgress, func(Event) { order = append(order, 2) })

	h.Emit(Event{Kind: EventProgress})

	assert.Equal(t, []int{1, 2}, order)
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub()
	var calls int
	unsubscribe := h.On(EventEmpty, func(Event) { calls++ })

	h.Emit(Event{Kind: EventEmpty})
	unsubscribe()
	h.Emit(Event{Kind: EventEmpty})

	assert.Equal(t, 1, calls)
}
