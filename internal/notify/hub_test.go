package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_DeliverToSingleUser(t *testing.T) {
	hub := NewHub(4)
	ch, cancel := hub.Subscribe("donor-1")
	defer cancel()

	other, cancelOther := hub.Subscribe("donor-2")
	defer cancelOther()

	n := hub.Deliver(Event{Type: EventRequestCreated, Target: ToUser("donor-1")})
	assert.Equal(t, 1, n)

	select {
	case e := <-ch:
		assert.Equal(t, EventRequestCreated, e.Type)
	default:
		t.Fatal("expected event on donor-1 channel")
	}
	assert.Empty(t, other)
}

func TestHub_DeliverToUserSet(t *testing.T) {
	hub := NewHub(4)
	ch1, cancel1 := hub.Subscribe("d1")
	defer cancel1()
	ch2, cancel2 := hub.Subscribe("d2")
	defer cancel2()
	ch3, cancel3 := hub.Subscribe("d3")
	defer cancel3()

	n := hub.Deliver(Event{Type: EventRequestCreated, Target: ToUsers("d1", "d2")})
	assert.Equal(t, 2, n)
	assert.Len(t, ch1, 1)
	assert.Len(t, ch2, 1)
	assert.Empty(t, ch3)
}

func TestHub_OpsChannel(t *testing.T) {
	hub := NewHub(4)
	user, cancelUser := hub.Subscribe("recipient-1")
	defer cancelUser()
	ops, cancelOps := hub.SubscribeOps()
	defer cancelOps()

	hub.Deliver(Event{Type: EventDeliveryStatusChanged, Target: ToUserAndOps("recipient-1")})

	assert.Len(t, user, 1)
	assert.Len(t, ops, 1)
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(4)
	a, cancelA := hub.Subscribe("a")
	defer cancelA()
	b, cancelB := hub.Subscribe("b")
	defer cancelB()
	ops, cancelOps := hub.SubscribeOps()
	defer cancelOps()

	n := hub.Deliver(Event{Type: EventDonorLocationUpdated, Target: ToAll()})
	assert.Equal(t, 3, n)
	assert.Len(t, a, 1)
	assert.Len(t, b, 1)
	assert.Len(t, ops, 1)
}

func TestHub_FullChannelDropsWithoutBlocking(t *testing.T) {
	hub := NewHub(1)
	dropped := 0
	hub.SetDropHandler(func() { dropped++ })

	ch, cancel := hub.Subscribe("slow")
	defer cancel()

	hub.Deliver(Event{Target: ToUser("slow")})
	n := hub.Deliver(Event{Target: ToUser("slow")}) // buffer full now

	assert.Equal(t, 0, n)
	assert.Equal(t, 1, dropped)
	assert.Len(t, ch, 1)
}

func TestHub_CancelRemovesSubscription(t *testing.T) {
	hub := NewHub(4)
	_, cancel := hub.Subscribe("gone")
	cancel()

	n := hub.Deliver(Event{Target: ToUser("gone")})
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestHub_MultipleSubscriptionsSameUser(t *testing.T) {
	hub := NewHub(4)
	ch1, cancel1 := hub.Subscribe("multi")
	defer cancel1()
	ch2, cancel2 := hub.Subscribe("multi")
	defer cancel2()

	n := hub.Deliver(Event{Target: ToUser("multi")})
	require.Equal(t, 2, n)
	assert.Len(t, ch1, 1)
	assert.Len(t, ch2, 1)
}
