package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	n := New()

	var first, second []Event
	n.Subscribe(KindProgress, func(ev Event) { first = append(first, ev) })
	n.Subscribe(KindProgress, func(ev Event) { second = append(second, ev) })

	n.Publish(Progress("issues", 100, 250))

	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
	assert.Equal(t, "issues", first[0].Resource)
	assert.Equal(t, 100, first[0].Count)
	assert.Equal(t, 250, first[0].Total)
}

func TestKindsAreIndependent(t *testing.T) {
	n := New()

	var notices, errors []Event
	n.Subscribe(KindNotice, func(ev Event) { notices = append(notices, ev) })
	n.Subscribe(KindError, func(ev Event) { errors = append(errors, ev) })

	n.Publish(Notice("saved"))
	n.Publish(Error("server unreachable"))

	assert.Len(t, notices, 1)
	assert.Len(t, errors, 1)
	assert.Equal(t, "saved", notices[0].Message)
	assert.Equal(t, "server unreachable", errors[0].Message)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	n := New()

	var got int
	off := n.Subscribe(KindNotice, func(Event) { got++ })

	n.Publish(Notice("one"))
	off()
	n.Publish(Notice("two"))
	off() // second call is a no-op

	assert.Equal(t, 1, got)
}

func TestNoReplayForLateSubscribers(t *testing.T) {
	n := New()
	n.Publish(Notice("lost"))

	var got int
	n.Subscribe(KindNotice, func(Event) { got++ })
	assert.Equal(t, 0, got)
}

func TestPublishWithoutSubscribersIsSafe(t *testing.T) {
	n := New()
	assert.NotPanics(t, func() { n.Publish(Progress("projects", 0, -1)) })
}
