package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubscribersOrderAndRemoval(t *testing.T) {
	var s subscribers
	var order []int

	a := s.add(func(*Identity) { order = append(order, 1) })
	s.add(func(*Identity) { order = append(order, 2) })
	s.add(func(*Identity) { order = append(order, 3) })
	require.Equal(t, 3, s.count())

	s.notify(nil)
	require.Equal(t, []int{1, 2, 3}, order)

	s.remove(a)
	s.remove(a)
	require.Equal(t, 2, s.count())

	order = nil
	s.notify(&Identity{UID: "x"})
	require.Equal(t, []int{2, 3}, order)
}

func TestSubscriberMayUnsubscribeDuringNotify(t *testing.T) {
	o := NewOracle(nil, Config{})

	calls := 0
	var unsubscribe Unsubscribe
	unsubscribe = o.Subscribe(func(*Identity) {
		calls++
		if unsubscribe != nil {
			unsubscribe()
		}
	})

	// First delivery happened inside Subscribe, before unsubscribe was set.
	require.Equal(t, 1, calls)
	require.Equal(t, 1, o.subs.count())

	o.subs.notify(nil)
	require.Equal(t, 2, calls)
	require.Zero(t, o.subs.count())

	o.subs.notify(nil)
	require.Equal(t, 2, calls)
}
