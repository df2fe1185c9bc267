package bus_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/bus"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/rtloop"
)

type collector struct {
	rtloop.BaseHandlers
	got chan any
}

func (c *collector) OnMessage(_ *rtloop.Thread, msg *rtloop.Envelope) {
	c.got <- msg.Payload
}

func TestMulticastFanOut(t *testing.T) {
	b := bus.NewBus()
	pool := bus.NewPool(bus.KindGlobal, 8)

	sender, err := rtloop.Spawn(nil, "sender", &rtloop.BaseHandlers{}, nil)
	require.NoError(t, err)
	defer sender.Destroy()

	c1 := &collector{got: make(chan any, 1)}
	r1, err := rtloop.Spawn(nil, "r1", c1, nil)
	require.NoError(t, err)
	defer r1.Destroy()

	c2 := &collector{got: make(chan any, 1)}
	r2, err := rtloop.Spawn(nil, "r2", c2, nil)
	require.NoError(t, err)
	defer r2.Destroy()

	require.NoError(t, b.Publish(sender, 7))
	require.NoError(t, b.SubscribeMessages(r1, 7, 100))
	require.NoError(t, b.SubscribeMessages(r2, 7, 100))

	require.NoError(t, b.Send(sender, 7, 100, pool, "link-table-v1"))

	for _, ch := range []chan any{c1.got, c2.got} {
		select {
		case v := <-ch:
			require.Equal(t, "link-table-v1", v)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive multicast message")
		}
	}
}

func TestPoolExhaustion(t *testing.T) {
	pool := bus.NewPool(bus.KindLocal, 1)
	e1, err := pool.Allocate()
	require.NoError(t, err)
	require.NotNil(t, e1)

	_, err = pool.Allocate()
	require.ErrorIs(t, err, rtloop.ErrPoolExhausted)

	e1.Free()
	e2, err := pool.Allocate()
	require.NoError(t, err)
	require.NotNil(t, e2)
}
