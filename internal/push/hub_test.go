package push

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvOrTimeout(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestHub_PublishReachesMatchingSubscriber(t *testing.T) {
	h := NewHub()
	defer h.Close()

	ch, cancel := h.Subscribe("adjustment_requests")
	defer cancel()

	h.Publish(Event{Table: "adjustment_requests", Type: EventUpdate, RecordID: "req-1"})
	ev := recvOrTimeout(t, ch)
	assert.Equal(t, "req-1", ev.RecordID)
}

func TestHub_TableFilter(t *testing.T) {
	h := NewHub()
	defer h.Close()

	ch, cancel := h.Subscribe("batches")
	defer cancel()

	h.Publish(Event{Table: "adjustment_requests", Type: EventInsert})
	h.Publish(Event{Table: "batches", Type: EventInsert, RecordID: "b-1"})

	ev := recvOrTimeout(t, ch)
	assert.Equal(t, "batches", ev.Table)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected event: %+v", extra)
	default:
	}
}

func TestHub_TypeFilter(t *testing.T) {
	h := NewHub()
	defer h.Close()

	ch, cancel := h.Subscribe("adjustment_requests", EventUpdate)
	defer cancel()

	h.Publish(Event{Table: "adjustment_requests", Type: EventInsert})
	h.Publish(Event{Table: "adjustment_requests", Type: EventUpdate, RecordID: "req-2"})

	ev := recvOrTimeout(t, ch)
	assert.Equal(t, EventUpdate, ev.Type)
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub()
	defer h.Close()

	ch, cancel := h.Subscribe("batches")
	defer cancel()

	// バッファを超えて発行してもPublishは返ってくる
	for i := 0; i < subscriberBuffer*2; i++ {
		h.Publish(Event{Table: "batches", Type: EventInsert})
	}

	n := 0
	for {
		select {
		case <-ch:
			n++
		default:
			require.Equal(t, subscriberBuffer, n)
			return
		}
	}
}

func TestHub_CancelClosesChannel(t *testing.T) {
	h := NewHub()
	defer h.Close()

	ch, cancel := h.Subscribe("batches")
	cancel()
	cancel() // 二重キャンセルも安全

	_, ok := <-ch
	assert.False(t, ok)

	// キャンセル後の発行はpanicしない
	h.Publish(Event{Table: "batches", Type: EventInsert})
}

func TestHub_CloseStopsPublishing(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("batches")
	defer cancel()

	h.Close()
	_, ok := <-ch
	assert.False(t, ok)

	h.Publish(Event{Table: "batches", Type: EventInsert})

	// Close後のSubscribeは閉じたチャネルを返す
	ch2, _ := h.Subscribe("batches")
	_, ok = <-ch2
	assert.False(t, ok)
}
