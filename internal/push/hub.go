package push

import "sync"

const subscriberBuffer = 16

type subscriber struct {
	ch    chan Event
	table string
	types map[EventType]bool // 空なら全種類
}

// プロセス内のpub/subハブ。配送はベストエフォートで、
// 受け取りの遅い購読者宛てのイベントは捨てる（詰まらせない）。
// 取りこぼし前提のチャネルなので、購読側はイベントを再取得の
// 合図としてだけ使うこと。
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]*subscriber)}
}

func (h *Hub) Subscribe(table string, types ...EventType) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &subscriber{
		ch:    make(chan Event, subscriberBuffer),
		table: table,
		types: make(map[EventType]bool, len(types)),
	}
	for _, t := range types {
		sub.types[t] = true
	}

	id := h.nextID
	h.nextID++

	if h.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	h.subs[id] = sub

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub.ch)
			}
		})
	}
	return sub.ch, cancel
}

func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	for _, sub := range h.subs {
		if sub.table != "" && sub.table != ev.Table {
			continue
		}
		if len(sub.types) > 0 && !sub.types[ev.Type] {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// 溢れたら捨てる
		}
	}
}

// Closeは全購読を閉じる。以後のPublishは何もしない。
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}
