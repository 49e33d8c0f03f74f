package push

import "time"

// 変更イベントの種類。
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// テーブル単位の変更通知。payloadは起こすための合図であって
// 真実ではない（購読側は必ず再取得する）。
type Event struct {
	Table    string    `json:"table"`
	Type     EventType `json:"type"`
	RecordID string    `json:"record_id"`
	At       time.Time `json:"at"`
}

// 購読の約束。購読解除のcancelは必ず呼ぶこと。
type Source interface {
	Subscribe(table string, types ...EventType) (<-chan Event, func())
}

// 発行側の約束。commit後にだけ呼ぶ。
type Publisher interface {
	Publish(ev Event)
}
