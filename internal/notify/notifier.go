// Package notify は賞味期限リマインダーの予約を扱う。
// 入庫確定後にfire-and-forgetで呼ばれ、失敗しても在庫操作には影響しない。
package notify

import (
	"context"
	"time"

	"comedor/internal/domain/model"

	"github.com/labstack/gommon/log"
)

// 期限の何日前に知らせるか。当日ぶんも含む。
var reminderOffsets = []int{30, 7, 4, 3, 2, 1, 0}

type Scheduler interface {
	// ScheduleExpiryReminders はロットの期限に合わせてリマインダーを予約する。
	// 期限なしロットでは何もしない。
	ScheduleExpiryReminders(ctx context.Context, product *model.Product, batch *model.Batch) error

	// CancelForBatch はロット削除時に予約済みリマインダーを取り消す。
	CancelForBatch(ctx context.Context, batchID int64) error
}

// LogScheduler は予約内容をログに書くだけの実装。
// 外部プッシュ基盤へのつなぎ込みはここを差し替える。
type LogScheduler struct {
	logger *log.Logger
	now    func() time.Time
}

func NewLogScheduler(logger *log.Logger) *LogScheduler {
	if logger == nil {
		logger = log.New("notify")
	}
	return &LogScheduler{logger: logger, now: time.Now}
}

func (s *LogScheduler) ScheduleExpiryReminders(_ context.Context, product *model.Product, batch *model.Batch) error {
	if batch.ExpiresAt == nil {
		return nil
	}
	today := s.now().Truncate(24 * time.Hour)
	for _, days := range reminderOffsets {
		at := batch.ExpiresAt.AddDate(0, 0, -days)
		if at.Before(today) {
			continue
		}
		s.logger.Infof("expiry reminder scheduled: product=%s batch=%d expires=%s remind_at=%s",
			product.Name, batch.ID, batch.ExpiresAt.Format("2006-01-02"), at.Format("2006-01-02"))
	}
	return nil
}

func (s *LogScheduler) CancelForBatch(_ context.Context, batchID int64) error {
	s.logger.Infof("expiry reminders cancelled: batch=%d", batchID)
	return nil
}
