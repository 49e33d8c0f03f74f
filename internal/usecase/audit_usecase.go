package usecase

import (
	"context"
	"net/http"

	"comedor/internal/domain/model"
	repo "comedor/internal/repository"
)

// AuditUsecase は監査ログの照会。書き込みは各usecaseが
// 操作と同一トランザクションで行う。
type AuditUsecase struct {
	tx repo.TransactionManager
}

func NewAuditUsecase(tx repo.TransactionManager) *AuditUsecase {
	return &AuditUsecase{tx: tx}
}

func (u *AuditUsecase) List(ctx context.Context, actor model.Principal, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	if !actor.Role.AtLeast(model.RoleSupervisor) {
		return nil, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 100
	}

	var logs []model.AuditLog
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		logs, err = r.AuditLogs().List(ctx, f)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return logs, nil
}
