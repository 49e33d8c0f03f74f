package repository

import "context"

// トランザクション内で使う約束
type TxRepos interface {
	Products() ProductRepository
	Categories() CategoryRepository
	Suppliers() SupplierRepository
	Batches() BatchRepository
	Requests() RequestRepository
	Losses() LossReportRepository
	Movements() MovementRepository
	AuditLogs() AuditLogRepository
	Dishes() DishRepository
	Profiles() ProfileRepository
}

// UsecaseからTxの開始/commit/rollbackを隠す。
// 台帳の減算＋依頼の遷移＋監査ログは必ず1つのfnの中で行う。
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
