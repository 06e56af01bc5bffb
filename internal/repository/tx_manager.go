package repository

import "context"

// TxRepos は1つのトランザクションに束ねたrepository。
// 注文作成（在庫引当 + 注文/明細保存）とキャンセル（状態遷移 + 在庫戻し）はこの中で完結させる。
type TxRepos interface {
	Orders() OrderRepository
	OrderItems() OrderItemRepository
	Inventory() InventoryRepository
	Products() ProductRepository
}

// TransactionManager はUsecaseからTxの開始/commit/rollbackを隠す。
//
// fn が nil を返したときだけcommitする。エラーを返したら（途中の在庫減算も含めて）全部rollbackし、
// そのエラーをそのまま返す（ErrConflict や AppError を呼び出し側で判定できるように包まない）。
// ctx が既に終わっていればTxを始めずに ctx.Err() を返す。
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
