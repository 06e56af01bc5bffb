package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// 一意制約違反（注文番号の重複など）
	ErrConflict = errors.New("conflict")

	// 在庫増減の数量が0以下、または合算で桁あふれ
	ErrInvalidQuantity = errors.New("invalid quantity")
)
