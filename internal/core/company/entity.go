package company

import "time"

// Company は会社エンティティです。
// Deleted が true の会社は論理削除済みで、通常の読み取り経路には現れません。
type Company struct {
	ID           int64
	Name         string
	Registration string
	Description  *string
	Deleted      bool
	DeletedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
