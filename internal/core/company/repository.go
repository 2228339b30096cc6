package company

import (
	"context"
	"time"

	"github.com/ogurasousui/codex-http-clean-arch/internal/core/query"
)

// Repository は会社エンティティの永続化を行うインターフェースです。
// 読み取り系のメソッドは論理削除済みの会社を返しません。
type Repository interface {
	Create(ctx context.Context, company *Company) (*Company, error)
	Update(ctx context.Context, company *Company) (*Company, error)
	// MarkDeleted は会社を論理削除します。削除済みの ID に対しては何もせず nil を返し、
	// 一度も存在しない ID に対しては ErrCompanyNotFound を返します。
	MarkDeleted(ctx context.Context, id int64, at time.Time) error
	FindByID(ctx context.Context, id int64) (*Company, error)
	FindByRegistration(ctx context.Context, registration string) (*Company, error)
	List(ctx context.Context, filter ListCompaniesFilter) ([]*Company, error)
}

// ListCompaniesFilter は一覧取得時の範囲と並び順を表します。
// 並び順は Sort で指定した列、同値の場合は id の昇順です。
type ListCompaniesFilter struct {
	Limit     int
	Offset    int
	Sort      query.SortKey
	Ascending bool
}
