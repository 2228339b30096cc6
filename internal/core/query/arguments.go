// Package query は一覧取得 API のクエリ引数 (offset / max / sort / order) を扱います。
package query

import (
	"errors"
	"strconv"

	"github.com/ogurasousui/codex-http-clean-arch/internal/core/validation"
)

// SortKey は一覧の並び替えキーです。
type SortKey string

const (
	SortByID           SortKey = "id"
	SortByName         SortKey = "name"
	SortByRegistration SortKey = "registration"
)

// Order はクライアントが指定した並び順です。asc / ASC / desc / DESC のいずれかを取ります。
type Order string

const (
	OrderAsc       Order = "asc"
	OrderAscUpper  Order = "ASC"
	OrderDesc      Order = "desc"
	OrderDescUpper Order = "DESC"
)

// Ascending は昇順かどうかを返します。
func (o Order) Ascending() bool {
	return o == OrderAsc || o == OrderAscUpper
}

// 検証エラーで報告するフィールド名です。
const (
	FieldOffset = "offset"
	FieldMax    = "max"
	FieldSort   = "sort"
	FieldOrder  = "order"
)

// Arguments は検証済みの一覧取得引数です。各フィールドは独立して省略可能です。
type Arguments struct {
	Offset Optional[int]
	Max    Optional[int]
	Sort   Optional[SortKey]
	Order  Optional[Order]
}

// Raw はリクエストから取り出した未検証の値です。nil は指定なしを表します。
type Raw struct {
	Offset *string
	Max    *string
	Sort   *string
	Order  *string
}

type argumentsRules struct {
	Offset *int     `json:"offset" validate:"omitempty,min=0"`
	Max    *int     `json:"max" validate:"omitempty,min=1"`
	Sort   *SortKey `json:"sort" validate:"omitempty,oneof=id name registration"`
	Order  *Order   `json:"order" validate:"omitempty,oneof=asc ASC desc DESC"`
}

var validate = validation.NewValidator()

// Parse は Raw を検証して Arguments を生成します。
// 失敗時は違反したフィールドをすべて列挙した *validation.Error を返します。
func Parse(raw Raw) (Arguments, error) {
	var (
		args   Arguments
		fields []validation.FieldError
	)

	if raw.Offset != nil {
		n, err := strconv.Atoi(*raw.Offset)
		if err != nil {
			fields = append(fields, validation.Field(FieldOffset, "must be an integer"))
		} else {
			args.Offset = Some(n)
		}
	}

	if raw.Max != nil {
		n, err := strconv.Atoi(*raw.Max)
		if err != nil {
			fields = append(fields, validation.Field(FieldMax, "must be an integer"))
		} else {
			args.Max = Some(n)
		}
	}

	if raw.Sort != nil {
		args.Sort = Some(SortKey(*raw.Sort))
	}

	if raw.Order != nil {
		args.Order = Some(Order(*raw.Order))
	}

	err := args.Validate()
	if err == nil && len(fields) == 0 {
		return args, nil
	}

	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		fields = append(fields, verr.Fields...)
	case err != nil:
		return Arguments{}, err
	}

	return Arguments{}, validation.New(fields...)
}

// Validate は指定されたフィールドがそれぞれの制約を満たすかを検証します。
func (a Arguments) Validate() error {
	return validate.Struct(argumentsRules{
		Offset: a.Offset.ptr(),
		Max:    a.Max.ptr(),
		Sort:   a.Sort.ptr(),
		Order:  a.Order.ptr(),
	})
}
