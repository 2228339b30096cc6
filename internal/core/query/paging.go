package query

const (
	// DefaultPageSize は max 未指定時のページサイズです。
	DefaultPageSize = 50
	// MaxPageSize は 1 ページで返却する件数の上限です。
	MaxPageSize = 200
)

// Paging はページサイズの既定値と上限を保持します。
type Paging struct {
	DefaultSize int
	MaxSize     int
}

// DefaultPaging は既定の Paging を返します。
func DefaultPaging() Paging {
	return Paging{DefaultSize: DefaultPageSize, MaxSize: MaxPageSize}
}

// Window はリポジトリへ渡す、既定値適用済みの範囲と並び順です。
type Window struct {
	Offset    int
	Limit     int
	Sort      SortKey
	Ascending bool
}

// Resolve は省略されたフィールドに既定値を適用し、max を上限で切り詰めます。
// 不正な値は Validate 済みであることを前提とします。
func (p Paging) Resolve(a Arguments) Window {
	p = p.normalized()

	limit := a.Max.OrElse(p.DefaultSize)
	if limit > p.MaxSize {
		limit = p.MaxSize
	}

	return Window{
		Offset:    a.Offset.OrElse(0),
		Limit:     limit,
		Sort:      a.Sort.OrElse(SortByID),
		Ascending: a.Order.OrElse(OrderAsc).Ascending(),
	}
}

func (p Paging) normalized() Paging {
	if p.MaxSize <= 0 {
		p.MaxSize = MaxPageSize
	}
	if p.DefaultSize <= 0 {
		p.DefaultSize = DefaultPageSize
	}
	if p.DefaultSize > p.MaxSize {
		p.DefaultSize = p.MaxSize
	}
	return p
}
