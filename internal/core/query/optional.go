package query

// Optional は「指定なし」と「値が指定された」を区別して保持します。
// ゼロ値は指定なしを表します。
type Optional[T any] struct {
	value   T
	present bool
}

// Some は値が指定された Optional を返します。
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, present: true}
}

// Get は値と指定有無を返します。
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.present
}

// IsPresent は値が指定されているかを返します。
func (o Optional[T]) IsPresent() bool {
	return o.present
}

// OrElse は指定なしの場合に def を返します。
func (o Optional[T]) OrElse(def T) T {
	if !o.present {
		return def
	}
	return o.value
}

func (o Optional[T]) ptr() *T {
	if !o.present {
		return nil
	}
	v := o.value
	return &v
}
