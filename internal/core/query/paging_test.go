package query

import "testing"

func TestPaging_Resolve_Defaults(t *testing.T) {
	t.Parallel()

	w := DefaultPaging().Resolve(Arguments{})

	want := Window{Offset: 0, Limit: DefaultPageSize, Sort: SortByID, Ascending: true}
	if w != want {
		t.Fatalf("unexpected window: want %+v got %+v", want, w)
	}
}

func TestPaging_Resolve_ClampsMax(t *testing.T) {
	t.Parallel()

	p := Paging{DefaultSize: 10, MaxSize: 25}

	if got := p.Resolve(Arguments{Max: Some(1000)}).Limit; got != 25 {
		t.Fatalf("expected max clamped to 25, got %d", got)
	}

	if got := p.Resolve(Arguments{Max: Some(25)}).Limit; got != 25 {
		t.Fatalf("expected 25, got %d", got)
	}

	if got := p.Resolve(Arguments{Max: Some(3)}).Limit; got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}

	if got := p.Resolve(Arguments{}).Limit; got != 10 {
		t.Fatalf("expected default 10, got %d", got)
	}
}

func TestPaging_Resolve_SortAndOrder(t *testing.T) {
	t.Parallel()

	w := DefaultPaging().Resolve(Arguments{Offset: Some(7), Sort: Some(SortByName), Order: Some(OrderDescUpper)})

	if w.Offset != 7 {
		t.Fatalf("expected offset 7, got %d", w.Offset)
	}
	if w.Sort != SortByName {
		t.Fatalf("expected sort name, got %s", w.Sort)
	}
	if w.Ascending {
		t.Fatal("expected descending order")
	}
}

func TestPaging_Resolve_NormalizesBrokenConfig(t *testing.T) {
	t.Parallel()

	w := Paging{DefaultSize: 500, MaxSize: 100}.Resolve(Arguments{})
	if w.Limit != 100 {
		t.Fatalf("expected default capped at max 100, got %d", w.Limit)
	}

	w = Paging{}.Resolve(Arguments{})
	if w.Limit != DefaultPageSize {
		t.Fatalf("expected package default %d, got %d", DefaultPageSize, w.Limit)
	}
}
