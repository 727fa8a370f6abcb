package calendar

import "testing"

func TestNewPage_Middle(t *testing.T) {
	page := NewPage([]int{4, 5, 6}, 2, 3, 7)
	if !page.HasNext || !page.HasPrev {
		t.Fatalf("expected HasNext && HasPrev, got %+v", page)
	}
	if page.Total != 7 {
		t.Fatalf("expected total 7, got %d", page.Total)
	}
}

func TestNewPage_First(t *testing.T) {
	page := NewPage([]int{1, 2, 3}, 1, 3, 7)
	if !page.HasNext || page.HasPrev {
		t.Fatalf("expected HasNext && !HasPrev, got %+v", page)
	}
}

func TestNewPage_Last(t *testing.T) {
	page := NewPage([]int{7}, 3, 3, 7)
	if page.HasNext || !page.HasPrev {
		t.Fatalf("expected !HasNext && HasPrev, got %+v", page)
	}
}

func TestNewPage_Defaults(t *testing.T) {
	page := NewPage([]int{1, 2}, 0, 0, 2)
	if page.Page != 1 {
		t.Fatalf("expected page defaulted to 1, got %d", page.Page)
	}
	if page.PageSize != 10 {
		t.Fatalf("expected default page size 10, got %d", page.PageSize)
	}
}

func TestNewPage_NilItems(t *testing.T) {
	page := NewPage[string](nil, 1, 10, 0)
	if page.Items == nil || len(page.Items) != 0 {
		t.Fatalf("expected empty non-nil items, got %+v", page.Items)
	}
	if page.HasNext || page.HasPrev {
		t.Fatalf("unexpected navigation flags: %+v", page)
	}
}
