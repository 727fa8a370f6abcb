package calendar

// Page описывает одну страницу элементов с метаданными навигации.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Page     int   `json:"page"`      // номер страницы (с 1)
	PageSize int   `json:"page_size"` // количество элементов на странице
	HasNext  bool  `json:"has_next"`
	HasPrev  bool  `json:"has_prev"`
	Total    int64 `json:"total"` // общее количество элементов
}

// NewPage собирает страницу из уже отобранных элементов. items — результат
// LIMIT/OFFSET-выборки, total — общее количество без лимита. page нумеруется
// с 1, при некорректных значениях используются дефолты.
func NewPage[T any](items []T, page, pageSize int, total int64) Page[T] {
	const defaultPageSize = 10

	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if page <= 0 {
		page = 1
	}
	if items == nil {
		items = []T{}
	}

	return Page[T]{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		HasNext:  int64(page*pageSize) < total,
		HasPrev:  page > 1,
		Total:    total,
	}
}
