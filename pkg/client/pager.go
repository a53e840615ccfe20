package client

// Page страница списочной выдачи сервера.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// ClampPage приводит номер страницы к допустимому диапазону
// [1, totalPages]. Страницы нумеруются с единицы; при пустой выдаче
// допустима только первая страница.
func ClampPage(page, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// floorPage поднимает номер страницы исходящего запроса до единицы.
// Верхнюю границу знает только сервер, поэтому она здесь не проверяется.
func floorPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// Next возвращает номер следующей страницы, не выходя за границы.
func (p Page[T]) Next() int {
	return ClampPage(p.Page+1, p.TotalPages)
}

// Prev возвращает номер предыдущей страницы, не выходя за границы.
func (p Page[T]) Prev() int {
	return ClampPage(p.Page-1, p.TotalPages)
}
