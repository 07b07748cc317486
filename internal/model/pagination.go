package model

// Pagination はページングされた一覧のメタデータを表す。保存はされない。
type Pagination struct {
	Page       int
	Limit      int
	Total      int
	TotalPages int
	HasNext    bool
	HasPrev    bool
}

// NewPagination はpage, limit, totalからページング情報を算出する。
// totalが0の場合、TotalPagesは0になる。
func NewPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// TaskPage はタスク一覧の1ページ分を表す。
type TaskPage struct {
	Tasks      []*Task
	Pagination Pagination
}
