package models

// PageRequest is zero-based offset paging.
type PageRequest struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

func (p PageRequest) Offset() int {
	if p.Page < 0 {
		return 0
	}
	return p.Page * p.Size
}

func (p PageRequest) Next() PageRequest {
	return PageRequest{Page: p.Page + 1, Size: p.Size}
}

type PageInfo struct {
	Page        int  `json:"page"`
	Size        int  `json:"size"`
	HasNextPage bool `json:"hasNextPage"`
}

type TargetPage struct {
	Targets  []RiskScoreTarget `json:"targets"`
	PageInfo PageInfo          `json:"pageInfo"`
}

func (p TargetPage) HasNextPage() bool {
	return p.PageInfo.HasNextPage
}

// trimPage cuts a size+1 fetch down to size and reports whether more rows exist.
func trimPage[T any](rows []T, size int) ([]T, bool) {
	if len(rows) > size {
		return rows[:size], true
	}
	return rows, false
}
