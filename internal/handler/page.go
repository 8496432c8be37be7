package handler

import (
	"net/http"
	"strings"

	"github.com/hitoshi/lifemanager/internal/model"
	"github.com/hitoshi/lifemanager/internal/repository"
)

// pageResponse はページング結果のAPIレスポンス。
type pageResponse[T any] struct {
	Content       []T  `json:"content"`
	Page          int  `json:"page"`
	Size          int  `json:"size"`
	TotalElements int  `json:"totalElements"`
	TotalPages    int  `json:"totalPages"`
	First         bool `json:"first"`
	Last          bool `json:"last"`
}

func newPageResponse[D, T any](p *repository.Page[D], content []T) pageResponse[T] {
	totalPages := p.TotalPages()
	return pageResponse[T]{
		Content:       content,
		Page:          p.Page,
		Size:          p.Size,
		TotalElements: p.TotalElements,
		TotalPages:    totalPages,
		First:         p.Page == 0,
		Last:          p.Page >= totalPages-1,
	}
}

// pageRequestFromQuery はpage、size、sortBy、sortDirectionを読み取る。
// 既定値の補完と並び順の検証はサービス層で行う。
func pageRequestFromQuery(r *http.Request) (repository.PageRequest, error) {
	page, err := queryInt(r, "page", 0)
	if err != nil {
		return repository.PageRequest{}, err
	}
	size, err := queryInt(r, "size", repository.DefaultPageSize)
	if err != nil {
		return repository.PageRequest{}, err
	}

	q := r.URL.Query()
	descending := true
	switch dir := strings.ToLower(q.Get("sortDirection")); dir {
	case "", "desc":
	case "asc":
		descending = false
	default:
		return repository.PageRequest{}, model.NewValidationError("sortDirectionはascまたはdescである必要があります。")
	}

	return repository.PageRequest{
		Page:       page,
		Size:       size,
		SortBy:     q.Get("sortBy"),
		Descending: descending,
	}, nil
}
