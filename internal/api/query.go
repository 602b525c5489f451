package api

import (
	"net/url"
	"strconv"
)

// окно строк для виртуализированной отрисовки
type Window struct {
	Limit  int
	Offset int
}

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// parseWindow читает _limit/_offset (или limit/offset). Невалидные значения
// молча заменяются умолчаниями.
func parseWindow(q url.Values) Window {
	limit := defaultLimit
	lv := q.Get("_limit")
	if lv == "" {
		lv = q.Get("limit")
	}
	if lv != "" {
		if n, err := strconv.Atoi(lv); err == nil && n >= 0 && n <= maxLimit {
			limit = n
		}
	}

	offset := 0
	ov := q.Get("_offset")
	if ov == "" {
		ov = q.Get("offset")
	}
	if ov != "" {
		if n, err := strconv.Atoi(ov); err == nil && n >= 0 {
			offset = n
		}
	}
	return Window{Limit: limit, Offset: offset}
}

func window[T any](all []T, offset, limit int) []T {
	start := offset
	if start < 0 {
		start = 0
	}
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}
