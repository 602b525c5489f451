package grid

import "errors"

var (
	// ErrInvalidReference — неизвестная строка или уровень вне [0, D)
	ErrInvalidReference = errors.New("invalid reference")
	// ErrOptionUnavailable — код не предлагается под текущим родителем строки
	ErrOptionUnavailable = errors.New("option unavailable")
	// ErrOptionTaken — код уникального уровня уже выбран в другой строке
	ErrOptionTaken = errors.New("option taken by another row")
)
