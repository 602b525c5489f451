// api/names.go
package api

import (
	"fmt"
	"strconv"
	"strings"
)

// levelLocked превращает :level из URL в индекс уровня: число или имя уровня
// без учёта регистра.
func (s *Session) levelLocked(ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, fmt.Errorf("%w: empty", errUnknownLevelRef)
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 0 || n >= s.hierarchy.Depth() {
			return 0, fmt.Errorf("%w: %d out of range [0, %d)", errUnknownLevelRef, n, s.hierarchy.Depth())
		}
		return n, nil
	}
	if i, ok := s.hierarchy.LevelIndex(ref); ok {
		return i, nil
	}
	return 0, fmt.Errorf("%w: %q in %s", errUnknownLevelRef, ref, s.hierarchy.FQN())
}

// levelName — имя уровня для полей ответа; для индекса вне диапазона — число
func (s *Session) levelName(level int) string {
	if level >= 0 && level < s.hierarchy.Depth() {
		return s.hierarchy.Levels[level].Name
	}
	return strconv.Itoa(level)
}
