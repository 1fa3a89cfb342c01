package util

import "slices"

type Stack[A any] struct {
	items []A
}

func (s *Stack[A]) Push(v A) {
	s.items = append(s.items, v)
}

func (s *Stack[A]) Pop() (ret A, ok bool) {
	if len(s.items) == 0 {
		return ret, false
	}
	last := len(s.items) - 1
	ret = s.items[last]
	s.items = s.items[:last]
	return ret, true
}

// Items returns a copy of the stack, bottom first
func (s *Stack[A]) Items() []A {
	return slices.Clone(s.items)
}

func (s *Stack[A]) Len() int { return len(s.items) }
