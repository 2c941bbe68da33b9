package generic

type Set[T comparable] map[T]Void

func NewSet[T comparable](items ...T) Set[T] {
	res := make(Set[T], len(items))
	for _, item := range items {
		res.Add(item)
	}
	return res
}

// Add inserts an item, returning false if it was already present.
func (s Set[T]) Add(item T) bool {
	if _, found := s[item]; found {
		return false
	}
	s[item] = NewVoid()
	return true
}

// Contains returns true only if every given item is present.
func (s Set[T]) Contains(items ...T) bool {
	for _, item := range items {
		if _, found := s[item]; !found {
			return false
		}
	}
	return true
}

func (s Set[T]) Count() int {
	return len(s)
}

// Remove deletes an item, returning false if it was not present.
func (s Set[T]) Remove(item T) bool {
	if _, found := s[item]; !found {
		return false
	}
	delete(s, item)
	return true
}

func (s Set[T]) ToSlice() []T {
	slice := make([]T, 0, s.Count())
	for item := range s {
		slice = append(slice, item)
	}
	return slice
}
