package bounce3

// Adapted from https://gist.github.com/bemasher/1777766

/// A linked stack of node indices used by the tree traversals. Grows without
/// bound; the traversal depth is limited by the tree height.
type B3GrowableStack struct {
	top  *B3StackElement
	size int
}

func NewB3GrowableStack() *B3GrowableStack {
	return &B3GrowableStack{
		top:  nil,
		size: 0,
	}
}

type B3StackElement struct {
	value int
	next  *B3StackElement
}

// Return the stack's length
func (s B3GrowableStack) GetCount() int {
	return s.size
}

// Push a new element onto the stack
func (s *B3GrowableStack) Push(value int) {
	s.top = &B3StackElement{value, s.top}
	s.size++
}

// Remove the top element from the stack and return it's value
// If the stack is empty, return B3_nullNode
func (s *B3GrowableStack) Pop() int {
	if s.size > 0 {
		value := s.top.value
		s.top = s.top.next
		s.size--
		return value
	}
	return B3_nullNode
}
