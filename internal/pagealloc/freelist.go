package pagealloc

import "fmt"

// pushFree files a free range under its size bucket, creating the bucket on
// first use. Ranges are pushed at the head, so equally sized ranges are
// reused most-recently-freed first.
func (m *Manager) pushFree(a *addrNode) {
	var s *sizeNode
	if it := m.sizes.Find(a.Value.pages); it.Valid() {
		s = it.Node()
	} else {
		s = m.sizePool.Allocate()
		if s == nil {
			panic(fmt.Sprintf("pagealloc: size bucket pool exhausted with %d free ranges", m.freeRanges))
		}
		s.Key = a.Value.pages
		if _, ok, err := m.sizes.Insert(s); err != nil || !ok {
			panic(fmt.Sprintf("pagealloc: insert size bucket %d: inserted=%v err=%v", s.Key, ok, err))
		}
	}

	head := s.Value.head
	a.Value.prev = nil
	a.Value.next = head
	if head != nil {
		head.Value.prev = a
	}
	s.Value.head = a
	m.freeRanges++
}

// removeFree unlinks a free range from its size bucket and drops the bucket
// once it is empty.
func (m *Manager) removeFree(a *addrNode) {
	it := m.sizes.Find(a.Value.pages)
	if !it.Valid() {
		panic(fmt.Sprintf("pagealloc: free range %#x has no size bucket for %d pages", a.Key, a.Value.pages))
	}
	s := it.Node()

	prev, next := a.Value.prev, a.Value.next
	if prev != nil {
		prev.Value.next = next
	} else {
		s.Value.head = next
	}
	if next != nil {
		next.Value.prev = prev
	}
	a.Value.prev, a.Value.next = nil, nil
	m.freeRanges--

	if s.Value.head == nil {
		if err := m.sizes.EraseNode(s); err != nil {
			panic(fmt.Sprintf("pagealloc: erase size bucket %d: %v", s.Key, err))
		}
		m.sizePool.Deallocate(s)
	}
}
