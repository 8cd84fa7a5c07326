package com

import (
	"sync"
	"testing"
)

func TestMap(t *testing.T) {
	var m Map[string, int]

	if _, err := m.Find("a"); err != ErrNotFound {
		t.Errorf("expected not found on the zero map, got %v", err)
	}
	m.Put("a", 1)
	m.Put("b", 2)
	if !m.Has("a") || m.Len() != 2 {
		t.Errorf("lost values")
	}
	if v, ok := m.Pop("a"); !ok || v != 1 {
		t.Errorf("expected to pop 1, got %v %v", v, ok)
	}
	if _, ok := m.Pop("a"); ok {
		t.Errorf("popped twice")
	}

	var seen int
	m.Drain(func(_ string, v int) { seen += v })
	if seen != 2 || m.Len() != 0 {
		t.Errorf("bad drain, seen %v, left %v", seen, m.Len())
	}
}

func TestMapConcurrent(t *testing.T) {
	var m Map[int, int]
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Put(i, i)
			m.Pop(i - 1)
		}(i)
	}
	wg.Wait()
	if m.Len() > 100 {
		t.Errorf("unexpected size %v", m.Len())
	}
}
