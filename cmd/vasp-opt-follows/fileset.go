package main

import (
	"github.com/vasp-tools/vasp-opt-follows/src/vaspdata"
)

// fileSet owns the ordered list of loaded result files. The window has two
// observable states, empty and loaded, and every transition (open, drop,
// close, clear) goes through this type so the GUI callbacks stay thin and
// the transitions stay testable without a display.
type fileSet struct {
	files []*vaspdata.ResultFile
}

func (s *fileSet) Len() int    { return len(s.files) }
func (s *fileSet) Empty() bool { return len(s.files) == 0 }

// At returns the i-th file or nil when i is out of range (the list widget
// can query stale indices during refresh).
func (s *fileSet) At(i int) *vaspdata.ResultFile {
	if i < 0 || i >= len(s.files) {
		return nil
	}
	return s.files[i]
}

func (s *fileSet) All() []*vaspdata.ResultFile { return s.files }

func (s *fileSet) IndexOf(path string) int {
	for i, rf := range s.files {
		if rf.Path == path {
			return i
		}
	}
	return -1
}

// Add appends rf, or replaces the entry with the same path so re-opening a
// loaded file acts as a reload. Reports whether an entry was replaced.
func (s *fileSet) Add(rf *vaspdata.ResultFile) bool {
	if i := s.IndexOf(rf.Path); i >= 0 {
		s.files[i] = rf
		return true
	}
	s.files = append(s.files, rf)
	return false
}

func (s *fileSet) RemoveAt(i int) {
	if i < 0 || i >= len(s.files) {
		return
	}
	s.files = append(s.files[:i], s.files[i+1:]...)
}

func (s *fileSet) Clear() { s.files = nil }
