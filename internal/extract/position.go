package extract

import (
	"sort"

	"github.com/jward/ifacemap/internal/index"
)

// lineIndex maps byte offsets to 0-based line and byte column.
type lineIndex []int

func newLineIndex(src []byte) lineIndex {
	starts := lineIndex{0}
	for i, c := range src {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func (l lineIndex) position(off int) (line, col int) {
	line = sort.Search(len(l), func(i int) bool { return l[i] > off }) - 1
	return line, off - l[line]
}

func (l lineIndex) location(file string, start, end int) index.Location {
	sl, sc := l.position(start)
	el, ec := l.position(end)
	return index.Location{
		File:      file,
		Start:     start,
		End:       end,
		StartLine: sl,
		StartCol:  sc,
		EndLine:   el,
		EndCol:    ec,
	}
}
