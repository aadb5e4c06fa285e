package harmony

import "fmt"

// CamelotKey is a position on the Camelot wheel: 1..12 with A for minor
// and B for major.
type CamelotKey struct {
	Num    int
	Letter byte
}

func (c CamelotKey) String() string {
	return fmt.Sprintf("%d%c", c.Num, c.Letter)
}

// Camelot returns the wheel position of key. Unknown roots or qualities
// report false.
func Camelot(key Key) (CamelotKey, bool) {
	if !key.Valid() || key.Quality == QualityUnknown {
		return CamelotKey{}, false
	}
	letter := byte('B')
	root := int(key.Root)
	if key.Quality == Minor {
		letter = 'A'
		root = mod12(root + 3)
	}
	// C major sits at 8B and each fifth up adds one.
	num := mod12(root*7+7) + 1
	return CamelotKey{Num: num, Letter: letter}, true
}

// IsAdjacent reports whether two keys are the same, relative major/minor,
// or neighbours on the circle of fifths with the same quality.
func IsAdjacent(a, b Key) bool {
	ca, ok1 := Camelot(a)
	cb, ok2 := Camelot(b)
	if !ok1 || !ok2 {
		return false
	}
	if ca.Num == cb.Num {
		return true
	}
	if ca.Letter != cb.Letter {
		return false
	}
	diff := ca.Num - cb.Num
	if diff < 0 {
		diff = -diff
	}
	return diff == 1 || diff == 11
}
