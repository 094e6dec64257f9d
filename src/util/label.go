// label.go provides a deterministic way of generating assembly labels.
//
// The label counter is carried as a plain field on the compilation
// environment (sm.Env), so label numbering is a pure function of traversal
// order: compiling the same tree twice yields byte-identical output.

package util

import "fmt"

// Labeler hands out sequentially numbered labels. It has no identity beyond
// its counter, so sm.Env embeds it by value and carries it through the
// functional-update discipline like every other piece of environment state.
type Labeler struct {
	n int
}

// Next returns a fresh "L<n>" label and the incremented Labeler.
func (l Labeler) Next() (string, Labeler) {
	s := fmt.Sprintf("L%d", l.n)
	l.n++
	return s, l
}
