package browser

import (
	"strconv"
	"strings"
)

// Step is one query in a Locator chain. Query is "css=...", "xpath=...",
// "text=..." (literal substring or /regex/flags) or a bare CSS selector.
// Nth pins the step to the n-th match; -1 keeps every match.
type Step struct {
	Query string `json:"q"`
	Nth   int    `json:"n"`
}

// Locator addresses elements by a chain of queries, each step evaluated
// relative to the matches of the previous one.
type Locator struct {
	steps []Step
}

// Query starts a new locator rooted at the document.
func Query(q string) Locator {
	return Locator{steps: []Step{{Query: q, Nth: -1}}}
}

// Find narrows the locator to descendants matching q.
func (l Locator) Find(q string) Locator {
	steps := make([]Step, len(l.steps), len(l.steps)+1)
	copy(steps, l.steps)
	return Locator{steps: append(steps, Step{Query: q, Nth: -1})}
}

// Nth pins the last step to its i-th match.
func (l Locator) Nth(i int) Locator {
	if len(l.steps) == 0 {
		return l
	}
	steps := make([]Step, len(l.steps))
	copy(steps, l.steps)
	steps[len(steps)-1].Nth = i
	return Locator{steps: steps}
}

func (l Locator) First() Locator { return l.Nth(0) }

// Parent moves to the parent element of each match.
func (l Locator) Parent() Locator { return l.Find("xpath=..") }

// Steps returns a copy of the chain, never nil.
func (l Locator) Steps() []Step {
	out := make([]Step, len(l.steps))
	copy(out, l.steps)
	return out
}

func (l Locator) String() string {
	parts := make([]string, 0, len(l.steps))
	for _, s := range l.steps {
		p := s.Query
		if s.Nth >= 0 {
			p += " [" + strconv.Itoa(s.Nth) + "]"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " >> ")
}
