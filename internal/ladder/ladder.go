// Package ladder models the discrete JDK ladder that plugins are built against and
// the table describing which rungs a given platform baseline admits.
package ladder

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Rung is one JDK major version on the ladder.
type Rung int

// None is returned where no adjacent rung exists.
const None Rung = 0

const (
	Java8  Rung = 8
	Java11 Rung = 11
	Java17 Rung = 17
	Java21 Rung = 21
)

// rungs is the ordered ladder, lowest first.
var rungs = []Rung{Java8, Java11, Java17, Java21}

// compatibility holds the half-open baseline range [from, until) for each rung.
// An empty bound is unbounded on that side.
var compatibility = map[Rung]struct{ from, until string }{
	Java8:  {"", "2.164.1"},
	Java11: {"2.164.1", "2.463"},
	Java17: {"2.346.1", ""},
	Java21: {"2.426.1", ""},
}

// All returns a copy of the ladder in ascending order.
func All() []Rung {
	return append([]Rung(nil), rungs...)
}

// Min returns the lowest rung of the ladder.
func Min() Rung { return rungs[0] }

// Max returns the highest rung of the ladder.
func Max() Rung { return rungs[len(rungs)-1] }

// Implicit is the rung used when no CI configuration declares one.
func Implicit() Rung { return Min() }

// Get returns the rung at ordinal n, or None when out of range.
func Get(n int) Rung {
	if n < 0 || n >= len(rungs) {
		return None
	}
	return rungs[n]
}

// Ordinal returns the position of r on the ladder, or -1.
func (r Rung) Ordinal() int {
	for i, v := range rungs {
		if v == r {
			return i
		}
	}
	return -1
}

// Valid reports whether r is a rung of the ladder.
func (r Rung) Valid() bool { return r.Ordinal() >= 0 }

// Major returns the JDK major number.
func (r Rung) Major() int { return int(r) }

func (r Rung) String() string {
	if !r.Valid() {
		return "unknown"
	}
	return strconv.Itoa(int(r))
}

// Next returns the adjacent higher rung, or None at the top.
func Next(r Rung) Rung {
	i := r.Ordinal()
	if i < 0 {
		return None
	}
	return Get(i + 1)
}

// Previous returns the adjacent lower rung, or None at the bottom.
func Previous(r Rung) Rung {
	i := r.Ordinal()
	if i < 0 {
		return None
	}
	return Get(i - 1)
}

// HasNext reports whether a higher rung exists.
func HasNext(r Rung) bool { return Next(r) != None }

// ParseRung accepts "17", "jdk17", "java17" or "1.8"-style values.
func ParseRung(s string) (Rung, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "jdk")
	s = strings.TrimPrefix(s, "java")
	s = strings.TrimPrefix(s, "-")
	if s == "1.8" {
		s = "8"
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return None, fmt.Errorf("invalid jdk version %q", s)
	}
	r := Rung(n)
	if !r.Valid() {
		return None, fmt.Errorf("jdk %d is not on the ladder", n)
	}
	return r, nil
}

// Admits reports whether baseline allows building on r. Unparsable or empty
// baselines admit every rung.
func Admits(baseline string, r Rung) bool {
	bounds, ok := compatibility[r]
	if !ok {
		return false
	}
	v, ok := parseBaseline(baseline)
	if !ok {
		return true
	}
	if bounds.from != "" {
		from, _ := parseBaseline(bounds.from)
		if compareBaseline(v, from) < 0 {
			return false
		}
	}
	if bounds.until != "" {
		until, _ := parseBaseline(bounds.until)
		if compareBaseline(v, until) >= 0 {
			return false
		}
	}
	return true
}

// AdmissibleRungs returns, in ascending order, the rungs usable at baseline.
func AdmissibleRungs(baseline string) []Rung {
	var out []Rung
	for _, r := range rungs {
		if Admits(baseline, r) {
			out = append(out, r)
		}
	}
	return out
}

// MinimumRung picks the lowest rung of candidates admitted by baseline. An empty
// candidate set stands for the whole ladder. When no candidate is admitted the
// lowest admissible rung for the baseline is returned.
func MinimumRung(candidates []Rung, baseline string) Rung {
	set := Sorted(candidates)
	if len(set) == 0 {
		set = All()
	}
	for _, r := range set {
		if Admits(baseline, r) {
			return r
		}
	}
	if admissible := AdmissibleRungs(baseline); len(admissible) > 0 {
		return admissible[0]
	}
	return set[0]
}

// TopTwoDescending returns the two highest rungs of candidates, highest first.
// A single rung is returned alone.
func TopTwoDescending(candidates []Rung) []Rung {
	set := Sorted(candidates)
	if len(set) <= 1 {
		return set
	}
	return []Rung{set[len(set)-1], set[len(set)-2]}
}

// Filter returns the lowest rungs of candidates, ascending, capped at max.
func Filter(candidates []Rung, max int) []Rung {
	set := Sorted(candidates)
	if max < 0 {
		max = 0
	}
	if len(set) > max {
		set = set[:max]
	}
	return set
}

// Sorted returns the valid, de-duplicated rungs of in, ascending.
func Sorted(in []Rung) []Rung {
	seen := make(map[Rung]struct{}, len(in))
	out := make([]Rung, 0, len(in))
	for _, r := range in {
		if !r.Valid() {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// parseBaseline parses a dotted numeric version ("2.426.3", "2.463"). Qualifiers
// after a dash are ignored ("2.440-SNAPSHOT").
func parseBaseline(s string) ([]int, bool) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "-_"); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return nil, false
	}
	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

// compareBaseline compares only the components present in both versions, so an
// incomplete triple such as "2.463" matches any patch of 2.463.
func compareBaseline(a, b []int) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

// CompareBaselines orders two baseline strings; unparsable values sort first.
func CompareBaselines(a, b string) int {
	va, okA := parseBaseline(a)
	vb, okB := parseBaseline(b)
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return -1
	case !okB:
		return 1
	}
	return compareBaseline(va, vb)
}
