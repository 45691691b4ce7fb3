package rules

import "strings"

// Position is a cell on the 3x3 alignment grid. Law runs lawful (-1) to
// chaotic (1); Moral runs good (-1) to evil (1).
type Position struct {
	Law   int
	Moral int
}

var axisWords = map[string][2]int{
	// word -> {axis (0 law, 1 moral), value}
	"lawful":  {0, -1},
	"chaotic": {0, 1},
	"good":    {1, -1},
	"evil":    {1, 1},
}

var abbreviations = map[string]Position{
	"LG": {-1, -1}, "NG": {0, -1}, "CG": {1, -1},
	"LN": {-1, 0}, "N": {0, 0}, "TN": {0, 0}, "CN": {1, 0},
	"LE": {-1, 1}, "NE": {0, 1}, "CE": {1, 1},
}

// ParseAlignment places an alignment name on the grid. It accepts full names
// ("Lawful Good", "Neutral", "True Neutral") and two-letter abbreviations.
func ParseAlignment(name string) (Position, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Position{}, false
	}
	if p, ok := abbreviations[strings.ToUpper(name)]; ok {
		return p, true
	}
	var p Position
	seen := 0
	for _, word := range strings.Fields(strings.ToLower(name)) {
		switch word {
		case "neutral", "true":
			seen++
			continue
		}
		axis, ok := axisWords[word]
		if !ok {
			return Position{}, false
		}
		if axis[0] == 0 {
			p.Law = axis[1]
		} else {
			p.Moral = axis[1]
		}
		seen++
	}
	return p, seen > 0
}

// Distance is the Manhattan distance between two grid cells.
func (p Position) Distance(other Position) int {
	return abs(p.Law-other.Law) + abs(p.Moral-other.Moral)
}

// AlignmentsNear reports whether two alignment names are within steps
// orthogonal grid moves of each other. Unparseable names are never near.
func AlignmentsNear(a, b string, steps int) bool {
	pa, ok := ParseAlignment(a)
	if !ok {
		return false
	}
	pb, ok := ParseAlignment(b)
	if !ok {
		return false
	}
	return pa.Distance(pb) <= steps
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
