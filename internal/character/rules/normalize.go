package rules

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	lowerCaser = cases.Lower(language.Und)
	titleCaser = cases.Title(language.Und, cases.NoLower)
)

// NormalizeName turns an option name into the lower camel case form used in
// diagnostic keys: "Armor Proficiency (Medium)" -> "armorProficiencyMedium".
func NormalizeName(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for i, w := range words {
		if i == 0 {
			b.WriteString(lowerCaser.String(w))
			continue
		}
		b.WriteString(titleCaser.String(w))
	}
	return b.String()
}
