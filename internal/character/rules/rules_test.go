package rules

import "testing"

func TestNormalizeName(t *testing.T) {
	tests := map[string]string{
		"Armor Proficiency (Medium)": "armorProficiencyMedium",
		"Power Attack":               "powerAttack",
		"Alert":                      "alert",
		"Melf's Acid Arrow":          "melfSAcidArrow",
		"Two-Weapon Fighting":        "twoWeaponFighting",
		"":                           "",
	}
	for in, want := range tests {
		if got := NormalizeName(in); got != want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseAlignment(t *testing.T) {
	tests := []struct {
		in   string
		want Position
		ok   bool
	}{
		{in: "Lawful Good", want: Position{-1, -1}, ok: true},
		{in: "Neutral", want: Position{0, 0}, ok: true},
		{in: "True Neutral", want: Position{0, 0}, ok: true},
		{in: "Chaotic Neutral", want: Position{1, 0}, ok: true},
		{in: "neutral evil", want: Position{0, 1}, ok: true},
		{in: "CE", want: Position{1, 1}, ok: true},
		{in: "Sparkly", ok: false},
		{in: "", ok: false},
	}
	for _, tc := range tests {
		got, ok := ParseAlignment(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Fatalf("ParseAlignment(%q) = %v, %v, want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestAlignmentsNear(t *testing.T) {
	if !AlignmentsNear("Lawful Good", "Neutral Good", 1) {
		t.Fatal("LG and NG should be adjacent")
	}
	if AlignmentsNear("Lawful Good", "Neutral", 1) {
		t.Fatal("LG and N are two steps apart")
	}
	if AlignmentsNear("Lawful Good", "Chaotic Evil", 3) {
		t.Fatal("LG and CE are four steps apart")
	}
	// Diagonal cells count two steps.
	if AlignmentsNear("Neutral Good", "Lawful Neutral", 1) {
		t.Fatal("NG and LN are diagonal")
	}
	if !AlignmentsNear("Neutral Good", "Lawful Neutral", 2) {
		t.Fatal("NG and LN should be two steps apart")
	}
}

func TestAbilityModifier(t *testing.T) {
	tests := map[float64]float64{3: -4, 9: -1, 10: 0, 11: 0, 13: 1, 18: 4}
	for score, want := range tests {
		if got := AbilityModifier(score); got != want {
			t.Fatalf("AbilityModifier(%v) = %v, want %v", score, got, want)
		}
	}
}
