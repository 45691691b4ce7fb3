package requirement

import (
	"errors"
	"testing"
)

func TestParseClause(t *testing.T) {
	tests := []struct {
		in   string
		want Clause
	}{
		{
			in:   "Requires Armor Proficiency (Medium)",
			want: Clause{Attribute: "Armor Proficiency (Medium)", Op: OpGE, Value: Value{Text: "1", Number: 1, IsNumber: true}, Defaulted: true},
		},
		{
			in:   "Class Armor Proficiency Level >= 2",
			want: Clause{Attribute: "Class Armor Proficiency Level", Op: OpGE, Value: Value{Text: "2", Number: 2, IsNumber: true}},
		},
		{
			in:   "Alignment == Lawful Good",
			want: Clause{Attribute: "Alignment", Op: OpEQ, Value: Value{Text: "Lawful Good"}},
		},
		{
			in:   "Max Skills <= 4",
			want: Clause{Attribute: "Skills", Combinator: CombineMax, Op: OpLE, Value: Value{Text: "4", Number: 4, IsNumber: true}},
		},
		{
			in:   "Sum levels >= 3",
			want: Clause{Attribute: "levels", Combinator: CombineSum, Op: OpGE, Value: Value{Text: "3", Number: 3, IsNumber: true}},
		},
		{
			in:   "Deity !~ ^Vecna",
			want: Clause{Attribute: "Deity", Op: OpNotMatch, Value: Value{Text: "^Vecna"}},
		},
		{
			in:   "Alignment =~ ^Lawful",
			want: Clause{Attribute: "Alignment", Op: OpMatch, Value: Value{Text: "^Lawful"}},
		},
		{
			in:   "Maximize Spell",
			want: Clause{Attribute: "Maximize Spell", Op: OpGE, Value: Value{Text: "1", Number: 1, IsNumber: true}, Defaulted: true},
		},
	}
	for _, tc := range tests {
		got, err := ParseClause(tc.in)
		if err != nil {
			t.Fatalf("ParseClause(%q): %v", tc.in, err)
		}
		got.pattern = nil
		if got != tc.want {
			t.Fatalf("ParseClause(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestParseSplitsTermsAndAlternatives(t *testing.T) {
	req, err := Parse("Requires Abilities Str >= 13 / Requires Armor Proficiency (Medium) || Class Armor Proficiency Level >= 2")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(req.Terms) != 2 {
		t.Fatalf("terms = %d, want 2", len(req.Terms))
	}
	if got := len(req.Terms[1].Alternatives); got != 2 {
		t.Fatalf("alternatives = %d, want 2", got)
	}
	if got := req.Terms[0].Alternatives[0].Attribute; got != "Abilities Str" {
		t.Fatalf("attribute = %q", got)
	}
	want := "Abilities Str >= 13 / Armor Proficiency (Medium) >= 1 || Class Armor Proficiency Level >= 2"
	if req.String() != want {
		t.Fatalf("String() = %q, want %q", req.String(), want)
	}
}

func TestParseKeepsWellFormedAlternatives(t *testing.T) {
	req, err := Parse("Level >= / Feats Alert || Deity ~ ([")
	if !errors.Is(err, ErrMalformedClause) {
		t.Fatalf("err = %v, want malformed clause", err)
	}
	if len(req.Terms) != 1 || len(req.Terms[0].Alternatives) != 1 {
		t.Fatalf("unexpected terms: %+v", req.Terms)
	}
	if req.Terms[0].Alternatives[0].Attribute != "Feats Alert" {
		t.Fatalf("kept %q", req.Terms[0].Alternatives[0].Attribute)
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := Parse("  "); !errors.Is(err, ErrEmpty) {
		t.Fatalf("err = %v, want ErrEmpty", err)
	}
}

func TestClauseEval(t *testing.T) {
	ge, _ := ParseClause("Level >= 2")
	if ge.Eval(1, "") || !ge.Eval(2, "") {
		t.Fatal("unexpected >= evaluation")
	}
	ne, _ := ParseClause("Skills != 0")
	if ne.Eval(0, "") || !ne.Eval(3, "") {
		t.Fatal("unexpected != evaluation")
	}
	eq, _ := ParseClause("Alignment == Lawful Good")
	if !eq.Eval(1, "lawful good") || eq.Eval(1, "Chaotic Good") {
		t.Fatal("unexpected textual == evaluation")
	}
	match, _ := ParseClause("Deity ~ ^Pel")
	if !match.Eval(1, "Pelor") || match.Eval(1, "Hextor") {
		t.Fatal("unexpected ~ evaluation")
	}
	notMatch, _ := ParseClause("Deity !~ ^Pel")
	if notMatch.Eval(1, "Pelor") || !notMatch.Eval(1, "Hextor") {
		t.Fatal("unexpected !~ evaluation")
	}
}
