package textutil

import "testing"

func TestFold(t *testing.T) {
	cases := map[string]string{
		"PAULO MARTINS":       "paulo martins",
		"Paulo Martins":       "paulo martins",
		"paulo martíns":       "paulo martins",
		"  João   Pedro ":     "joao pedro",
		"Precatório Prioridade": "precatorio prioridade",
		"":                    "",
	}
	for in, want := range cases {
		if got := Fold(in); got != want {
			t.Fatalf("Fold(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEqualFold(t *testing.T) {
	if !EqualFold("Joao Pedro", "JOÃO PEDRO") {
		t.Fatalf("expected accent-insensitive match")
	}
	if EqualFold("Joao Pedro", "Joao Pedrosa") {
		t.Fatalf("unexpected match")
	}
}
