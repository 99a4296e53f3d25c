package textfold

import "testing"

func TestFold(t *testing.T) {
	cases := map[string]string{
		"PARA REVISIÓN":        "para revision",
		"  A   Ejecución ":     "a ejecucion",
		"Guía de usuario":      "guia de usuario",
		"Añadir caso de uso":   "anadir caso de uso",
		"Revision\tFuncional": "revision funcional",
		"":                     "",
	}
	for in, want := range cases {
		if got := Fold(in); got != want {
			t.Errorf("Fold(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSeparators(t *testing.T) {
	if got := Separators("docs/manual_de-usuario"); got != "docs manual de usuario" {
		t.Fatalf("unexpected separators output %q", got)
	}
}
