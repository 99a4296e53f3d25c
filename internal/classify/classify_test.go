package classify

import (
	"strings"
	"testing"
	"time"

	"taskpulse/internal/gitlab"
)

var at = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func push(title, ref string) *gitlab.PushEvent {
	return &gitlab.PushEvent{
		EventMeta:   gitlab.Meta{ID: 1, Username: "ana", CreatedAt: at},
		Ref:         ref,
		CommitTitle: title,
		CommitCount: 1,
	}
}

func wiki(title, slug, action string) *gitlab.WikiEvent {
	return &gitlab.WikiEvent{
		EventMeta: gitlab.Meta{ID: 42, Username: "luis", CreatedAt: at},
		Title:     title,
		Slug:      slug,
		Action:    action,
	}
}

func TestClassifyPushes(t *testing.T) {
	tests := []struct {
		name      string
		title     string
		branch    string
		rule      string
		typ       EventType
		reference string
		created   bool
	}{
		{"manual update", "Actualización manual usuario", "main", "manual", ManualUpdated, "manual", false},
		{"code smell beats manual", "fix: manual de usuario typo", "main", "code-smell", GenericPush, "push: fix: manual de usuario typo @ main", false},
		{"manual created", "Añadir guía de instalación", "main", "manual", ManualCreated, "guia", true},
		{"use case short code", "Nuevo CU07 registrar venta", "docs", "use-case", UseCaseCreated, "cu07", true},
		{"use case phrase", "Actualizar caso de uso login", "docs", "use-case", UseCaseUpdated, "caso de uso", false},
		{"feature branch suppresses", "Manual de despliegue", "feature/deploy-docs", "code-smell", GenericPush, "push: Manual de despliegue @ feature/deploy-docs", false},
		{"merge is code", "Merge branch 'guia' into main", "main", "code-smell", GenericPush, "push: Merge branch 'guia' into main @ main", false},
		{"plain push", "Ajustes de estilos", "main", "generic-push", GenericPush, "push: Ajustes de estilos @ main", false},
		{"domain suffix is not a use case", "Cambiar url a gitlab.azcuba.cu", "main", "generic-push", GenericPush, "push: Cambiar url a gitlab.azcuba.cu @ main", false},
		{"manualidades is not manual", "Seccion manualidades", "main", "generic-push", GenericPush, "push: Seccion manualidades @ main", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Classify(push(tt.title, tt.branch))
			if d.Discard {
				t.Fatalf("push events are never discarded")
			}
			if d.Rule != tt.rule || d.Type != tt.typ {
				t.Fatalf("expected %s/%s, got %s/%s", tt.rule, tt.typ, d.Rule, d.Type)
			}
			if d.ReferenceID != tt.reference {
				t.Fatalf("expected reference %q, got %q", tt.reference, d.ReferenceID)
			}
			if d.Created != tt.created {
				t.Fatalf("expected created=%v", tt.created)
			}
		})
	}
}

func TestClassifyWiki(t *testing.T) {
	d := Classify(wiki("Guía de usuario", "guia-de-usuario", "created"))
	if d.Type != ManualCreated || d.ReferenceID != "guia-de-usuario" {
		t.Fatalf("unexpected decision %+v", d)
	}

	d = Classify(wiki("Registrar venta", "casos_de_uso/cu-08-registrar-venta", "updated"))
	if d.Type != UseCaseUpdated || d.ReferenceID != "casos_de_uso/cu-08-registrar-venta" {
		t.Fatalf("unexpected decision %+v", d)
	}

	d = Classify(wiki("Acta de reunión", "acta-de-reunion", "updated"))
	if !d.Discard || d.Rule != "discard" {
		t.Fatalf("unmatched wiki edits must be discarded, got %+v", d)
	}
}

func TestClassifyWikiBugWordsAreNotSuppressed(t *testing.T) {
	// Code-smell suppression only applies to pushes.
	d := Classify(wiki("Manual de errores frecuentes", "", "updated"))
	if d.Type != ManualUpdated {
		t.Fatalf("expected manual-updated, got %+v", d)
	}
	if d.ReferenceID != "Manual de errores frecuentes" {
		t.Fatalf("expected title fallback reference, got %q", d.ReferenceID)
	}
}

func TestWikiReferenceFallsBackToEventID(t *testing.T) {
	w := wiki("", "", "created")
	if got := wikiReference(w); got != "42" {
		t.Fatalf("expected event id fallback, got %q", got)
	}
}

func TestClassifyIssues(t *testing.T) {
	opened := &gitlab.IssueEvent{EventMeta: gitlab.Meta{ID: 5}, IssueID: 900, IssueIID: 12, Title: "Manual roto", Action: "opened"}
	d := Classify(opened)
	if d.Type != IssueRaised || d.ReferenceID != "12" || d.Rule != "issue-opened" {
		t.Fatalf("unexpected decision %+v", d)
	}

	closed := &gitlab.IssueEvent{EventMeta: gitlab.Meta{ID: 6}, IssueID: 900, Action: "closed"}
	d = Classify(closed)
	if d.Type != IssueReviewed || d.ReferenceID != "900" {
		t.Fatalf("unexpected decision %+v", d)
	}

	reopened := &gitlab.IssueEvent{EventMeta: gitlab.Meta{ID: 7}, IssueIID: 12, Title: "Manual", Action: "reopened"}
	if d := Classify(reopened); !d.Discard {
		t.Fatalf("reopened issues are not tracked, got %+v", d)
	}
}

func TestClassifyNil(t *testing.T) {
	if d := Classify(nil); !d.Discard {
		t.Fatalf("nil event must be discarded")
	}
}

func TestGenericPushReferenceIsTruncated(t *testing.T) {
	d := Classify(push(strings.Repeat("ñ", 400), "main"))
	if n := len([]rune(d.ReferenceID)); n != MaxReferenceLen {
		t.Fatalf("expected %d runes, got %d", MaxReferenceLen, n)
	}
}

func TestUseCaseShortCodes(t *testing.T) {
	accept := map[string]string{
		"cu07":                 "cu07",
		"07-cu":                "cu07",
		"CU 12":                "cu12",
		"cu-08":                "cu08",
		"ver CU_3 y cu07":      "cu3 cu07",
		"CU07 y 07cu":          "cu07",
		"casos de uso + cu 10": "casos de uso cu10",
	}
	for in, want := range accept {
		got := strings.Join(UseCaseTokens(normalize(in)), " ")
		if got != want {
			t.Errorf("%q: expected %q, got %q", in, want, got)
		}
	}

	reject := []string{
		"gitlab.azcuba.cu",
		"servidor.cu",
		"gitlab.cu/12",
		"cuenta 2024",
		"recuperar 12",
		"cu",
	}
	for _, in := range reject {
		if got := UseCaseTokens(normalize(in)); len(got) != 0 {
			t.Errorf("%q: expected no match, got %v", in, got)
		}
	}
}

func TestManualTokens(t *testing.T) {
	tests := map[string][]string{
		"Manual de usuario":         {"manual"},
		"guia y GUÍA rapida":        {"guia"},
		"manuales, guias":           {"manuales", "guias"},
		"manual manual":             {"manual"},
		"Actualización manualmente": nil,
	}
	for in, want := range tests {
		got := ManualTokens(normalize(in))
		if strings.Join(got, "|") != strings.Join(want, "|") {
			t.Errorf("%q: expected %v, got %v", in, want, got)
		}
	}
}

func TestIsCodeSmell(t *testing.T) {
	tests := []struct {
		title, ref string
		want       bool
	}{
		{"Hotfix login", "main", true},
		{"Corregir errores de compilacion", "main", true},
		{"Refactoring del modulo", "main", true},
		{"Manual de usuario", "bugfix/typo", true},
		{"Manual de usuario", "refs/heads/hotfix/x", true},
		{"Manual de usuario", "main", false},
		{"Prefijo debugger", "main", false},
		{"Actualizar manual", "docs/fixtures", false},
	}
	for _, tt := range tests {
		if got := IsCodeSmell(normalize(tt.title), tt.ref); got != tt.want {
			t.Errorf("IsCodeSmell(%q, %q) = %v, want %v", tt.title, tt.ref, got, tt.want)
		}
	}
}

func TestRulesAreIndependentlyUsable(t *testing.T) {
	names := make([]string, 0, len(Rules))
	for _, r := range Rules {
		names = append(names, r.Name)
	}
	want := "issue-opened issue-closed code-smell manual use-case generic-push discard"
	if got := strings.Join(names, " "); got != want {
		t.Fatalf("rule order changed: %s", got)
	}

	s := NewSubject(push("Nueva guia", "main"))
	if _, ok := Rules[3].Match(s); !ok {
		t.Fatalf("manual rule should match on its own")
	}
	if _, ok := Rules[4].Match(s); ok {
		t.Fatalf("use-case rule should not match")
	}
}

func TestSuperseded(t *testing.T) {
	if ManualCreated.Superseded() != ManualUpdated || UseCaseCreated.Superseded() != UseCaseUpdated {
		t.Fatalf("unexpected supersession pairs")
	}
	if GenericPush.Superseded() != "" || !ManualUpdated.Documentation() || GenericPush.Documentation() {
		t.Fatalf("unexpected type flags")
	}
}
