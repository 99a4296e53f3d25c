// Package taxonomy maps the many label spellings teams use on their issues to
// one of three canonical pipeline statuses.
package taxonomy

import (
	"fmt"
	"sort"
	"strings"

	"taskpulse/internal/textfold"
)

// Status is a canonical work item stage. Values are ordered by position in
// the pipeline, so a larger value is further along.
type Status int

const (
	InProgress Status = iota + 1
	QAReview
	FunctionalReview
)

var statusNames = map[Status]string{
	InProgress:       "in-progress",
	QAReview:         "qa-review",
	FunctionalReview: "functional-review",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Valid reports whether s is one of the canonical statuses.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// ParseStatus accepts the canonical name of a status ("qa-review"); case and
// surrounding whitespace are ignored, and "_" is accepted in place of "-".
func ParseStatus(name string) (Status, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	for s, n := range statusNames {
		if n == key {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// Statuses lists every canonical status in pipeline order.
func Statuses() []Status {
	return []Status{InProgress, QAReview, FunctionalReview}
}

// Taxonomy holds the accepted literal label spellings per status.
type Taxonomy struct {
	labels map[Status][]string
	index  map[string]Status
}

// New builds a taxonomy from status -> label spellings. Spellings are compared
// folded (case, accents and spacing ignored); a spelling claimed by two
// different statuses is an error.
func New(mapping map[Status][]string) (*Taxonomy, error) {
	t := &Taxonomy{
		labels: make(map[Status][]string, len(mapping)),
		index:  make(map[string]Status),
	}
	for _, status := range Statuses() {
		seen := make(map[string]bool)
		for _, label := range mapping[status] {
			label = strings.TrimSpace(label)
			if label == "" || seen[label] {
				continue
			}
			seen[label] = true
			key := textfold.Fold(label)
			if other, ok := t.index[key]; ok && other != status {
				return nil, fmt.Errorf("label %q is mapped to both %s and %s", label, other, status)
			}
			t.index[key] = status
			t.labels[status] = append(t.labels[status], label)
		}
	}
	for status := range mapping {
		if !status.Valid() {
			return nil, fmt.Errorf("invalid status %d in label mapping", int(status))
		}
	}
	return t, nil
}

// Default returns the spellings observed across the monitored projects.
func Default() *Taxonomy {
	t, err := New(map[Status][]string{
		InProgress:       {"A EJECUCIÓN", "A Ejecución", "EN EJECUCIÓN", "En Ejecucion"},
		QAReview:         {"PARA REVISIÓN", "Para Revisión", "PARA REVISION", "En Revisión"},
		FunctionalReview: {"REVISIÓN FUNCIONAL", "Revisión Funcional", "REVISION FUNCIONAL"},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// Labels returns the literal spellings accepted for status, in configuration
// order. These are sent verbatim as upstream label filters.
func (t *Taxonomy) Labels(status Status) []string {
	out := make([]string, len(t.labels[status]))
	copy(out, t.labels[status])
	return out
}

// StatusOf reports which status a single label belongs to.
func (t *Taxonomy) StatusOf(label string) (Status, bool) {
	s, ok := t.index[textfold.Fold(label)]
	return s, ok
}

// Resolve picks the canonical status for an item carrying labels. When labels
// from several groups are present the furthest-along stage wins:
// functional-review > qa-review > in-progress. ok is false when no label
// belongs to any group.
func (t *Taxonomy) Resolve(labels []string) (Status, bool) {
	var best Status
	for _, label := range labels {
		if s, ok := t.StatusOf(label); ok && s > best {
			best = s
		}
	}
	return best, best != 0
}

// Mapping returns status name -> spellings, suitable for encoding.
func (t *Taxonomy) Mapping() map[string][]string {
	out := make(map[string][]string, len(t.labels))
	for _, status := range Statuses() {
		labels := t.Labels(status)
		if len(labels) == 0 {
			labels = []string{}
		}
		out[status.String()] = labels
	}
	return out
}

// Size is the total number of configured spellings.
func (t *Taxonomy) Size() int {
	n := 0
	for _, labels := range t.labels {
		n += len(labels)
	}
	return n
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
