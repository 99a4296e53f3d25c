package taxonomy

import (
	"strings"

	"taskpulse/internal/textfold"
)

// Checked most specific first: "Revisión Funcional" also contains "revision".
var discoveryKeywords = []struct {
	status   Status
	keywords []string
}{
	{FunctionalReview, []string{"funcional"}},
	{QAReview, []string{"revision"}},
	{InProgress, []string{"ejecucion"}},
}

// Discover buckets raw label names from the monitored projects by keyword and
// returns a taxonomy covering every variant found. Labels matching no keyword
// are left out.
func Discover(names []string) *Taxonomy {
	buckets := make(map[Status]map[string]struct{})
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		folded := textfold.Fold(name)
		for _, group := range discoveryKeywords {
			if containsAny(folded, group.keywords) {
				if buckets[group.status] == nil {
					buckets[group.status] = make(map[string]struct{})
				}
				buckets[group.status][name] = struct{}{}
				break
			}
		}
	}
	mapping := make(map[Status][]string, len(buckets))
	for status, set := range buckets {
		mapping[status] = sortedKeys(set)
	}
	t, err := New(mapping)
	if err != nil {
		// Buckets are disjoint.
		panic(err)
	}
	return t
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
