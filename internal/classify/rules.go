package classify

import (
	"regexp"
	"strings"
)

// Word boundaries are spelled out because RE2 has no lookaround and \b is
// ASCII-only. The short-code pattern also refuses a leading dot so host
// names such as "gitlab.empresa.cu" never count as use cases.
const (
	lead      = `(?:^|[^\p{L}\p{N}])`
	trail     = `(?:[^\p{L}\p{N}]|$)`
	codeLead  = `(?:^|[^\p{L}\p{N}.])`
	codeTrail = trail
)

var (
	manualRe = regexp.MustCompile(lead + `(manual(?:es)?|guias?)` + trail)

	useCasePhraseRe = regexp.MustCompile(lead + `(casos?\s+de\s+uso|use\s+cases?|usecases?)` + trail)
	useCaseCodeRe   = regexp.MustCompile(codeLead + `(cu\s?\d{1,4}|\d{1,4}\s?cu)` + codeTrail)

	codeSmellRe = regexp.MustCompile(lead +
		`(bugs?|bugfix(?:es)?|fix(?:es|ed)?|hotfix(?:es)?|errors?|errores|exceptions?|excepcion(?:es)?|refactor(?:s|ed|ing)?|merge[ds]?|merging)` +
		trail)

	creationRe = regexp.MustCompile(lead +
		`(new|nuev[oa]s?|create[ds]?|creating|crear|cread[oa]s?|creacion|add(?:s|ed)?|agreg(?:ar|ad[oa]s?|a)|anad(?:ir|id[oa]s?|e))` +
		trail)

	digitsRe = regexp.MustCompile(`\d+`)
)

// Branch prefixes conventionally used for code work.
var codeRefPrefixes = []string{"hotfix/", "bugfix/", "fix/", "feature/"}

// findWords returns every captured group 1 of re in text. The search resumes
// at the end of the group rather than the whole match, so a separator shared
// by two adjacent words serves as the boundary of both.
func findWords(re *regexp.Regexp, text string) []string {
	var out []string
	for pos := 0; pos < len(text); {
		loc := re.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		out = append(out, text[pos+loc[2]:pos+loc[3]])
		pos += loc[3]
	}
	return out
}

// ManualTokens returns the manual/guide words found in normalized text.
func ManualTokens(text string) []string {
	return uniqueTokens(findWords(manualRe, text), canonicalWords)
}

// UseCaseTokens returns use-case phrases and short codes found in normalized
// text. Short codes are canonicalized to "cu" + digits, so "07 cu" and
// "cu07" name the same artifact.
func UseCaseTokens(text string) []string {
	found := findWords(useCasePhraseRe, text)
	for _, code := range findWords(useCaseCodeRe, text) {
		found = append(found, "cu"+digitsRe.FindString(code))
	}
	return uniqueTokens(found, canonicalWords)
}

// IsCodeSmell reports whether a commit title or ref reads like ordinary code
// maintenance. Both arguments are expected normalized except that ref keeps
// its slashes.
func IsCodeSmell(title, ref string) bool {
	ref = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ref)), "refs/heads/")
	for _, prefix := range codeRefPrefixes {
		if strings.HasPrefix(ref, prefix) {
			return true
		}
	}
	return codeSmellRe.MatchString(title) || codeSmellRe.MatchString(normalize(ref))
}

// IsCreation reports whether normalized commit text announces a new document.
func IsCreation(text string) bool {
	return creationRe.MatchString(text)
}

func canonicalWords(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func uniqueTokens(tokens []string, canon func(string) string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = canon(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
