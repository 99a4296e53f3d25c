// Package classify turns activity feed entries into audit decisions. Rules
// are evaluated in order and the first one that matches decides.
package classify

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"taskpulse/internal/gitlab"
	"taskpulse/internal/textfold"
)

type EventType string

const (
	IssueRaised    EventType = "issue-raised"
	IssueReviewed  EventType = "issue-reviewed"
	UseCaseCreated EventType = "use-case-created"
	UseCaseUpdated EventType = "use-case-updated"
	ManualCreated  EventType = "manual-created"
	ManualUpdated  EventType = "manual-updated"
	GenericPush    EventType = "generic-push"
)

// EventTypes lists every persisted type in reporting order.
func EventTypes() []EventType {
	return []EventType{IssueRaised, IssueReviewed, UseCaseCreated, UseCaseUpdated, ManualCreated, ManualUpdated, GenericPush}
}

func (t EventType) Valid() bool {
	for _, v := range EventTypes() {
		if t == v {
			return true
		}
	}
	return false
}

// Documentation reports whether the type counts as documentation work.
func (t EventType) Documentation() bool {
	switch t {
	case UseCaseCreated, UseCaseUpdated, ManualCreated, ManualUpdated:
		return true
	}
	return false
}

// Superseded returns the "updated" type that a "created" type replaces in
// the same window, or "" when t supersedes nothing.
func (t EventType) Superseded() EventType {
	switch t {
	case ManualCreated:
		return ManualUpdated
	case UseCaseCreated:
		return UseCaseUpdated
	}
	return ""
}

// MaxReferenceLen bounds reference ids to what the store indexes.
const MaxReferenceLen = 255

// Decision is the outcome for one event. A discarded event is not stored.
type Decision struct {
	Rule        string
	Type        EventType
	ReferenceID string
	Created     bool
	Discard     bool
}

// Subject is an event prepared for matching. Text is the normalized title
// (wiki: title plus slug; push: commit title).
type Subject struct {
	Event gitlab.Event
	Text  string
	Wiki  *gitlab.WikiEvent
	Push  *gitlab.PushEvent
	Issue *gitlab.IssueEvent
}

// NewSubject normalizes an event for the rules.
func NewSubject(ev gitlab.Event) *Subject {
	s := &Subject{Event: ev}
	switch e := ev.(type) {
	case *gitlab.WikiEvent:
		s.Wiki = e
		s.Text = normalize(e.Title + " " + e.Slug)
	case *gitlab.PushEvent:
		s.Push = e
		s.Text = normalize(e.CommitTitle)
	case *gitlab.IssueEvent:
		s.Issue = e
		s.Text = normalize(e.Title)
	}
	return s
}

type Rule struct {
	Name  string
	Match func(s *Subject) (Decision, bool)
}

// Rules is the ordered rule list used by Classify.
var Rules = []Rule{
	{Name: "issue-opened", Match: issueRule("opened", IssueRaised)},
	{Name: "issue-closed", Match: issueRule("closed", IssueReviewed)},
	{Name: "code-smell", Match: codeSmellRule},
	{Name: "manual", Match: documentRule(ManualTokens, ManualCreated, ManualUpdated)},
	{Name: "use-case", Match: documentRule(UseCaseTokens, UseCaseCreated, UseCaseUpdated)},
	{Name: "generic-push", Match: genericPushRule},
	{Name: "discard", Match: func(*Subject) (Decision, bool) { return Decision{Discard: true}, true }},
}

// Classify applies Rules to ev. Nil or unknown events are discarded.
func Classify(ev gitlab.Event) Decision {
	if ev == nil {
		return Decision{Rule: "discard", Discard: true}
	}
	s := NewSubject(ev)
	for _, rule := range Rules {
		if d, ok := rule.Match(s); ok {
			d.Rule = rule.Name
			d.ReferenceID = truncateRunes(d.ReferenceID, MaxReferenceLen)
			return d
		}
	}
	return Decision{Rule: "discard", Discard: true}
}

func issueRule(action string, typ EventType) func(*Subject) (Decision, bool) {
	return func(s *Subject) (Decision, bool) {
		if s.Issue == nil || s.Issue.Action != action {
			return Decision{}, false
		}
		ref := s.Issue.IssueIID
		if ref == 0 {
			ref = s.Issue.IssueID
		}
		if ref == 0 {
			ref = s.Issue.EventMeta.ID
		}
		return Decision{Type: typ, ReferenceID: strconv.FormatInt(ref, 10), Created: action == "opened"}, true
	}
}

// Code-smell pushes skip every documentation rule.
func codeSmellRule(s *Subject) (Decision, bool) {
	if s.Push == nil || !IsCodeSmell(s.Text, s.Push.Ref) {
		return Decision{}, false
	}
	return genericPush(s.Push), true
}

func documentRule(tokens func(string) []string, created, updated EventType) func(*Subject) (Decision, bool) {
	return func(s *Subject) (Decision, bool) {
		if s.Wiki == nil && s.Push == nil {
			return Decision{}, false
		}
		found := tokens(s.Text)
		if len(found) == 0 {
			return Decision{}, false
		}
		var d Decision
		if s.Wiki != nil {
			d.Created = s.Wiki.Action == "created"
			d.ReferenceID = wikiReference(s.Wiki)
		} else {
			d.Created = IsCreation(s.Text)
			d.ReferenceID = strings.Join(found, " ")
		}
		d.Type = updated
		if d.Created {
			d.Type = created
		}
		return d, true
	}
}

func genericPushRule(s *Subject) (Decision, bool) {
	if s.Push == nil {
		return Decision{}, false
	}
	return genericPush(s.Push), true
}

func genericPush(p *gitlab.PushEvent) Decision {
	title := strings.Join(strings.Fields(p.CommitTitle), " ")
	return Decision{
		Type:        GenericPush,
		ReferenceID: "push: " + title + " @ " + strings.TrimSpace(p.Ref),
		Created:     IsCreation(normalize(p.CommitTitle)),
	}
}

func wikiReference(w *gitlab.WikiEvent) string {
	if slug := strings.TrimSpace(w.Slug); slug != "" {
		return slug
	}
	if title := strings.TrimSpace(w.Title); title != "" {
		return title
	}
	return strconv.FormatInt(w.EventMeta.ID, 10)
}

// normalize lower-cases, strips accents and turns _ - / into spaces.
func normalize(s string) string {
	return textfold.Fold(textfold.Separators(s))
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
