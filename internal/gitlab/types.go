package gitlab

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrMalformed marks a record missing a required field or carrying one of
	// the wrong type. Such records are skipped.
	ErrMalformed = errors.New("malformed record")
	// ErrUnsupportedEvent marks activity feed entries no classifier handles
	// (comments, merge requests, deletions...).
	ErrUnsupportedEvent = errors.New("unsupported event")
)

// Issue is a validated work item. Raw keeps the full upstream document.
type Issue struct {
	ID        int64
	IID       int64
	ProjectID int64
	Title     string
	State     string
	WebURL    string
	Labels    []string
	CreatedAt time.Time
	UpdatedAt time.Time
	DueDate   *time.Time
	Raw       json.RawMessage
}

type wireIssue struct {
	ID        *int64            `json:"id"`
	IID       *int64            `json:"iid"`
	ProjectID *int64            `json:"project_id"`
	Title     *string           `json:"title"`
	State     *string           `json:"state"`
	WebURL    *string           `json:"web_url"`
	Labels    []json.RawMessage `json:"labels"`
	CreatedAt *string           `json:"created_at"`
	UpdatedAt *string           `json:"updated_at"`
	DueDate   *string           `json:"due_date"`
}

// ParseIssue validates one issue document. id and iid are required.
func ParseIssue(raw json.RawMessage) (Issue, error) {
	var w wireIssue
	if err := json.Unmarshal(raw, &w); err != nil {
		return Issue{}, fmt.Errorf("%w: issue: %v", ErrMalformed, err)
	}
	if w.ID == nil || w.IID == nil {
		return Issue{}, fmt.Errorf("%w: issue without id/iid", ErrMalformed)
	}
	issue := Issue{
		ID:        *w.ID,
		IID:       *w.IID,
		ProjectID: deref(w.ProjectID),
		Title:     str(w.Title),
		State:     str(w.State),
		WebURL:    str(w.WebURL),
		Labels:    parseLabelNames(w.Labels),
		CreatedAt: parseTime(str(w.CreatedAt)),
		UpdatedAt: parseTime(str(w.UpdatedAt)),
		Raw:       append(json.RawMessage(nil), raw...),
	}
	if due := parseTime(str(w.DueDate)); !due.IsZero() {
		// A due date names a whole day; the item is on time until it ends.
		end := due.Add(24*time.Hour - time.Nanosecond)
		issue.DueDate = &end
	}
	return issue, nil
}

// Labels arrive as plain names, or as objects with with_labels_details.
func parseLabelNames(raw []json.RawMessage) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		var name string
		if err := json.Unmarshal(r, &name); err == nil {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
			continue
		}
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(r, &obj); err == nil && strings.TrimSpace(obj.Name) != "" {
			out = append(out, strings.TrimSpace(obj.Name))
		}
	}
	return out
}

// LabelEvent is one entry of an issue's label history. Label is empty when
// the label was deleted upstream.
type LabelEvent struct {
	ID        int64
	Action    string
	Label     string
	CreatedAt time.Time
}

type wireLabelEvent struct {
	ID        *int64  `json:"id"`
	Action    *string `json:"action"`
	CreatedAt *string `json:"created_at"`
	Label     *struct {
		Name string `json:"name"`
	} `json:"label"`
}

// ParseLabelEvent validates a resource label event; action and created_at are
// required.
func ParseLabelEvent(raw json.RawMessage) (LabelEvent, error) {
	var w wireLabelEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return LabelEvent{}, fmt.Errorf("%w: label event: %v", ErrMalformed, err)
	}
	created := parseTime(str(w.CreatedAt))
	if w.Action == nil || created.IsZero() {
		return LabelEvent{}, fmt.Errorf("%w: label event without action/created_at", ErrMalformed)
	}
	ev := LabelEvent{
		ID:        deref(w.ID),
		Action:    strings.ToLower(strings.TrimSpace(*w.Action)),
		CreatedAt: created,
	}
	if w.Label != nil {
		ev.Label = strings.TrimSpace(w.Label.Name)
	}
	return ev, nil
}

type Label struct {
	ID   int64
	Name string
}

// ParseLabel validates a project label; the name is required.
func ParseLabel(raw json.RawMessage) (Label, error) {
	var w struct {
		ID   *int64  `json:"id"`
		Name *string `json:"name"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return Label{}, fmt.Errorf("%w: label: %v", ErrMalformed, err)
	}
	if strings.TrimSpace(str(w.Name)) == "" {
		return Label{}, fmt.Errorf("%w: label without name", ErrMalformed)
	}
	return Label{ID: deref(w.ID), Name: strings.TrimSpace(*w.Name)}, nil
}

// Meta is shared by every activity feed entry.
type Meta struct {
	ID        int64
	ProjectID int64
	Username  string
	CreatedAt time.Time
}

// Event is one activity feed entry: a *WikiEvent, *PushEvent or *IssueEvent.
type Event interface {
	Meta() Meta
}

// WikiEvent is a wiki page creation or edit. Action is "created" or "updated".
type WikiEvent struct {
	EventMeta Meta
	Title     string
	Slug      string
	Action    string
}

func (e *WikiEvent) Meta() Meta { return e.EventMeta }

// PushEvent is a push to a branch or tag.
type PushEvent struct {
	EventMeta   Meta
	Ref         string
	RefType     string
	CommitTitle string
	CommitCount int
	// Action is the push kind ("pushed" or "created"); removals are never
	// returned.
	Action string
}

func (e *PushEvent) Meta() Meta { return e.EventMeta }

// IssueEvent is an issue being opened, closed or reopened.
type IssueEvent struct {
	EventMeta Meta
	IssueID   int64
	IssueIID  int64
	Title     string
	Action    string
}

func (e *IssueEvent) Meta() Meta { return e.EventMeta }

type wireEvent struct {
	ID             *int64  `json:"id"`
	ProjectID      *int64  `json:"project_id"`
	ActionName     *string `json:"action_name"`
	TargetType     *string `json:"target_type"`
	TargetID       *int64  `json:"target_id"`
	TargetIID      *int64  `json:"target_iid"`
	TargetTitle    *string `json:"target_title"`
	CreatedAt      *string `json:"created_at"`
	AuthorUsername *string `json:"author_username"`
	Author         *struct {
		Username string `json:"username"`
	} `json:"author"`
	WikiPage *struct {
		Slug  string `json:"slug"`
		Title string `json:"title"`
	} `json:"wiki_page"`
	PushData *struct {
		CommitCount int     `json:"commit_count"`
		Action      string  `json:"action"`
		RefType     string  `json:"ref_type"`
		Ref         *string `json:"ref"`
		CommitTitle *string `json:"commit_title"`
	} `json:"push_data"`
}

// ParseEvent validates an activity feed entry and returns the matching
// variant. id, created_at and an author username are required.
func ParseEvent(raw json.RawMessage) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: event: %v", ErrMalformed, err)
	}
	meta := Meta{
		ID:        deref(w.ID),
		ProjectID: deref(w.ProjectID),
		Username:  strings.TrimSpace(str(w.AuthorUsername)),
		CreatedAt: parseTime(str(w.CreatedAt)),
	}
	if meta.Username == "" && w.Author != nil {
		meta.Username = strings.TrimSpace(w.Author.Username)
	}
	if w.ID == nil || meta.CreatedAt.IsZero() || meta.Username == "" {
		return nil, fmt.Errorf("%w: event without id/created_at/author", ErrMalformed)
	}

	action := strings.ToLower(strings.TrimSpace(str(w.ActionName)))
	target := strings.ToLower(strings.TrimSpace(str(w.TargetType)))

	switch {
	case w.PushData != nil || strings.HasPrefix(action, "pushed"):
		ev := &PushEvent{EventMeta: meta, Action: action}
		if w.PushData != nil {
			ev.Ref = str(w.PushData.Ref)
			ev.RefType = w.PushData.RefType
			ev.CommitTitle = str(w.PushData.CommitTitle)
			ev.CommitCount = w.PushData.CommitCount
			if pa := strings.ToLower(strings.TrimSpace(w.PushData.Action)); pa != "" {
				ev.Action = pa
			}
		}
		// A deleted branch or tag carries no commit and no authored work.
		if ev.Action == "removed" || strings.HasPrefix(action, "deleted") {
			return nil, fmt.Errorf("%w: removal of %q", ErrUnsupportedEvent, ev.Ref)
		}
		return ev, nil

	case strings.Contains(target, "wiki") || strings.Contains(action, "wiki"):
		ev := &WikiEvent{EventMeta: meta, Title: str(w.TargetTitle)}
		if w.WikiPage != nil {
			ev.Slug = w.WikiPage.Slug
			if ev.Title == "" {
				ev.Title = w.WikiPage.Title
			}
		}
		switch {
		case strings.Contains(action, "created"):
			ev.Action = "created"
		case strings.Contains(action, "updated"):
			ev.Action = "updated"
		default:
			return nil, fmt.Errorf("%w: wiki action %q", ErrUnsupportedEvent, action)
		}
		return ev, nil

	case target == "issue" || target == "workitem":
		switch action {
		case "opened", "closed", "reopened":
		default:
			return nil, fmt.Errorf("%w: issue action %q", ErrUnsupportedEvent, action)
		}
		return &IssueEvent{
			EventMeta: meta,
			IssueID:   deref(w.TargetID),
			IssueIID:  deref(w.TargetIID),
			Title:     str(w.TargetTitle),
			Action:    action,
		}, nil
	}
	return nil, fmt.Errorf("%w: %q on %q", ErrUnsupportedEvent, action, target)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02",
}

// parseTime returns the zero time for empty or unparseable input.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
