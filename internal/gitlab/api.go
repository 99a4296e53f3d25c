package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"
)

const dateLayout = "2006-01-02"

// IssuesByLabel lists open issues of a project carrying label. Issues fetched
// before a failing page are returned together with the error.
func (c *Client) IssuesByLabel(ctx context.Context, projectID int64, label string) ([]Issue, error) {
	params := url.Values{}
	params.Set("labels", label)
	params.Set("state", "opened")
	var out []Issue
	err := c.Paginate(ctx, fmt.Sprintf("projects/%d/issues", projectID), params, func(items []json.RawMessage) error {
		for _, raw := range items {
			issue, err := ParseIssue(raw)
			if err != nil {
				c.logf("gitlab: project %d: skipping issue: %v", projectID, err)
				continue
			}
			out = append(out, issue)
		}
		return nil
	})
	return out, err
}

// Issue fetches a single issue by its project-scoped iid.
func (c *Client) Issue(ctx context.Context, projectID, iid int64) (Issue, error) {
	path := fmt.Sprintf("projects/%d/issues/%d", projectID, iid)
	resp, err := c.Request(ctx, fasthttp.MethodGet, path, nil)
	if err != nil {
		return Issue{}, err
	}
	if !resp.OK() {
		return Issue{}, statusError(fasthttp.MethodGet, path, resp)
	}
	issue, err := ParseIssue(resp.Body)
	if err != nil {
		return Issue{}, &Error{Kind: KindDecode, Method: fasthttp.MethodGet, Path: path, StatusCode: resp.StatusCode, Err: err}
	}
	return issue, nil
}

// LabelEvents returns the label add/remove history of an issue, unordered.
func (c *Client) LabelEvents(ctx context.Context, projectID, iid int64) ([]LabelEvent, error) {
	var out []LabelEvent
	path := fmt.Sprintf("projects/%d/issues/%d/resource_label_events", projectID, iid)
	err := c.Paginate(ctx, path, nil, func(items []json.RawMessage) error {
		for _, raw := range items {
			ev, err := ParseLabelEvent(raw)
			if err != nil {
				c.logf("gitlab: project %d issue %d: skipping label event: %v", projectID, iid, err)
				continue
			}
			out = append(out, ev)
		}
		return nil
	})
	return out, err
}

// Events returns the project's activity feed for days strictly between after
// and before (the upstream filters are exclusive dates). Entries no
// classifier handles are dropped silently; malformed ones are logged.
func (c *Client) Events(ctx context.Context, projectID int64, after, before time.Time) ([]Event, error) {
	params := url.Values{}
	params.Set("after", after.Format(dateLayout))
	params.Set("before", before.Format(dateLayout))
	params.Set("sort", "asc")
	var out []Event
	err := c.Paginate(ctx, fmt.Sprintf("projects/%d/events", projectID), params, func(items []json.RawMessage) error {
		for _, raw := range items {
			ev, err := ParseEvent(raw)
			if err != nil {
				if !errors.Is(err, ErrUnsupportedEvent) {
					c.logf("gitlab: project %d: skipping event: %v", projectID, err)
				}
				continue
			}
			out = append(out, ev)
		}
		return nil
	})
	return out, err
}

// Labels lists every label defined on a project.
func (c *Client) Labels(ctx context.Context, projectID int64) ([]Label, error) {
	var out []Label
	err := c.Paginate(ctx, fmt.Sprintf("projects/%d/labels", projectID), nil, func(items []json.RawMessage) error {
		for _, raw := range items {
			label, err := ParseLabel(raw)
			if err != nil {
				continue
			}
			out = append(out, label)
		}
		return nil
	})
	return out, err
}
