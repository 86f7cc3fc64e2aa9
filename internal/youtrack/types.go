package youtrack

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Timestamp wraps time.Time to accept both wire formats YouTrack uses:
// epoch milliseconds (the REST API default) and RFC 3339 strings. It
// always marshals as RFC 3339 UTC.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		t.Time = time.Time{}
		return nil
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("invalid timestamp %s", s)
	}
	parsed, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", str, err)
	}
	t.Time = parsed.UTC()
	return nil
}

// MarshalJSON implements json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// Issue is the core issue record. State, priority and assignee are
// flattened out of YouTrack's custom fields; missing values fall back to
// "Unknown", "Normal" and empty respectively.
type Issue struct {
	ID          string     `json:"id"`
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	State       string     `json:"state"`
	Priority    string     `json:"priority"`
	Assignee    string     `json:"assignee"`
	Project     string     `json:"project"`
	Reporter    string     `json:"reporter"`
	Created     Timestamp  `json:"created"`
	Updated     *Timestamp `json:"updated"`
}

// Comment is a single issue comment. Author is the YouTrack login.
type Comment struct {
	ID      string     `json:"id"`
	Text    string     `json:"text"`
	Author  string     `json:"author"`
	Created Timestamp  `json:"created"`
	Updated *Timestamp `json:"updated"`
}

// Attachment is issue attachment metadata. Content is never carried here;
// it is downloaded separately on demand.
type Attachment struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Extension   string    `json:"extension,omitempty"`
	URL         string    `json:"url"`
	Created     Timestamp `json:"created"`
	Author      string    `json:"author"`
}

// WorkItem is a time-tracking entry on an issue. Duration is milliseconds.
type WorkItem struct {
	ID          string    `json:"id"`
	Duration    int64     `json:"duration"`
	Description string    `json:"description"`
	Date        Timestamp `json:"date"`
	Author      string    `json:"author"`
	Type        string    `json:"type,omitempty"`
}

// Project is a YouTrack project. Key is the project's short name.
type Project struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Key      string `json:"key"`
	Archived bool   `json:"archived"`
}

// IssueFull is the request-scoped aggregate of an issue and its requested
// sub-resources. A nil slice means the category was not requested and the
// key is omitted; an empty non-nil slice means it was requested and the
// issue has none.
type IssueFull struct {
	Issue
	Comments    []Comment    `json:"comments,omitzero"`
	Attachments []Attachment `json:"attachments,omitzero"`
	WorkItems   []WorkItem   `json:"work_items,omitzero"`
}

// IncludeOptions selects which sub-resources GetIssueFull fetches
type IncludeOptions struct {
	Comments    bool
	Attachments bool
	WorkItems   bool
}
