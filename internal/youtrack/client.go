package youtrack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Wire field selections. YouTrack returns only the fields asked for, so
// every read names them explicitly. State, priority and assignee live in
// custom fields on the issue.
const (
	issueFields      = "id,summary,description,created,updated,project(id,name,shortName),reporter(login,name),customFields(name,value(name,login))"
	commentFields    = "id,text,author(login,name),created,updated"
	attachmentFields = "id,name,size,extension,mimeType,url,created,author(login,name)"
	workItemFields   = "id,duration,description,date,type,author(login,name)"
	projectFields    = "id,name,shortName,archived"
)

// DefaultTimeout is the per-request timeout used by NewClient
const DefaultTimeout = 30 * time.Second

// Client is a YouTrack REST API client
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the YouTrack instance at baseURL using a
// permanent token. baseURL is the instance root; the /api prefix is added
// here if missing.
func NewClient(baseURL, token string) *Client {
	return NewClientWithTimeout(baseURL, token, DefaultTimeout)
}

// NewClientWithTimeout creates a client with a custom per-request timeout
func NewClientWithTimeout(baseURL, token string, timeout time.Duration) *Client {
	base := strings.TrimSuffix(baseURL, "/")
	base = strings.TrimSuffix(base, "/api")
	return &Client{
		baseURL: base + "/api",
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the instance root the client talks to, without the /api
// suffix.
func (c *Client) BaseURL() string {
	return strings.TrimSuffix(c.baseURL, "/api")
}

// doRequest performs one JSON request against the YouTrack API and maps
// error statuses onto the fault taxonomy
func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, NewError(CodeValidation, "failed to marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, NewError(CodeTransport, "failed to create request: %v", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req)
}

// send executes a prepared request and reads the full response body
func (c *Client) send(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewError(CodeTransport, "request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(CodeTransport, "failed to read response: %v", err)
	}

	if resp.StatusCode >= 400 {
		return nil, statusError(resp.StatusCode, respBody)
	}

	return respBody, nil
}

// userWire is the nested user object YouTrack embeds in authors, reporters
// and assignee field values
type userWire struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

func (u *userWire) display() string {
	if u == nil {
		return ""
	}
	if u.Login != "" {
		return u.Login
	}
	return u.Name
}

// customFieldWire carries one issue custom field. Value shapes vary by
// field type (object, array, string, null), so it stays raw until read.
type customFieldWire struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// fieldValue pulls a display string out of a custom field value
func fieldValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var obj struct {
		Name  string `json:"name"`
		Login string `json:"login"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Name != "" {
			return obj.Name
		}
		if obj.Login != "" {
			return obj.Login
		}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	return ""
}

type issueWire struct {
	ID          string     `json:"id"`
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	Created     Timestamp  `json:"created"`
	Updated     *Timestamp `json:"updated"`
	Project     *struct {
		Name      string `json:"name"`
		ShortName string `json:"shortName"`
	} `json:"project"`
	Reporter     *userWire         `json:"reporter"`
	CustomFields []customFieldWire `json:"customFields"`
}

func (w *issueWire) toIssue() Issue {
	issue := Issue{
		ID:          w.ID,
		Summary:     w.Summary,
		Description: w.Description,
		State:       "Unknown",
		Priority:    "Normal",
		Reporter:    w.Reporter.display(),
		Created:     w.Created,
		Updated:     w.Updated,
	}
	if w.Project != nil {
		issue.Project = w.Project.ShortName
	}

	for _, f := range w.CustomFields {
		v := fieldValue(f.Value)
		if v == "" {
			continue
		}
		switch f.Name {
		case "State":
			issue.State = v
		case "Priority":
			issue.Priority = v
		case "Assignee":
			issue.Assignee = v
		}
	}

	return issue
}

// GetIssue retrieves a single issue without its sub-resources
func (c *Client) GetIssue(ctx context.Context, issueID string) (*Issue, error) {
	if strings.TrimSpace(issueID) == "" {
		return nil, NewError(CodeValidation, "issue id must not be empty")
	}

	path := fmt.Sprintf("/issues/%s?fields=%s", url.PathEscape(issueID), url.QueryEscape(issueFields))
	data, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var wire issueWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, NewError(CodeTransport, "failed to parse issue response: %v", err)
	}

	issue := wire.toIssue()
	return &issue, nil
}

// ListIssuesParams filters and pages an issue search. Zero Limit falls
// back to 50; no upper bound is enforced here.
type ListIssuesParams struct {
	Project  string
	State    string
	Assignee string
	Limit    int
	Offset   int
}

// ListIssues searches issues with the YouTrack query language. One call
// returns one page in remote order.
func (c *Client) ListIssues(ctx context.Context, params ListIssuesParams) ([]Issue, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	var clauses []string
	if params.Project != "" {
		clauses = append(clauses, fmt.Sprintf("project: {%s}", params.Project))
	}
	if params.State != "" {
		clauses = append(clauses, fmt.Sprintf("State: {%s}", params.State))
	}
	if params.Assignee != "" {
		clauses = append(clauses, fmt.Sprintf("Assignee: %s", params.Assignee))
	}

	q := url.Values{}
	q.Set("fields", issueFields)
	q.Set("$top", strconv.Itoa(limit))
	q.Set("$skip", strconv.Itoa(offset))
	if len(clauses) > 0 {
		q.Set("query", strings.Join(clauses, " "))
	}

	data, err := c.doRequest(ctx, "GET", "/issues?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var wires []issueWire
	if err := json.Unmarshal(data, &wires); err != nil {
		return nil, NewError(CodeTransport, "failed to parse issues response: %v", err)
	}

	issues := make([]Issue, len(wires))
	for i := range wires {
		issues[i] = wires[i].toIssue()
	}
	return issues, nil
}

type commentWire struct {
	ID      string     `json:"id"`
	Text    string     `json:"text"`
	Author  *userWire  `json:"author"`
	Created Timestamp  `json:"created"`
	Updated *Timestamp `json:"updated"`
}

func (w *commentWire) toComment() Comment {
	return Comment{
		ID:      w.ID,
		Text:    w.Text,
		Author:  w.Author.display(),
		Created: w.Created,
		Updated: w.Updated,
	}
}

// ListComments returns all comments on an issue in remote order
func (c *Client) ListComments(ctx context.Context, issueID string) ([]Comment, error) {
	path := fmt.Sprintf("/issues/%s/comments?fields=%s", url.PathEscape(issueID), url.QueryEscape(commentFields))
	data, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var wires []commentWire
	if err := json.Unmarshal(data, &wires); err != nil {
		return nil, NewError(CodeTransport, "failed to parse comments response: %v", err)
	}

	comments := make([]Comment, len(wires))
	for i := range wires {
		comments[i] = wires[i].toComment()
	}
	return comments, nil
}

// AddComment posts a new comment to an issue
func (c *Client) AddComment(ctx context.Context, issueID, text string) (*Comment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, NewError(CodeValidation, "comment text must not be empty")
	}

	path := fmt.Sprintf("/issues/%s/comments?fields=%s", url.PathEscape(issueID), url.QueryEscape(commentFields))
	data, err := c.doRequest(ctx, "POST", path, map[string]string{"text": text})
	if err != nil {
		return nil, err
	}

	var wire commentWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, NewError(CodeTransport, "failed to parse comment response: %v", err)
	}

	comment := wire.toComment()
	return &comment, nil
}

// UpdateComment replaces the text of an existing comment
func (c *Client) UpdateComment(ctx context.Context, issueID, commentID, text string) (*Comment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, NewError(CodeValidation, "comment text must not be empty")
	}

	path := fmt.Sprintf("/issues/%s/comments/%s?fields=%s",
		url.PathEscape(issueID), url.PathEscape(commentID), url.QueryEscape(commentFields))
	data, err := c.doRequest(ctx, "POST", path, map[string]string{"text": text})
	if err != nil {
		return nil, err
	}

	var wire commentWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, NewError(CodeTransport, "failed to parse comment response: %v", err)
	}

	comment := wire.toComment()
	return &comment, nil
}

type attachmentWire struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Extension string    `json:"extension"`
	MimeType  string    `json:"mimeType"`
	URL       string    `json:"url"`
	Created   Timestamp `json:"created"`
	Author    *userWire `json:"author"`
}

func (w *attachmentWire) toAttachment() Attachment {
	contentType := w.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return Attachment{
		ID:          w.ID,
		Name:        w.Name,
		Size:        w.Size,
		ContentType: contentType,
		Extension:   w.Extension,
		URL:         w.URL,
		Created:     w.Created,
		Author:      w.Author.display(),
	}
}

// ListAttachments returns attachment metadata for an issue in remote order
func (c *Client) ListAttachments(ctx context.Context, issueID string) ([]Attachment, error) {
	path := fmt.Sprintf("/issues/%s/attachments?fields=%s", url.PathEscape(issueID), url.QueryEscape(attachmentFields))
	data, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var wires []attachmentWire
	if err := json.Unmarshal(data, &wires); err != nil {
		return nil, NewError(CodeTransport, "failed to parse attachments response: %v", err)
	}

	attachments := make([]Attachment, len(wires))
	for i := range wires {
		attachments[i] = wires[i].toAttachment()
	}
	return attachments, nil
}

// DownloadAttachment fetches the raw content of one attachment
func (c *Client) DownloadAttachment(ctx context.Context, issueID, attachmentID string) ([]byte, error) {
	if strings.TrimSpace(issueID) == "" || strings.TrimSpace(attachmentID) == "" {
		return nil, NewError(CodeValidation, "issue id and attachment id must not be empty")
	}

	path := fmt.Sprintf("/issues/%s/attachments/%s", url.PathEscape(issueID), url.PathEscape(attachmentID))
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return nil, NewError(CodeTransport, "failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.send(req)
}

// UploadAttachment attaches content to an issue under the given filename.
// The content type is guessed from the filename extension. Exactly one
// multipart request is sent.
func (c *Client) UploadAttachment(ctx context.Context, issueID, filename string, content []byte) (*Attachment, error) {
	if strings.TrimSpace(issueID) == "" {
		return nil, NewError(CodeValidation, "issue id must not be empty")
	}
	if strings.TrimSpace(filename) == "" {
		return nil, NewError(CodeValidation, "filename must not be empty")
	}
	if len(content) == 0 {
		return nil, NewError(CodeValidation, "content must not be empty")
	}

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, NewError(CodeTransport, "failed to create multipart body: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, NewError(CodeTransport, "failed to write multipart body: %v", err)
	}
	if err := writer.Close(); err != nil {
		return nil, NewError(CodeTransport, "failed to finish multipart body: %v", err)
	}

	path := fmt.Sprintf("/issues/%s/attachments?fields=%s", url.PathEscape(issueID), url.QueryEscape(attachmentFields))
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, &buf)
	if err != nil {
		return nil, NewError(CodeTransport, "failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", writer.FormDataContentType())

	data, err := c.send(req)
	if err != nil {
		return nil, err
	}

	// YouTrack answers with the list of attachments just created
	var wires []attachmentWire
	if err := json.Unmarshal(data, &wires); err != nil || len(wires) == 0 {
		var wire attachmentWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, NewError(CodeTransport, "failed to parse attachment response: %v", err)
		}
		wires = []attachmentWire{wire}
	}

	attachment := wires[0].toAttachment()
	return &attachment, nil
}

type workItemWire struct {
	ID          string          `json:"id"`
	Duration    json.RawMessage `json:"duration"`
	Description string          `json:"description"`
	Date        Timestamp       `json:"date"`
	Type        json.RawMessage `json:"type"`
	Author      *userWire       `json:"author"`
}

// durationMillis reads a work item duration, which YouTrack reports either
// as a bare millisecond count or as a period object with minutes
func durationMillis(raw json.RawMessage) int64 {
	if len(raw) == 0 || string(raw) == "null" {
		return 0
	}
	if ms, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
		return ms
	}
	var period struct {
		Minutes int64 `json:"minutes"`
	}
	if err := json.Unmarshal(raw, &period); err == nil {
		return period.Minutes * 60 * 1000
	}
	return 0
}

func (w *workItemWire) toWorkItem() WorkItem {
	return WorkItem{
		ID:          w.ID,
		Duration:    durationMillis(w.Duration),
		Description: w.Description,
		Date:        w.Date,
		Author:      w.Author.display(),
		Type:        fieldValue(w.Type),
	}
}

// ListWorkItems returns all time-tracking entries on an issue in remote
// order
func (c *Client) ListWorkItems(ctx context.Context, issueID string) ([]WorkItem, error) {
	path := fmt.Sprintf("/issues/%s/timeTracking/workItems?fields=%s", url.PathEscape(issueID), url.QueryEscape(workItemFields))
	data, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var wires []workItemWire
	if err := json.Unmarshal(data, &wires); err != nil {
		return nil, NewError(CodeTransport, "failed to parse work items response: %v", err)
	}

	items := make([]WorkItem, len(wires))
	for i := range wires {
		items[i] = wires[i].toWorkItem()
	}
	return items, nil
}

// AddWorkItemParams describes a new time-tracking entry. Duration is
// milliseconds; a zero Date means today.
type AddWorkItemParams struct {
	Duration    int64
	Description string
	Date        time.Time
	Type        string
}

// AddWorkItem records time spent on an issue
func (c *Client) AddWorkItem(ctx context.Context, issueID string, params AddWorkItemParams) (*WorkItem, error) {
	if params.Duration <= 0 {
		return nil, NewError(CodeValidation, "duration must be positive")
	}

	date := params.Date
	if date.IsZero() {
		date = time.Now()
	}

	body := map[string]any{
		"duration":    params.Duration,
		"description": params.Description,
		"date":        date.UnixMilli(),
	}
	if params.Type != "" {
		body["type"] = map[string]string{"name": params.Type}
	}

	path := fmt.Sprintf("/issues/%s/timeTracking/workItems?fields=%s", url.PathEscape(issueID), url.QueryEscape(workItemFields))
	data, err := c.doRequest(ctx, "POST", path, body)
	if err != nil {
		return nil, err
	}

	var wire workItemWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, NewError(CodeTransport, "failed to parse work item response: %v", err)
	}

	item := wire.toWorkItem()
	return &item, nil
}

// UpdateIssueParams carries the issue fields that can change. Nil fields
// are left untouched.
type UpdateIssueParams struct {
	Summary     *string
	Description *string
	State       *string
	Priority    *string
	Assignee    *string
}

// UpdateIssue applies the given field changes. With nothing to change it
// returns without a request.
func (c *Client) UpdateIssue(ctx context.Context, issueID string, params UpdateIssueParams) error {
	payload := map[string]any{}
	if params.Summary != nil {
		payload["summary"] = *params.Summary
	}
	if params.Description != nil {
		payload["description"] = *params.Description
	}

	var customFields []map[string]any
	if params.State != nil {
		customFields = append(customFields, map[string]any{"name": "State", "value": map[string]string{"name": *params.State}})
	}
	if params.Priority != nil {
		customFields = append(customFields, map[string]any{"name": "Priority", "value": map[string]string{"name": *params.Priority}})
	}
	if params.Assignee != nil {
		customFields = append(customFields, map[string]any{"name": "Assignee", "value": map[string]string{"login": *params.Assignee}})
	}
	if len(customFields) > 0 {
		payload["customFields"] = customFields
	}

	if len(payload) == 0 {
		return nil
	}

	path := fmt.Sprintf("/issues/%s", url.PathEscape(issueID))
	_, err := c.doRequest(ctx, "POST", path, payload)
	return err
}

type projectWire struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
	Archived  bool   `json:"archived"`
}

// ListProjects returns every project visible to the token
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	path := "/admin/projects?fields=" + url.QueryEscape(projectFields)
	data, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var wires []projectWire
	if err := json.Unmarshal(data, &wires); err != nil {
		return nil, NewError(CodeTransport, "failed to parse projects response: %v", err)
	}

	projects := make([]Project, len(wires))
	for i, w := range wires {
		projects[i] = Project{ID: w.ID, Name: w.Name, Key: w.ShortName, Archived: w.Archived}
	}
	return projects, nil
}
