package youtrack

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestTimestamp_UnmarshalMilliseconds(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`1700000000000`), &ts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("expected %v, got %v", want, ts.Time)
	}
}

func TestTimestamp_UnmarshalRFC3339(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`"2023-11-14T22:13:20Z"`), &ts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("expected %v, got %v", want, ts.Time)
	}
}

func TestTimestamp_UnmarshalNull(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`null`), &ts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ts.IsZero() {
		t.Errorf("expected zero time, got %v", ts.Time)
	}
}

func TestTimestamp_UnmarshalInvalid(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`"yesterday"`), &ts); err == nil {
		t.Fatal("expected error for invalid timestamp")
	}
	if err := json.Unmarshal([]byte(`true`), &ts); err == nil {
		t.Fatal("expected error for boolean timestamp")
	}
}

func TestTimestamp_MarshalRFC3339(t *testing.T) {
	ts := Timestamp{Time: time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)}
	data, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `"2023-11-14T22:13:20Z"` {
		t.Errorf("expected RFC 3339 string, got %s", data)
	}
}

func TestTimestamp_MarshalZeroAsNull(t *testing.T) {
	data, err := json.Marshal(Timestamp{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "null" {
		t.Errorf("expected null, got %s", data)
	}
}

func TestIssueFull_SerializationOmitsUnrequested(t *testing.T) {
	full := IssueFull{
		Issue: Issue{ID: "2-1", Summary: "s", State: "Open", Priority: "Normal"},
		// Comments requested and empty, attachments and work items not
		// requested.
		Comments: []Comment{},
	}

	data, err := json.Marshal(full)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"comments":[]`) {
		t.Errorf("expected empty comments array in %s", s)
	}
	if strings.Contains(s, `"attachments"`) {
		t.Errorf("expected no attachments key in %s", s)
	}
	if strings.Contains(s, `"work_items"`) {
		t.Errorf("expected no work_items key in %s", s)
	}
}
