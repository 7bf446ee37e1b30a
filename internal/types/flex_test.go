package types

import (
	"encoding/json"
	"testing"
)

func TestFlexListSingleAndArray(t *testing.T) {
	var single FlexList[string]
	if err := json.Unmarshal([]byte(`"100"`), &single); err != nil {
		t.Fatalf("single value failed: %v", err)
	}
	if len(single) != 1 || single[0] != "100" {
		t.Errorf("expected [100], got %v", single)
	}

	var list FlexList[string]
	if err := json.Unmarshal([]byte(`["100","200"]`), &list); err != nil {
		t.Fatalf("array failed: %v", err)
	}
	if len(list) != 2 || list[1] != "200" {
		t.Errorf("expected [100 200], got %v", list)
	}

	if got := list.Slice(); len(got) != 2 {
		t.Errorf("Slice() length = %d", len(got))
	}
}

func TestFlexListNull(t *testing.T) {
	var list FlexList[string]
	if err := json.Unmarshal([]byte(`null`), &list); err != nil {
		t.Fatalf("null failed: %v", err)
	}
	if list != nil {
		t.Errorf("expected nil, got %v", list)
	}
	if got := list.Slice(); got != nil {
		t.Errorf("nil Slice() = %v", got)
	}
}

func TestFlexUint64NumberAndString(t *testing.T) {
	var n FlexUint64
	if err := json.Unmarshal([]byte(`500`), &n); err != nil {
		t.Fatalf("number failed: %v", err)
	}
	if n.Uint64() != 500 {
		t.Errorf("expected 500, got %d", n)
	}

	var s FlexUint64
	if err := json.Unmarshal([]byte(`"250"`), &s); err != nil {
		t.Fatalf("string failed: %v", err)
	}
	if s.Uint64() != 250 {
		t.Errorf("expected 250, got %d", s)
	}
}

func TestFlexUint64Invalid(t *testing.T) {
	var n FlexUint64
	if err := json.Unmarshal([]byte(`"abc"`), &n); err == nil {
		t.Error("expected error for non-numeric string")
	}
	if err := json.Unmarshal([]byte(`true`), &n); err == nil {
		t.Error("expected error for boolean")
	}
}
