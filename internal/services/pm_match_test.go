package services

import (
	"testing"

	"github.com/sitewerks/spectrum-sync/internal/models"
)

func pmCandidates() []models.User {
	return []models.User{
		{ID: 1, FirstName: "Jane", LastName: "Doe", Role: models.RoleProjectManager},
		{ID: 2, FirstName: "Robert", LastName: "Smith", Role: models.RoleProjectManager},
		{ID: 3, FirstName: "Mary Ann", LastName: "Walker", Role: models.RoleProjectManager},
	}
}

func TestMatchProjectManagerFormats(t *testing.T) {
	candidates := pmCandidates()
	cases := []struct {
		raw    string
		wantID uint64
	}{
		{"Doe, Jane", 1},
		{"Jane Doe", 1},
		{"DOE, JANE", 1},
		{"doe,jane", 1},
		{"Smith, Robert", 2},
		{"Mary Ann Walker", 3},
	}
	for _, tc := range cases {
		m := MatchProjectManager(candidates, tc.raw)
		if m.Outcome != MatchFound {
			t.Errorf("MatchProjectManager(%q) outcome = %v, want found", tc.raw, m.Outcome)
			continue
		}
		if m.User.ID != tc.wantID {
			t.Errorf("MatchProjectManager(%q) = user %d, want %d", tc.raw, m.User.ID, tc.wantID)
		}
		if m.Raw == "" {
			t.Errorf("MatchProjectManager(%q) lost the raw name", tc.raw)
		}
	}
}

func TestMatchProjectManagerSubstring(t *testing.T) {
	m := MatchProjectManager(pmCandidates(), "Robert Smith Jr.")
	if m.Outcome != MatchFound || m.User.ID != 2 {
		t.Errorf("substring containment failed: %+v", m)
	}
}

func TestMatchProjectManagerNoMatch(t *testing.T) {
	m := MatchProjectManager(pmCandidates(), "Totally Unknown")
	if m.Outcome != MatchNone {
		t.Errorf("expected no match, got %+v", m)
	}
	if m.Raw != "Totally Unknown" {
		t.Errorf("raw name must be retained: %q", m.Raw)
	}
	if m.User != nil {
		t.Error("no-match result must not carry a user")
	}
}

func TestMatchProjectManagerAmbiguous(t *testing.T) {
	candidates := append(pmCandidates(), models.User{ID: 9, FirstName: "Jane", LastName: "Doe"})
	m := MatchProjectManager(candidates, "Doe, Jane")
	if m.Outcome != MatchAmbiguous {
		t.Errorf("expected ambiguous, got %v", m.Outcome)
	}
	if m.User != nil {
		t.Error("ambiguous result must not pick a user")
	}
}

func TestMatchProjectManagerEmptyInputs(t *testing.T) {
	if m := MatchProjectManager(pmCandidates(), "  "); m.Outcome != MatchNone {
		t.Errorf("blank name: %+v", m)
	}
	if m := MatchProjectManager(nil, "Jane Doe"); m.Outcome != MatchNone {
		t.Errorf("no candidates: %+v", m)
	}
}

func TestSplitName(t *testing.T) {
	cases := []struct {
		in          string
		first, last string
	}{
		{"Doe, Jane", "Jane", "Doe"},
		{"Jane Doe", "Jane", "Doe"},
		{"Mary Ann Walker", "Mary Ann", "Walker"},
		{"Cher", "Cher", ""},
		{"", "", ""},
	}
	for _, tc := range cases {
		first, last := splitName(tc.in)
		if first != tc.first || last != tc.last {
			t.Errorf("splitName(%q) = (%q, %q), want (%q, %q)", tc.in, first, last, tc.first, tc.last)
		}
	}
}
