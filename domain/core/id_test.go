package core

import (
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	// Generate many IDs
	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

// TestIDString tests ID string conversion
func TestIDString(t *testing.T) {
	id := ID("test-123")
	if id.String() != "test-123" {
		t.Errorf("Expected String() to return 'test-123', got '%s'", id.String())
	}
}

// TestIDIsEmpty tests ID emptiness check
func TestIDIsEmpty(t *testing.T) {
	emptyID := ID("")
	if !emptyID.IsEmpty() {
		t.Error("Expected empty ID to be empty")
	}

	nonEmptyID := ID("not-empty")
	if nonEmptyID.IsEmpty() {
		t.Error("Expected non-empty ID to not be empty")
	}
}

func TestNewDeterministicID(t *testing.T) {
	a := NewDeterministicID([]byte(`{"seed":1}`))
	b := NewDeterministicID([]byte(`{"seed":1}`))
	c := NewDeterministicID([]byte(`{"seed":2}`))
	if a != b {
		t.Errorf("Expected identical input to give identical IDs, got %s and %s", a, b)
	}
	if a == c {
		t.Errorf("Expected different input to give different IDs, both %s", a)
	}
}

func TestParseJobID(t *testing.T) {
	valid := NewID().String()
	tests := []struct {
		input    string
		expected JobID
		hasError bool
	}{
		{valid, JobID(valid), false},
		{"", "", true},
		{"   ", "", true},
		{"not-a-uuid", "", true},
	}

	for _, tt := range tests {
		result, err := ParseJobID(tt.input)
		if tt.hasError {
			if err == nil {
				t.Errorf("Expected error for input '%s', got none", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("Unexpected error for input '%s': %v", tt.input, err)
		}
		if result != tt.expected {
			t.Errorf("Expected %s, got %s", tt.expected, result)
		}
	}
}

func TestParseDomainID(t *testing.T) {
	tests := []struct {
		input    string
		expected DomainID
		hasError bool
	}{
		{"crypto", DomainID("crypto"), false},
		{"  Hurricanes ", DomainID("hurricanes"), false},
		{"", "", true},
		{"   ", "", true},
	}

	for _, tt := range tests {
		result, err := ParseDomainID(tt.input)
		if tt.hasError {
			if err == nil {
				t.Errorf("Expected error for input '%s', got none", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("Unexpected error for input '%s': %v", tt.input, err)
		}
		if result != tt.expected {
			t.Errorf("Expected %s, got %s", tt.expected, result)
		}
	}
}

func TestFingerprint(t *testing.T) {
	a, err := Fingerprint(map[string]int{"b": 2, "a": 1})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	b, _ := Fingerprint(map[string]int{"a": 1, "b": 2})
	if !a.Equals(b) {
		t.Errorf("Expected map key order not to matter, got %s and %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("Expected a hex SHA-256, got %q", a)
	}
	if _, err := Fingerprint(func() {}); err == nil {
		t.Error("Expected an error for an unencodable value")
	}
}
