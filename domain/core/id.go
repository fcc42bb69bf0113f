package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// historyNamespace scopes deterministic run identifiers.
var historyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("gonomen/evolution-history"))

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// NewDeterministicID derives a stable UUID v5 from canonical run input.
// Identical input always yields the same identifier.
func NewDeterministicID(canonical []byte) ID {
	return ID(uuid.NewSHA1(historyNamespace, canonical).String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	HistoryID ID
	ReportID  ID
	JobID     ID
	DomainID  ID
)

// String conversions for domain IDs
func (id HistoryID) String() string { return ID(id).String() }
func (id ReportID) String() string  { return ID(id).String() }
func (id JobID) String() string     { return ID(id).String() }
func (id DomainID) String() string  { return ID(id).String() }

// ParseHistoryID parses a string into HistoryID
func ParseHistoryID(s string) (HistoryID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("history ID cannot be empty")
	}
	return HistoryID(s), nil
}

// ParseJobID parses a string into JobID
func ParseJobID(s string) (JobID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("job ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("job ID %q is not a UUID: %w", s, err)
	}
	return JobID(s), nil
}

// ParseDomainID parses a string into DomainID
func ParseDomainID(s string) (DomainID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("domain ID cannot be empty")
	}
	return DomainID(strings.ToLower(s)), nil
}
