package config

// ConfigType identifies the type of configuration being validated.
type ConfigType string

const (
	// ConfigTypeDirectory is a tenants and users directory document.
	ConfigTypeDirectory ConfigType = "directory"
	// ConfigTypeEnvironment is the SUPPORTACCESS_* environment.
	ConfigTypeEnvironment ConfigType = "environment"
)

// IsValid returns true if the ConfigType is a known value.
func (t ConfigType) IsValid() bool {
	switch t {
	case ConfigTypeDirectory, ConfigTypeEnvironment:
		return true
	}
	return false
}

// String returns the string representation of the ConfigType.
func (t ConfigType) String() string {
	return string(t)
}

// IssueSeverity indicates the severity of a validation issue.
type IssueSeverity string

const (
	// SeverityError indicates a problem that blocks loading/usage.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a suspicious pattern but works.
	SeverityWarning IssueSeverity = "warning"
)

// ValidationIssue represents a single validation problem.
type ValidationIssue struct {
	Severity   IssueSeverity `json:"severity"`
	Location   string        `json:"location"` // e.g. "users[2]", "SUPPORTACCESS_TABLE"
	Message    string        `json:"message"`
	Suggestion string        `json:"suggestion,omitempty"`
}

// ValidationResult contains all validation findings for a single config.
type ValidationResult struct {
	ConfigType ConfigType        `json:"config_type"`
	Source     string            `json:"source"` // File path, SSM parameter or "environment"
	Valid      bool              `json:"valid"`  // True if no errors (warnings OK)
	Issues     []ValidationIssue `json:"issues"`
}

func (r *ValidationResult) addError(location, message, suggestion string) {
	r.Valid = false
	r.Issues = append(r.Issues, ValidationIssue{
		Severity:   SeverityError,
		Location:   location,
		Message:    message,
		Suggestion: suggestion,
	})
}

func (r *ValidationResult) addWarning(location, message, suggestion string) {
	r.Issues = append(r.Issues, ValidationIssue{
		Severity:   SeverityWarning,
		Location:   location,
		Message:    message,
		Suggestion: suggestion,
	})
}

// Errors returns only the error-severity issues.
func (r ValidationResult) Errors() []ValidationIssue {
	var out []ValidationIssue
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			out = append(out, issue)
		}
	}
	return out
}

// AllResults aggregates multiple validation results.
type AllResults struct {
	Results []ValidationResult `json:"results"`
	Summary ResultSummary      `json:"summary"`
}

// NewAllResults wraps results and computes their summary.
func NewAllResults(results ...ValidationResult) AllResults {
	all := AllResults{Results: results}
	all.Summary.Compute(results)
	return all
}

// ResultSummary provides aggregate counts.
type ResultSummary struct {
	Total    int `json:"total"`
	Valid    int `json:"valid"`
	Invalid  int `json:"invalid"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
}

// Compute populates the summary from a list of results.
func (s *ResultSummary) Compute(results []ValidationResult) {
	*s = ResultSummary{Total: len(results)}

	for _, r := range results {
		if r.Valid {
			s.Valid++
		} else {
			s.Invalid++
		}
		for _, issue := range r.Issues {
			switch issue.Severity {
			case SeverityError:
				s.Errors++
			case SeverityWarning:
				s.Warnings++
			}
		}
	}
}
