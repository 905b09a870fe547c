package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/byteness/supportaccess/directory"
	"github.com/byteness/supportaccess/supportaccess"
)

// ValidateDirectory parses a directory document and reports structural
// errors plus warnings for documents that load but cannot be used fully.
func ValidateDirectory(content []byte, source string) ValidationResult {
	result := ValidationResult{
		ConfigType: ConfigTypeDirectory,
		Source:     source,
		Valid:      true,
		Issues:     []ValidationIssue{},
	}

	if len(bytes.TrimSpace(content)) == 0 {
		result.addError("", "empty configuration", "provide valid YAML content")
		return result
	}

	if _, err := directory.ParseDirectory(content); err != nil {
		msg := err.Error()
		result.addError(extractLocation(msg), msg, suggestDirectoryFix(msg))
		return result
	}

	// ParseDirectory already accepted the document, so this cannot fail.
	var doc directory.Document
	_ = yaml.Unmarshal(content, &doc)
	addDirectoryWarnings(&doc, &result)

	return result
}

// ValidateFile validates a local directory file.
func ValidateFile(path string) (ValidationResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		result := ValidationResult{
			ConfigType: ConfigTypeDirectory,
			Source:     path,
			Valid:      true,
			Issues:     []ValidationIssue{},
		}
		result.addError("", fmt.Sprintf("failed to read file: %v", err),
			"verify the file path exists and is readable")
		return result, err
	}

	return ValidateDirectory(content, path), nil
}

// addDirectoryWarnings flags documents where nobody can request access or
// where a tenant's requests could never be approved.
func addDirectoryWarnings(doc *directory.Document, result *ValidationResult) {
	superadmins := 0
	members := make(map[string]int)
	for _, u := range doc.Users {
		if u.Active != nil && !*u.Active {
			continue
		}
		role, _ := supportaccess.ParseRole(u.Role)
		if role == supportaccess.RoleSuperadmin {
			superadmins++
			continue
		}
		members[strings.TrimSpace(u.TenantID)]++
	}

	if superadmins == 0 {
		result.addWarning("users", "no active superadmin - nobody can request support access",
			"add a user with role: superadmin")
	}

	for i, t := range doc.Tenants {
		if t.Active != nil && !*t.Active {
			continue
		}
		id := strings.TrimSpace(t.ID)
		if members[id] == 0 {
			result.addWarning(fmt.Sprintf("tenants[%d]", i),
				fmt.Sprintf("tenant '%s' has no active users - its support access requests can never be approved", id),
				"add at least one user with this tenant_id")
		}
	}
}

// extractLocation returns the leading "tenants[N]" or "users[N]" of a
// directory error, or "" when there is none.
func extractLocation(errMsg string) string {
	for _, prefix := range []string{"tenants[", "users["} {
		if !strings.HasPrefix(errMsg, prefix) {
			continue
		}
		if end := strings.Index(errMsg, "]"); end > 0 {
			return errMsg[:end+1]
		}
	}
	return ""
}

// suggestDirectoryFix returns a suggestion for fixing a directory error.
func suggestDirectoryFix(errMsg string) string {
	switch {
	case strings.HasPrefix(errMsg, "yaml:") && strings.Contains(errMsg, "not found in type"):
		return "remove unknown fields; tenants take id, name, active and users take id, email, name, role, tenant_id, active"
	case strings.HasPrefix(errMsg, "yaml:"):
		return "check YAML syntax for correct indentation and formatting"
	case strings.Contains(errMsg, "id is required"):
		return "give every tenant and user an id"
	case strings.Contains(errMsg, "email is required"):
		return "give every user an email address"
	case strings.Contains(errMsg, "duplicate email"):
		return "emails must be unique ignoring case"
	case strings.Contains(errMsg, "duplicate"):
		return "ids must be unique"
	case strings.Contains(errMsg, "unknown role"):
		return "use one of: superadmin, admin, staff, user"
	case strings.Contains(errMsg, "tenant_id is required"):
		return "set tenant_id; only superadmins are platform-wide"
	case strings.Contains(errMsg, "unknown tenant"):
		return "add the tenant to tenants or fix the user's tenant_id"
	}
	return ""
}

