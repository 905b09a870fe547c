package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/byteness/supportaccess/directory"
	"github.com/byteness/supportaccess/supportaccess"
)

// TemplateInput seeds a starter directory document.
type TemplateInput struct {
	// Superadmins are the platform staff emails allowed to request access.
	Superadmins []string
	// Tenants are tenant ids; each gets a placeholder admin.
	Tenants []string
}

// GenerateDirectoryTemplate renders a directory document for the given
// superadmins and tenants. The result passes ValidateDirectory.
func GenerateDirectoryTemplate(in TemplateInput) (string, error) {
	if len(in.Superadmins) == 0 {
		return "", fmt.Errorf("at least one superadmin email is required")
	}

	var doc directory.Document
	for i, email := range in.Superadmins {
		email = strings.TrimSpace(email)
		if !strings.Contains(email, "@") {
			return "", fmt.Errorf("invalid superadmin email %q", email)
		}
		doc.Users = append(doc.Users, directory.UserRecord{
			ID:    fmt.Sprintf("sa-%d", i+1),
			Email: email,
			Role:  supportaccess.RoleSuperadmin.String(),
		})
	}

	for _, id := range in.Tenants {
		id = strings.TrimSpace(id)
		if id == "" {
			return "", fmt.Errorf("tenant id must not be empty")
		}
		doc.Tenants = append(doc.Tenants, directory.TenantRecord{ID: id, Name: id})
		doc.Users = append(doc.Users, directory.UserRecord{
			ID:       id + "-admin",
			Email:    fmt.Sprintf("admin@%s.example", id),
			Name:     "Tenant admin",
			Role:     supportaccess.RoleAdmin.String(),
			TenantID: id,
		})
	}

	body, err := yaml.Marshal(&doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal directory: %w", err)
	}
	out := buildTemplateHeader(len(in.Tenants)) + string(body)

	// Duplicate emails or tenant ids surface here.
	if _, err := directory.ParseDirectory([]byte(out)); err != nil {
		return "", err
	}
	return out, nil
}

func buildTemplateHeader(tenants int) string {
	var sb strings.Builder
	sb.WriteString("# Support access directory\n")
	sb.WriteString("# Generated by: supportaccess config template\n")
	if tenants > 0 {
		sb.WriteString("#\n")
		sb.WriteString("# Replace the placeholder admin emails before loading.\n")
	}
	sb.WriteString("\n")
	return sb.String()
}
