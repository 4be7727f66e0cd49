package utils

import (
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
)

// TemplatesDir is the root of on-disk email template directories.
func TemplatesDir() string {
	if dir := os.Getenv("TEMPLATES_PATH"); dir != "" {
		return dir
	}
	return "templates"
}

// ValidEmail reports whether the address is a syntactically valid bare
// email address.
func ValidEmail(address string) bool {
	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return false
	}
	// Reject "Name <a@b>" forms, we only want bare addresses
	return parsed.Address == strings.TrimSpace(address)
}

// ExtractValidEmails filters a list of addresses down to the valid ones.
func ExtractValidEmails(emails []string) []string {
	valid := make([]string, 0, len(emails))
	for _, email := range emails {
		if ValidEmail(email) {
			valid = append(valid, email)
		}
	}
	return valid
}

// ValidateEmailTemplate resolves a template name against the templates
// root. A valid email template is a directory holding the sibling
// subject.txt, body.txt and body.html files; anything else is rejected
// before dispatch begins. Returns the path relative to the templates root.
func ValidateEmailTemplate(templatesDir, name string) (string, error) {
	relative := filepath.Join("emails", name)
	info, err := os.Stat(filepath.Join(templatesDir, relative))
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("template name '%s' is not valid", name)
	}
	return relative, nil
}
