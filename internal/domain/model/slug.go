package model

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	MinFolderNameLength = 2
	MaxFolderNameLength = 32
)

var folderNameEdges = regexp.MustCompile(`(?i)^[a-z0-9].*[a-z0-9]$`)

// ValidateFolderName checks user input before it is normalized.
func ValidateFolderName(input string) error {
	name := strings.TrimSpace(input)

	switch {
	case len(name) < MinFolderNameLength:
		return NewValidationError("folderName", "App names must be at least 2 characters long")
	case len(name) > MaxFolderNameLength:
		return NewValidationError("folderName", "App names can be at most 32 characters long")
	case !folderNameEdges.MatchString(name):
		return NewValidationError("folderName", "App names must start and end with alpha-numeric characters")
	}
	return nil
}

// ParamCase lowercases s and joins its words with dashes.
// "My Blog" and "myBlog" both become "my-blog".
func ParamCase(s string) string {
	var b strings.Builder
	var prev rune
	pendingDash := false

	for _, r := range s {
		isAlnum := unicode.IsLetter(r) || unicode.IsDigit(r)
		if !isAlnum || r > unicode.MaxASCII {
			pendingDash = b.Len() > 0
			prev = 0
			continue
		}

		if unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
			pendingDash = true
		}
		if pendingDash {
			b.WriteByte('-')
			pendingDash = false
		}

		b.WriteRune(unicode.ToLower(r))
		prev = r
	}
	return b.String()
}

// SentenceCase turns a slug into a display name: "my-blog" becomes "My blog".
func SentenceCase(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	if len(words) == 0 {
		return ""
	}
	s := strings.Join(words, " ")
	return strings.ToUpper(s[:1]) + s[1:]
}

// NormalizeFolderName validates input and returns its slug form.
func NormalizeFolderName(input string) (string, error) {
	if err := ValidateFolderName(input); err != nil {
		return "", err
	}
	slug := ParamCase(input)
	if len(slug) < MinFolderNameLength {
		return "", NewValidationError("folderName", "Please provide a valid app name")
	}
	return slug, nil
}

// IsFolderName reports whether name is a folder name NormalizeFolderName
// could have produced. Anything else never names an app or a template.
func IsFolderName(name string) bool {
	slug, err := NormalizeFolderName(name)
	return err == nil && slug == name
}

// SystemRepos are hosting-daemon repositories that are never removed or
// reused for an application.
var SystemRepos = []string{"gitolite-admin.git", "testing.git"}

// IsSystemRepo reports whether dirName is a protected hosting-daemon repository.
func IsSystemRepo(dirName string) bool {
	for _, r := range SystemRepos {
		if r == dirName {
			return true
		}
	}
	return false
}

// AppRepoName is the hosting-daemon repository name for an application.
func AppRepoName(folderName string) string {
	if IsSystemRepo(folderName + ".git") {
		return folderName + ".app"
	}
	return folderName
}

// TemplateRepoName is the hosting-daemon repository name for a template.
func TemplateRepoName(folderName string) string {
	return folderName + ".template"
}

// ProcessName returns the supervisor name for folderName, suffixed when it
// collides with a reserved name.
func ProcessName(folderName string, reserved []string) string {
	for _, r := range reserved {
		if r == folderName {
			return folderName + "-2"
		}
	}
	return folderName
}
