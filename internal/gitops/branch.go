package gitops

import (
	"fmt"
	"strings"
)

// maxSlugLen bounds the slug portion of a task branch name.
const maxSlugLen = 50

// Slug lowers a description and collapses runs of non-alphanumerics to a
// single hyphen, trimming leading and trailing hyphens and truncating to
// maxSlugLen characters.
func Slug(description string) string {
	lower := strings.ToLower(description)
	var b strings.Builder
	lastHyphen := false
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen && b.Len() > 0 {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.Trim(slug[:maxSlugLen], "-")
	}
	return slug
}

// BranchName builds a task branch name of form agent/<ticket>-<slug>.
func BranchName(ticketID, description string) string {
	slug := Slug(description)
	if slug == "" {
		return "agent/" + ticketID
	}
	return fmt.Sprintf("agent/%s-%s", ticketID, slug)
}

// CommitMessage builds a commit message of form [<ticket>] <description>.
func CommitMessage(ticketID, description string) string {
	return fmt.Sprintf("[%s] %s", ticketID, description)
}

// IsProtected reports whether the branch name is protected from direct
// merges. Protected names are main and master, case-insensitive.
func IsProtected(branch string) bool {
	switch strings.ToLower(strings.TrimSpace(branch)) {
	case "main", "master":
		return true
	default:
		return false
	}
}
