package models

import "strings"

// Commit is one commit of a pull request as listed by the hosting API
type Commit struct {
	// SHA is the full commit hash
	SHA string
	// Message is the full commit message
	Message string
	// Parents is the number of parent commits
	Parents int
	// URL is the API URL used to fetch the commit as a patch
	URL string
}

// IsMerge reports whether the commit has more than one parent
func (c Commit) IsMerge() bool {
	return c.Parents > 1
}

// Subject returns the first line of the message
func (c Commit) Subject() string {
	subject, _, _ := strings.Cut(c.Message, "\n")
	return strings.TrimSpace(subject)
}

// ShortSHA returns the first 7 characters of the hash
func (c Commit) ShortSHA() string {
	if len(c.SHA) > 7 {
		return c.SHA[:7]
	}
	return c.SHA
}

// Matches reports whether sha names this commit. Abbreviated hashes of 7 or
// more characters match.
func (c Commit) Matches(sha string) bool {
	return SameSHA(c.SHA, sha)
}

// SameSHA reports whether sha is full, or an abbreviation of it at least
// 7 characters long
func SameSHA(full, sha string) bool {
	if full == "" || sha == "" {
		return false
	}
	if full == sha {
		return true
	}
	return len(sha) >= 7 && strings.HasPrefix(full, sha)
}
