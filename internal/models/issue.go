package models

import "strings"

// Label is a label attached to an issue or PR
type Label struct {
	Name  string
	Color string
}

// Issue is a search result item (issue or pull request)
type Issue struct {
	Number  int
	Title   string
	Body    string
	HTMLURL string
	Labels  []Label
}

// IsPull reports whether the item is a pull request
func (i Issue) IsPull() bool {
	return strings.Contains(i.HTMLURL, "/pull/")
}

// IsIssue reports whether the item is a plain issue
func (i Issue) IsIssue() bool {
	return strings.Contains(i.HTMLURL, "/issues/")
}
