package models

// RepoState describes the remote checkout before an apply
type RepoState struct {
	// Path to the repository on the remote host
	Path string
	// Exists is false when the directory is missing
	Exists bool
	// Branch currently checked out
	Branch string
	// ApplyInProgress is true while a `git am` session marker is present
	ApplyInProgress bool
}
