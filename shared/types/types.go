// Package shared holds the status records exchanged between the repository
// and its callers.
package shared

// ChangeType describes how a path differs between two snapshots.
type ChangeType string

const (
	Added     ChangeType = "add"
	Modified  ChangeType = "modify"
	Deleted   ChangeType = "delete"
	Untracked ChangeType = "untracked"
)

// Change is one line of repository status.
type Change struct {
	Path    string     `json:"path"`
	Type    ChangeType `json:"type"`
	Staged  bool       `json:"staged"`
	OldHash string     `json:"old_hash,omitempty"`
	NewHash string     `json:"new_hash,omitempty"`
}

// Status groups the changes of a working tree.
type Status struct {
	Branch    string   `json:"branch"`
	Commit    int      `json:"commit"`
	Detached  bool     `json:"detached"`
	Staged    []Change `json:"staged"`
	Unstaged  []Change `json:"unstaged"`
	Untracked []Change `json:"untracked"`
}

// Clean reports whether nothing differs between tree, stage and commit.
func (s *Status) Clean() bool {
	return len(s.Staged) == 0 && len(s.Unstaged) == 0 && len(s.Untracked) == 0
}
