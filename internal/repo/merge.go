package repo

import (
	"fmt"

	"vcs/internal/content"
	vcserr "vcs/internal/errors"
	"vcs/internal/journal"

	"go.uber.org/zap"
)

// commonAncestor walks two root-first pedigrees in lock-step and returns the
// last commit they share. Histories here never join, so the shared part is
// always a common prefix.
func commonAncestor(a, b []*Commit) *Commit {
	var base *Commit
	for i := 0; i < len(a) && i < len(b); i++ {
		if !a[i].Equal(b[i]) {
			break
		}
		base = a[i]
	}
	return base
}

// mergeFiles reconciles current and merged against base. Any path changed on
// either side takes that side's version, with merged applied last so it wins
// conflicts. A base path missing from either side is dropped.
func mergeFiles(base, current, merged map[string]content.TrackedFile) map[string]content.TrackedFile {
	result := make(map[string]content.TrackedFile, len(base))
	for p, f := range base {
		result[p] = f
	}

	for _, side := range []map[string]content.TrackedFile{current, merged} {
		for p, f := range side {
			if old, ok := base[p]; !ok || !old.Equal(f) {
				result[p] = f
			}
		}
	}

	for p := range base {
		_, inCurrent := current[p]
		_, inMerged := merged[p]
		if !inCurrent || !inMerged {
			delete(result, p)
		}
	}
	return result
}

// Merge folds the head of branch name into the current branch as a new
// commit. The position must be at the current branch head. The merged
// branch's changes take precedence on conflicting paths.
func (r *Repository) Merge(name string) (*Commit, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	branchName, cur, err := r.Position()
	if err != nil {
		return nil, err
	}
	if name == branchName {
		return nil, vcserr.BadPosition("cannot merge branch %s into itself", name)
	}
	branch, err := GetBranch(r, branchName)
	if err != nil {
		return nil, err
	}
	if branch.Head() != cur {
		return nil, vcserr.BadPosition("commit %d is not the head of branch %s (head is %d)", cur, branchName, branch.Head())
	}
	target, err := GetBranch(r, name)
	if err != nil {
		return nil, err
	}

	current, err := ReadCommit(r, cur)
	if err != nil {
		return nil, err
	}
	incoming, err := ReadCommit(r, target.Head())
	if err != nil {
		return nil, err
	}

	currentPedigree, err := current.Pedigree(r)
	if err != nil {
		return nil, err
	}
	incomingPedigree, err := incoming.Pedigree(r)
	if err != nil {
		return nil, err
	}
	base := commonAncestor(currentPedigree, incomingPedigree)
	if base == nil {
		return nil, vcserr.BadRepo("commits %d and %d share no history", current.Number, incoming.Number)
	}

	result := mergeFiles(base.Map(), current.Map(), incoming.Map())

	if err := r.stage.Wipe(); err != nil {
		return nil, fmt.Errorf("wiping staging zone: %w", err)
	}
	for _, f := range result {
		if _, err := r.stage.AddFile(f); err != nil {
			return nil, fmt.Errorf("staging merge result: %w", err)
		}
	}
	if err := r.stage.Save(); err != nil {
		return nil, fmt.Errorf("saving staging zone: %w", err)
	}

	merged, err := CreateCommit(r, fmt.Sprintf("Branch %s merged.", name))
	if err != nil {
		return nil, err
	}

	if err := current.RemoveFrom(r.work); err != nil {
		return nil, err
	}
	if err := merged.Checkout(r.work, r.stage); err != nil {
		return nil, err
	}
	if err := r.save(); err != nil {
		return nil, err
	}

	r.logger.Info("branch merged",
		zap.String("branch", name),
		zap.String("into", branchName),
		zap.Int("base", base.Number),
		zap.Int("commit", merged.Number))
	r.record(journal.Entry{Op: journal.OpMerge, Branch: branchName, Commit: merged.Number, Message: merged.Message})
	return merged, nil
}
