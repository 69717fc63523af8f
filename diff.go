package rowtable

import (
	"fmt"
	"sort"
)

// DiffKind discriminates the three edit shapes the diff engine emits.
type DiffKind int

const (
	DiffUpdate DiffKind = iota
	DiffRemove
	DiffListAppend
)

// AttrDiff is one path-scoped edit produced by Diff. Rendered is the
// already-literal-rendered value text for DiffUpdate and DiffListAppend;
// it is empty for DiffRemove.
type AttrDiff struct {
	Kind     DiffKind
	Path     string
	Rendered string
}

func updateDiff(path, rendered string) AttrDiff     { return AttrDiff{Kind: DiffUpdate, Path: path, Rendered: rendered} }
func removeDiff(path string) AttrDiff               { return AttrDiff{Kind: DiffRemove, Path: path} }
func listAppendDiff(path, rendered string) AttrDiff { return AttrDiff{Kind: DiffListAppend, Path: path, Rendered: rendered} }

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func indexPath(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}

// Diff recursively compares two attribute maps and returns the minimal
// ordered list of edits that would bring existing to match newItem. Map
// keys are visited in sorted order so the result is deterministic
// regardless of how the caller's own map iterates.
func Diff(newItem, existing map[string]AttrValue) ([]AttrDiff, error) {
	return diffMap("", newItem, existing)
}

func diffMap(path string, newItem, existing map[string]AttrValue) ([]AttrDiff, error) {
	seen := make(map[string]struct{}, len(newItem)+len(existing))
	for k := range newItem {
		seen[k] = struct{}{}
	}
	for k := range existing {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []AttrDiff
	for _, k := range keys {
		childPath := joinPath(path, k)
		nv, inNew := newItem[k]
		ev, inExisting := existing[k]
		switch {
		case inNew && inExisting:
			d, err := diffValue(childPath, nv, ev)
			if err != nil {
				return nil, err
			}
			out = append(out, d...)
		case inExisting:
			out = append(out, removeDiff(childPath))
		default:
			d, err := updateOrRemove(childPath, nv)
			if err != nil {
				return nil, err
			}
			out = append(out, d...)
		}
	}
	return out, nil
}

func diffValue(path string, nv, ev AttrValue) ([]AttrDiff, error) {
	if nv.Kind != ev.Kind {
		return updateOrRemove(path, nv)
	}
	switch nv.Kind {
	case KindNull:
		return nil, nil
	case KindS, KindN, KindBool:
		rn, err := render(nv)
		if err != nil {
			return nil, err
		}
		re, err := render(ev)
		if err != nil {
			return nil, err
		}
		if rn != re {
			return []AttrDiff{updateDiff(path, rn)}, nil
		}
		return nil, nil
	case KindL:
		return diffList(path, nv.List, ev.List)
	case KindM:
		return diffMap(path, nv.Map, ev.Map)
	default:
		return nil, &UnableToUpdateError{Reason: fmt.Sprintf("Unable to handle %s types.", nv.typeName())}
	}
}

func diffList(path string, newList, existingList []AttrValue) ([]AttrDiff, error) {
	n := len(newList)
	if len(existingList) > n {
		n = len(existingList)
	}
	var out []AttrDiff
	appended := false
	for i := 0; i < n; i++ {
		childPath := indexPath(path, i)
		switch {
		case i < len(newList) && i < len(existingList):
			d, err := diffValue(childPath, newList[i], existingList[i])
			if err != nil {
				return nil, err
			}
			out = append(out, d...)
		case i < len(existingList):
			out = append(out, removeDiff(childPath))
		default:
			if !appended {
				rendered, err := render(L(newList[i:]...))
				if err != nil {
					return nil, err
				}
				out = append(out, listAppendDiff(path, rendered))
				appended = true
			}
		}
	}
	return out, nil
}

// updateOrRemove implements the "recompute from scratch" rule used both for
// type changes and for keys only present in the new item: a null renders to a
// Remove, anything else to a full Update of its literal.
func updateOrRemove(path string, v AttrValue) ([]AttrDiff, error) {
	if v.Kind == KindNull {
		return []AttrDiff{removeDiff(path)}, nil
	}
	rendered, err := render(v)
	if err != nil {
		return nil, err
	}
	return []AttrDiff{updateDiff(path, rendered)}, nil
}
