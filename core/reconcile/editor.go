package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"admin-console/core/gql"
)

type linkEntry struct {
	seed     LinkSeed
	selected bool
	state    LinkState
	err      string
}

// Editor is one open assignment dialog. Toggles apply optimistically and
// revert on failure; links are independent of each other.
type Editor struct {
	mu         sync.Mutex
	kind       Kind
	ownerID    string
	ownerLabel string
	links      map[string]*linkEntry
	order      []string
	hasChanges bool
	pending    int
	message    string
	lastErr    string
}

func NewEditor(kind Kind, ownerID, ownerLabel string, seeds []LinkSeed) *Editor {
	e := &Editor{
		kind:       kind,
		ownerID:    ownerID,
		ownerLabel: ownerLabel,
		links:      make(map[string]*linkEntry, len(seeds)),
	}
	for _, s := range seeds {
		if s.ID == "" {
			continue
		}
		if _, dup := e.links[s.ID]; dup {
			continue
		}
		if s.Label == "" {
			s.Label = s.ID
		}
		e.links[s.ID] = &linkEntry{seed: s, selected: s.Selected, state: Synced}
		e.order = append(e.order, s.ID)
	}
	return e
}

func (e *Editor) Kind() Kind {
	return e.kind
}

func (e *Editor) OwnerID() string {
	return e.ownerID
}

// Toggle flips one link and issues the matching mutation. The link is Pending
// for the duration of the call and cannot be toggled again until it settles.
func (e *Editor) Toggle(ctx context.Context, m Mutator, linkID string) (Outcome, error) {
	e.mu.Lock()
	link, ok := e.links[linkID]
	if !ok {
		e.mu.Unlock()
		return Outcome{LinkID: linkID}, ErrUnknownLink
	}
	if link.state == Pending {
		e.mu.Unlock()
		return Outcome{LinkID: linkID, Assigned: link.selected, State: Pending}, ErrLinkPending
	}
	previous := link.selected
	next := !previous
	link.selected = next
	link.state = Pending
	link.err = ""
	e.pending++
	e.mu.Unlock()

	var err error
	if next {
		err = m.Assign(ctx, e.ownerID, linkID)
	} else {
		err = m.Revoke(ctx, e.ownerID, linkID)
	}
	return e.settle(link, previous, next, err), err
}

func (e *Editor) settle(link *linkEntry, previous, next bool, err error) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending--
	out := Outcome{LinkID: link.seed.ID}
	if err != nil {
		link.selected = previous
		link.state = Reverted
		link.err = gql.Message(err)
		e.lastErr = link.err
		e.message = ""
		out.Assigned = previous
		out.State = Reverted
		out.Error = link.err
		return out
	}
	link.state = Synced
	e.hasChanges = true
	e.lastErr = ""
	e.message = successMessage(next, link.seed.Label, e.ownerLabel)
	out.Assigned = next
	out.State = Synced
	out.Message = e.message
	return out
}

func successMessage(granted bool, what, owner string) string {
	if granted {
		return fmt.Sprintf("Granted %s for %s.", what, owner)
	}
	return fmt.Sprintf("Revoked %s for %s.", what, owner)
}

// Close ends the editing session. While any link is pending it refuses with
// ErrPending and changes nothing. When something was applied, refetch runs
// once; its error is returned but the change flag is reset either way.
func (e *Editor) Close(ctx context.Context, refetch Refetch) (bool, error) {
	e.mu.Lock()
	if e.pending > 0 {
		e.mu.Unlock()
		return false, ErrPending
	}
	changed := e.hasChanges
	e.hasChanges = false
	e.mu.Unlock()
	if !changed || refetch == nil {
		return false, nil
	}
	if err := refetch(ctx); err != nil {
		return true, err
	}
	return true, nil
}

func (e *Editor) HasChanges() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasChanges
}

func (e *Editor) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending > 0
}

// Selected returns the ids currently shown as assigned, sorted.
func (e *Editor) Selected() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.links))
	for id, l := range e.links {
		if l.selected {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// View groups links by their group name (sorted), labels sorted within.
func (e *Editor) View() EditorView {
	e.mu.Lock()
	defer e.mu.Unlock()
	byGroup := map[string][]LinkView{}
	for _, id := range e.order {
		l := e.links[id]
		g := l.seed.Group
		if g == "" {
			g = "global"
		}
		byGroup[g] = append(byGroup[g], LinkView{
			ID:       id,
			Label:    l.seed.Label,
			Selected: l.selected,
			State:    l.state,
			Error:    l.err,
		})
	}
	names := make([]string, 0, len(byGroup))
	for name := range byGroup {
		names = append(names, name)
	}
	sort.Strings(names)
	groups := make([]GroupView, 0, len(names))
	for _, name := range names {
		links := byGroup[name]
		sort.SliceStable(links, func(i, j int) bool { return links[i].Label < links[j].Label })
		groups = append(groups, GroupView{Name: name, Links: links})
	}
	return EditorView{
		Kind:       e.kind,
		OwnerID:    e.ownerID,
		OwnerLabel: e.ownerLabel,
		HasChanges: e.hasChanges,
		Pending:    e.pending > 0,
		Message:    e.message,
		Error:      e.lastErr,
		Groups:     groups,
	}
}
