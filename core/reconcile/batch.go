package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"admin-console/core/gql"
)

type Diff struct {
	Assign []string `json:"assign"`
	Revoke []string `json:"revoke"`
}

func (d Diff) Empty() bool {
	return len(d.Assign) == 0 && len(d.Revoke) == 0
}

// ComputeDiff returns what must be assigned and revoked to turn current into selected.
func ComputeDiff(current, selected []string) Diff {
	have := toSet(current)
	want := toSet(selected)
	d := Diff{}
	for id := range want {
		if _, ok := have[id]; !ok {
			d.Assign = append(d.Assign, id)
		}
	}
	for id := range have {
		if _, ok := want[id]; !ok {
			d.Revoke = append(d.Revoke, id)
		}
	}
	sort.Strings(d.Assign)
	sort.Strings(d.Revoke)
	return d
}

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			out[id] = struct{}{}
		}
	}
	return out
}

type BatchResult struct {
	Applied []Outcome `json:"applied"`
	Failed  []Outcome `json:"failed"`
}

func (r BatchResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %s", f.LinkID, f.Error))
	}
	return errors.Join(errs...)
}

// ApplyDiff fans the diff out with at most limit calls in flight and waits for
// all of them. Failures do not undo siblings that already applied.
func ApplyDiff(ctx context.Context, m Mutator, ownerID string, d Diff, limit int) BatchResult {
	if limit <= 0 {
		limit = 1
	}
	var (
		mu  sync.Mutex
		res BatchResult
		g   errgroup.Group
	)
	g.SetLimit(limit)
	record := func(id string, assign bool, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			res.Failed = append(res.Failed, Outcome{LinkID: id, Assigned: !assign, State: Reverted, Error: gql.Message(err)})
			return
		}
		res.Applied = append(res.Applied, Outcome{LinkID: id, Assigned: assign, State: Synced})
	}
	for _, id := range d.Assign {
		g.Go(func() error {
			record(id, true, m.Assign(ctx, ownerID, id))
			return nil
		})
	}
	for _, id := range d.Revoke {
		g.Go(func() error {
			record(id, false, m.Revoke(ctx, ownerID, id))
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(res.Applied, func(i, j int) bool { return res.Applied[i].LinkID < res.Applied[j].LinkID })
	sort.Slice(res.Failed, func(i, j int) bool { return res.Failed[i].LinkID < res.Failed[j].LinkID })
	return res
}

// ApplySelection drives a bulk change through the editor so each affected
// link passes through Pending and ends Synced or Reverted like a toggle.
func (e *Editor) ApplySelection(ctx context.Context, m Mutator, selected []string, limit int) (BatchResult, error) {
	e.mu.Lock()
	if e.pending > 0 {
		e.mu.Unlock()
		return BatchResult{}, ErrPending
	}
	current := make([]string, 0, len(e.links))
	for id, l := range e.links {
		if l.selected {
			current = append(current, id)
		}
	}
	d := ComputeDiff(current, selected)
	for _, id := range append(append([]string{}, d.Assign...), d.Revoke...) {
		if _, ok := e.links[id]; !ok {
			e.mu.Unlock()
			return BatchResult{}, fmt.Errorf("%w: %s", ErrUnknownLink, id)
		}
	}
	for _, id := range d.Assign {
		e.links[id].selected, e.links[id].state, e.links[id].err = true, Pending, ""
	}
	for _, id := range d.Revoke {
		e.links[id].selected, e.links[id].state, e.links[id].err = false, Pending, ""
	}
	e.pending += len(d.Assign) + len(d.Revoke)
	e.mu.Unlock()

	res := ApplyDiff(ctx, m, e.ownerID, d, limit)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending -= len(d.Assign) + len(d.Revoke)
	for _, o := range res.Applied {
		l := e.links[o.LinkID]
		l.state = Synced
		e.hasChanges = true
	}
	for _, o := range res.Failed {
		l := e.links[o.LinkID]
		l.selected = o.Assigned
		l.state = Reverted
		l.err = o.Error
		e.lastErr = o.Error
	}
	if len(res.Failed) == 0 {
		e.lastErr = ""
		if !d.Empty() {
			e.message = fmt.Sprintf("Updated %d assignments for %s.", len(res.Applied), e.ownerLabel)
		}
	}
	return res, res.Err()
}
