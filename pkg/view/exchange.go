package view

import (
	"context"

	"github.com/teslashibe/go-lingua/pkg/conversation"
)

// exchange sends one turn to the backend and applies the reply when the
// view is still on the same mount.
func (v *View) exchange(ctx context.Context, gen uint64, req conversation.Request, locale string) {
	defer v.inflight.Done()

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	var (
		resp *conversation.Response
		err  error
	)
	if v.exchanger == nil {
		err = conversation.ErrEmptyEndpoint
	} else {
		resp, err = v.exchanger.Exchange(ctx, req)
	}

	v.mu.Lock()
	v.pending--
	current := v.mounted && v.generation == gen
	if err == nil && current {
		v.history = append([]string{}, resp.NewHistory...)
	}
	v.mu.Unlock()

	switch {
	case err != nil:
		v.logger.Error("error processing transcript", "error", err)
	case !current:
		v.logger.Debug("dropping response for stale conversation")
	default:
		v.logger.Info("reply received", "history", len(resp.NewHistory))
		if v.speaker != nil {
			v.speaker.Speak(resp.Text, locale)
		}
	}
	v.notify(ChangeState)
}

// Subscribe registers fn for every change and returns a function removing it.
// fn runs on the goroutine that caused the change and must not block.
func (v *View) Subscribe(fn func(Change)) func() {
	v.subMu.Lock()
	id := v.nextSub
	v.nextSub++
	v.subs[id] = fn
	v.subMu.Unlock()

	return func() {
		v.subMu.Lock()
		delete(v.subs, id)
		v.subMu.Unlock()
	}
}

func (v *View) notify(kind ChangeKind) {
	v.subMu.RLock()
	if len(v.subs) == 0 {
		v.subMu.RUnlock()
		return
	}
	fns := make([]func(Change), 0, len(v.subs))
	for _, fn := range v.subs {
		fns = append(fns, fn)
	}
	v.subMu.RUnlock()

	c := Change{Kind: kind, State: v.Snapshot()}
	for _, fn := range fns {
		fn(c)
	}
}
