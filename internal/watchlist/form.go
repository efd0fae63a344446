package watchlist

import (
	"context"
	"sync"

	"stonklytics/internal/domain"
)

// FormState is what the create-watchlist form renders.
type FormState struct {
	Open       bool
	Name       string
	Submitting bool // render "Creating..." and disable submit
	Error      string
}

// CreateForm is the transient state of the create-watchlist UI.
type CreateForm struct {
	mu    sync.Mutex
	state FormState
}

// Open shows the form with an empty draft.
func (f *CreateForm) Open() {
	f.mu.Lock()
	f.state = FormState{Open: true}
	f.mu.Unlock()
}

// Cancel hides the form and drops the draft.
func (f *CreateForm) Cancel() {
	f.mu.Lock()
	if !f.state.Submitting {
		f.state = FormState{}
	}
	f.mu.Unlock()
}

// SetName updates the draft name.
func (f *CreateForm) SetName(name string) {
	f.mu.Lock()
	f.state.Name = name
	f.mu.Unlock()
}

// State returns a copy of the form state.
func (f *CreateForm) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Submit creates the watchlist through store. The form closes on success
// and stays open with the error message on failure.
func (f *CreateForm) Submit(ctx context.Context, store *Store) (*domain.Watchlist, error) {
	name, err := f.begin()
	if err != nil {
		return nil, err
	}
	return f.finish(store.Create(ctx, name))
}

// Start is Submit for event loops: the form is Submitting when Start
// returns and the outcome is delivered on the channel.
func (f *CreateForm) Start(ctx context.Context, store *Store) (<-chan error, error) {
	name, err := f.begin()
	if err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	go func() {
		_, err := f.finish(store.Create(ctx, name))
		done <- err
	}()
	return done, nil
}

func (f *CreateForm) begin() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Submitting {
		return "", domain.NewError(domain.KindBusy, MsgBusy)
	}
	f.state.Submitting = true
	f.state.Error = ""
	return f.state.Name, nil
}

func (f *CreateForm) finish(w *domain.Watchlist, err error) (*domain.Watchlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Submitting = false
	if err != nil {
		f.state.Error = domain.UserMessage(err, MsgCreateFailed)
		return nil, err
	}
	f.state = FormState{}
	return w, nil
}
