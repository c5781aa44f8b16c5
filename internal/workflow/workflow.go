// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package workflow decides whether the edited key components form a new
// database key and installs it.
//
// A save attempt runs Idle -> Evaluating -> Committed or Cancelled:
//
//  1. Nothing edited and the database already has a key: commit with no change.
//  2. The password passes the quality gate, or the user accepts going without one.
//  3. Each other component is edited (validated and derived), carried over from
//     the current key by handle, or left out.
//  4. A key with no factors is never installed.
//  5. The key is installed, then the quick-unlock entry for the database is reset.
//
// Every abort leaves the current key untouched and zeroes the factors derived
// during the attempt.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/aplane-algo/dbkey/internal/database"
	"github.com/aplane-algo/dbkey/internal/keycomponent"
	"github.com/aplane-algo/dbkey/internal/keys"
	"github.com/aplane-algo/dbkey/internal/policy"
)

// User-facing error titles and messages.
const (
	TitleNoKey      = "No encryption key added"
	MessageNoKey    = "You must add at least one encryption key to secure your database!"
	TitleAddFailed  = "Failed to change database credentials"
	TitleLowQuality = "Unacceptable password"
)

// State is the progress of a save attempt.
type State int32

const (
	StateIdle State = iota
	StateEvaluating
	StateCommitted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEvaluating:
		return "evaluating"
	case StateCommitted:
		return "committed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the result of Save.
type Outcome struct {
	State State

	// Changed is true when the user edited anything. A committed outcome with
	// Changed false left the key as it was.
	Changed bool

	// Key is the database key after a commit; nil when cancelled.
	Key *keys.CompositeKey
}

// Options configures a Workflow.
type Options struct {
	Confirmer   Confirmer
	QuickUnlock QuickUnlock
	Config      QualityConfig
	Logger      *slog.Logger
}

// Workflow drives key changes for one database at a time.
type Workflow struct {
	password   keycomponent.PasswordComponent
	components []keycomponent.Component

	confirm     Confirmer
	quickUnlock QuickUnlock
	config      QualityConfig
	logger      *slog.Logger

	saving sync.Mutex

	mu       sync.Mutex
	db       KeyStore
	finished []func(committed bool)

	state atomic.Int32
	dirty atomic.Bool
}

// New creates a workflow around the password component. Other components are
// added with Register.
func New(password keycomponent.PasswordComponent, opts Options) *Workflow {
	if password == nil {
		panic("workflow: password component is required")
	}
	w := &Workflow{
		password:    password,
		confirm:     opts.Confirmer,
		quickUnlock: opts.QuickUnlock,
		config:      opts.Config,
		logger:      opts.Logger,
	}
	if w.confirm == nil {
		w.confirm = declineAll{}
	}
	if w.quickUnlock == nil {
		w.quickUnlock = nopQuickUnlock{}
	}
	if w.config == nil {
		w.config = MinimumQuality(0)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	password.OnChange(w.MarkDirty)
	return w
}

// Register adds a component after the password. Components are processed in
// registration order. Only one component per factor kind is allowed.
func (w *Workflow) Register(c keycomponent.Component) {
	for _, existing := range w.all() {
		if existing.Kind() == c.Kind() {
			panic(fmt.Sprintf("workflow: a %s component is already registered", c.Kind()))
		}
	}
	w.mu.Lock()
	w.components = append(w.components, c)
	w.mu.Unlock()
	c.OnChange(w.MarkDirty)
}

// Components returns the password followed by the registered components.
func (w *Workflow) Components() []keycomponent.Component {
	return w.all()
}

// OnEditFinished registers a listener for the end of a save or discard.
func (w *Workflow) OnEditFinished(fn func(committed bool)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.finished = append(w.finished, fn)
}

// Load binds the workflow to db and sets every component from its current key.
// A database without a key starts with the password in edit mode.
func (w *Workflow) Load(db KeyStore) {
	w.mu.Lock()
	w.db = db
	w.mu.Unlock()

	key := db.Key()
	for _, c := range w.all() {
		c.SetComponentAdded(hasFactor(key, c))
	}
	if key.IsEmpty() {
		w.password.Edit()
	}

	w.dirty.Store(false)
	w.state.Store(int32(StateIdle))
}

// MarkDirty records a user change. Components call it through OnChange.
func (w *Workflow) MarkDirty() {
	w.dirty.Store(true)
}

// Dirty reports whether the user changed anything since Load.
func (w *Workflow) Dirty() bool {
	if w.dirty.Load() {
		return true
	}
	for _, c := range w.all() {
		if c.VisiblePage() == keycomponent.PageEdit {
			return true
		}
	}
	return false
}

// State returns the state of the current or last save attempt.
func (w *Workflow) State() State {
	return State(w.state.Load())
}

// Save evaluates the components and installs the resulting key.
// Exactly one OnEditFinished notification is sent per call that gets past
// the in-progress and not-loaded checks.
func (w *Workflow) Save(ctx context.Context) (Outcome, error) {
	if !w.saving.TryLock() {
		return Outcome{}, ErrSaveInProgress
	}
	defer w.saving.Unlock()

	db := w.store()
	if db == nil {
		return Outcome{}, ErrNotLoaded
	}

	w.state.Store(int32(StateEvaluating))
	out, err := w.evaluate(ctx, db)
	w.state.Store(int32(out.State))

	if err != nil {
		w.logger.Debug("key change cancelled", "error", err)
	}
	w.emitFinished(out.State == StateCommitted)
	return out, err
}

// Discard abandons the edit session. The database key is not touched.
func (w *Workflow) Discard() error {
	if !w.saving.TryLock() {
		return ErrSaveInProgress
	}
	defer w.saving.Unlock()

	w.resetComponents()
	w.state.Store(int32(StateCancelled))
	w.emitFinished(false)
	return nil
}

func (w *Workflow) evaluate(ctx context.Context, db KeyStore) (Outcome, error) {
	cancelled := Outcome{State: StateCancelled}

	dirty := w.Dirty()
	old := db.Key()
	if !old.IsEmpty() && !dirty {
		return Outcome{State: StateCommitted, Key: old}, nil
	}

	snapshot := snapshotFactors(old)
	gate := policy.NewGate(w.config.MinimumPasswordQuality())
	b := keys.NewBuilder()
	installed := false
	defer func() {
		if !installed {
			b.Discard(old)
		}
	}()

	if err := w.addPassword(ctx, b, gate, snapshot); err != nil {
		return cancelled, err
	}

	w.mu.Lock()
	components := append([]keycomponent.Component(nil), w.components...)
	w.mu.Unlock()

	for _, c := range components {
		if err := w.addComponent(ctx, b, c, snapshot); err != nil {
			return cancelled, err
		}
	}

	if b.IsEmpty() {
		w.confirm.ShowError(TitleNoKey, MessageNoKey)
		return cancelled, ErrNoEncryptionKey
	}

	next := b.Build()
	opts := database.SetKeyOptions{KeyChange: true}
	if err := db.SetKey(ctx, next, opts); err != nil {
		w.confirm.ShowError(TitleAddFailed, err.Error())
		return cancelled, fmt.Errorf("failed to install new key: %w", err)
	}
	installed = true

	id := db.PublicUUID()
	if err := w.quickUnlock.Reset(id); err != nil {
		w.logger.Warn("failed to reset quick unlock", "database", id.String(), "error", err)
	}

	if dirty {
		db.MarkModified()
	}
	w.logger.Info("database key changed", "database", id.String(), "factors", len(next.Kinds()))

	w.resetComponents()
	return Outcome{State: StateCommitted, Changed: dirty, Key: next}, nil
}

func (w *Workflow) addPassword(ctx context.Context, b *keys.Builder, gate *policy.Gate, snapshot factors) error {
	p := w.password

	switch p.VisiblePage() {
	case keycomponent.PageEdit:
		if p.IsEmpty() {
			return gate.Check(w.confirm, false, 0)
		}
		if err := w.contribute(ctx, b, p); err != nil {
			return err
		}
		err := gate.Check(w.confirm, true, p.Quality())
		var violation *policy.PolicyViolation
		if errors.As(err, &violation) {
			w.confirm.ShowError(TitleLowQuality, violation.Message())
		}
		return err

	case keycomponent.PageLeaveOrRemove:
		if p.ComponentAdded() {
			snapshot.carryOver(b, p)
			return nil
		}
	}

	return gate.Check(w.confirm, false, 0)
}

func (w *Workflow) addComponent(ctx context.Context, b *keys.Builder, c keycomponent.Component, snapshot factors) error {
	switch c.VisiblePage() {
	case keycomponent.PageEdit:
		return w.contribute(ctx, b, c)
	case keycomponent.PageLeaveOrRemove:
		if c.ComponentAdded() {
			snapshot.carryOver(b, c)
		}
	}
	return nil
}

// contribute validates c and adds a freshly derived factor.
func (w *Workflow) contribute(ctx context.Context, b *keys.Builder, c keycomponent.Component) error {
	if err := c.Validate(ctx); err != nil {
		w.confirm.ShowError(TitleAddFailed, userMessage(err))
		return err
	}
	if err := c.AddToCompositeKey(ctx, b); err != nil {
		w.confirm.ShowError(TitleAddFailed, userMessage(err))
		return err
	}
	return nil
}

func (w *Workflow) resetComponents() {
	for _, c := range w.all() {
		c.SetComponentAdded(false)
	}
	w.dirty.Store(false)
}

func (w *Workflow) emitFinished(committed bool) {
	w.mu.Lock()
	listeners := append(([]func(bool))(nil), w.finished...)
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(committed)
	}
}

func (w *Workflow) store() KeyStore {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.db
}

func (w *Workflow) all() []keycomponent.Component {
	w.mu.Lock()
	defer w.mu.Unlock()
	all := make([]keycomponent.Component, 0, len(w.components)+1)
	all = append(all, w.password)
	return append(all, w.components...)
}

// factors holds handles to the factors of the current key by type identifier.
type factors struct {
	keys map[uuid.UUID]keys.Key
	cr   map[uuid.UUID]*keys.ChallengeResponseKey
}

func snapshotFactors(key *keys.CompositeKey) factors {
	f := factors{
		keys: make(map[uuid.UUID]keys.Key),
		cr:   make(map[uuid.UUID]*keys.ChallengeResponseKey),
	}
	for _, k := range key.Keys() {
		if _, ok := f.keys[k.UUID()]; !ok {
			f.keys[k.UUID()] = k
		}
	}
	for _, k := range key.ChallengeResponseKeys() {
		if _, ok := f.cr[k.UUID()]; !ok {
			f.cr[k.UUID()] = k
		}
	}
	return f
}

// carryOver adds the current factor for c to b by handle. A component that
// claims to be part of the key without a matching factor is a bug.
func (f factors) carryOver(b *keys.Builder, c keycomponent.Component) {
	if c.Kind() == keys.KindChallengeResponse {
		k, ok := f.cr[c.TypeID()]
		if !ok {
			panic(fmt.Sprintf("workflow: %s is marked as added but the current key has no such factor", c.Name()))
		}
		b.AddChallengeResponseKey(k)
		return
	}
	k, ok := f.keys[c.TypeID()]
	if !ok {
		panic(fmt.Sprintf("workflow: %s is marked as added but the current key has no such factor", c.Name()))
	}
	b.AddKey(k)
}

func hasFactor(key *keys.CompositeKey, c keycomponent.Component) bool {
	if c.Kind() == keys.KindChallengeResponse {
		return key.FindChallengeResponseKey(c.TypeID()) != nil
	}
	return key.FindKey(c.TypeID()) != nil
}

func userMessage(err error) string {
	var verr *keycomponent.ValidationError
	if errors.As(err, &verr) {
		if verr.Err != nil {
			return fmt.Sprintf("%s\n%v", verr.Reason, verr.Err)
		}
		return verr.Reason
	}
	return err.Error()
}
