package services

import (
	"context"
	"sync"

	"github.com/ruralpay/energyledger/internal/store"
)

type scopeKey struct{}
type referenceKey struct{}

// lockScope keeps account locks taken inside one storage unit until the unit
// has committed or rolled back, and holds work to run once it commits.
type lockScope struct {
	mu        sync.Mutex
	held      map[string]bool
	releases  []func()
	committed []func()
}

func (sc *lockScope) acquire(km *KeyedMutex, keys ...string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	fresh := make([]string, 0, len(keys))
	for _, k := range keys {
		if !sc.held[k] {
			fresh = append(fresh, k)
		}
	}
	if len(fresh) == 0 {
		return
	}

	sc.releases = append(sc.releases, km.LockMany(fresh...))
	for _, k := range fresh {
		sc.held[k] = true
	}
}

func (sc *lockScope) release() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for i := len(sc.releases) - 1; i >= 0; i-- {
		sc.releases[i]()
	}
	sc.releases = nil
	sc.held = map[string]bool{}
}

// runInScope runs fn as one storage unit. Nested calls join the outer unit
// and its lock scope. All account keys for a unit must be requested in a
// single lockAccounts call.
func runInScope(ctx context.Context, st store.Store, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(scopeKey{}).(*lockScope); ok {
		return st.WithinTx(ctx, fn)
	}

	sc := &lockScope{held: map[string]bool{}}
	defer sc.release()
	if err := st.WithinTx(context.WithValue(ctx, scopeKey{}, sc), fn); err != nil {
		return err
	}
	for _, hook := range sc.takeCommitted() {
		hook()
	}
	return nil
}

func (sc *lockScope) takeCommitted() []func() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	hooks := sc.committed
	sc.committed = nil
	return hooks
}

// afterCommit runs fn once the outermost unit enclosing ctx commits, and drops
// it if that unit rolls back. Outside any unit fn runs immediately.
func afterCommit(ctx context.Context, fn func()) {
	sc, ok := ctx.Value(scopeKey{}).(*lockScope)
	if !ok {
		fn()
		return
	}
	sc.mu.Lock()
	sc.committed = append(sc.committed, fn)
	sc.mu.Unlock()
}

// lockAccounts takes the account locks for the current unit. It must be
// called from inside runInScope.
func lockAccounts(ctx context.Context, km *KeyedMutex, ids ...string) {
	ctx.Value(scopeKey{}).(*lockScope).acquire(km, ids...)
}

// WithReference tags ledger journal entries written under ctx with ref,
// typically an offer id, trade id or external payment reference.
func WithReference(ctx context.Context, ref string) context.Context {
	return context.WithValue(ctx, referenceKey{}, ref)
}

func referenceFrom(ctx context.Context) string {
	ref, _ := ctx.Value(referenceKey{}).(string)
	return ref
}
