// 文件: pkg/account/registry.go
// Registry is the Account Registry: it owns every live Platform-D and
// Platform-X client handle, keeps Platform-D sessions fresh, and is the
// only place in the process allowed to construct those clients. Every
// other component borrows a Handle; none dial out on their own.

package account

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/itrader/agent/pkg/platformd"
	"github.com/itrader/agent/pkg/platformx"
)

// Handle bundles one account's identity with its live client pair.
type Handle struct {
	AccountID       int64
	Tag             string
	PlatformD       platformd.Client
	PlatformX       platformx.Client
	AdSlotCap       int
	PlatformXUserID string
}

type Registry struct {
	repo Repository

	mu      sync.RWMutex
	handles map[int64]*Handle
	rrIndex int // round-robin cursor for PickWithCapacity
}

func NewRegistry(repo Repository) *Registry {
	return &Registry{repo: repo, handles: make(map[int64]*Handle)}
}

// Register installs a live handle for an already-persisted Account. The
// caller has already built the concrete clients (e.g. from per-account
// credentials read out of the environment); the registry from this
// point on owns dispatching work to them.
func (r *Registry) Register(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[h.AccountID] = h
}

func (r *Registry) Get(accountID int64) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[accountID]
	return h, ok
}

// All returns a stable-ordered snapshot of every registered handle.
func (r *Registry) All() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out
}

// RefreshSessions logs in every handle whose Platform-D client has a
// Login method, whether or not its session has expired, and persists the
// returned cookie. The boot-time init task calls it once; nothing calls
// it in reaction to a platformd.SessionError.
func (r *Registry) RefreshSessions(ctx context.Context, credentials func(tag string) (email, password string)) {
	for _, h := range r.All() {
		client, ok := h.PlatformD.(interface {
			Login(ctx context.Context, loginEmail, password string) (string, error)
		})
		if !ok {
			continue
		}
		email, password := credentials(h.Tag)
		cookie, err := client.Login(ctx, email, password)
		if err != nil {
			log.Printf("[AccountRegistry] re-login failed for %s: %v", h.Tag, err)
			continue
		}
		if err := r.repo.SetSessionCookie(ctx, h.AccountID, cookie); err != nil {
			log.Printf("[AccountRegistry] persist session for %s: %v", h.Tag, err)
		}
		log.Printf("[AccountRegistry] refreshed session for %s", h.Tag)
	}
}

// SyncPlatformXTime measures clock drift against Platform-X's
// server-time endpoint for every registered handle. The boot-time init
// task calls it once; nothing calls it again on a signature-expired
// error.
func (r *Registry) SyncPlatformXTime(ctx context.Context) {
	for _, h := range r.All() {
		syncer, ok := h.PlatformX.(interface{ SyncTime(ctx context.Context) error })
		if !ok {
			continue
		}
		if err := syncer.SyncTime(ctx); err != nil {
			log.Printf("[AccountRegistry] time sync failed for %s: %v", h.Tag, err)
			continue
		}
		log.Printf("[AccountRegistry] synced platform-x clock drift for %s", h.Tag)
	}
}

// PickWithCapacity satisfies advertisement.AccountSelector: it round-robins
// over registered handles (ordered by account id) and returns the first
// whose active ad count is under maxSlots, so no single account is
// favored while others sit full.
func (r *Registry) PickWithCapacity(ctx context.Context, maxSlots int, activeCount func(ctx context.Context, accountID int64) (int, error)) (int64, platformx.Client, bool, error) {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i].AccountID < handles[j].AccountID })
	start := r.rrIndex
	r.rrIndex++
	r.mu.Unlock()

	if len(handles) == 0 {
		return 0, nil, false, nil
	}

	for i := 0; i < len(handles); i++ {
		h := handles[(start+i)%len(handles)]
		count, err := activeCount(ctx, h.AccountID)
		if err != nil {
			return 0, nil, false, fmt.Errorf("account registry: count active ads for %s: %w", h.Tag, err)
		}
		if count < maxSlots {
			return h.AccountID, h.PlatformX, true, nil
		}
	}
	return 0, nil, false, nil
}
