package appstate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/domain"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/kv"
)

// DefaultAuthTimeout ends the splash screen when the auth provider stays
// silent.
const DefaultAuthTimeout = 2500 * time.Millisecond

type Options struct {
	Auth      AuthProvider
	Documents DocumentStore
	KV        kv.Store
	Logger    *slog.Logger

	// AuthTimeout defaults to DefaultAuthTimeout.
	AuthTimeout time.Duration
	Now         func() time.Time
}

// App wires the session manager, the active data path and the mutation
// commands around one Store.
//
// Mutations never return store failures: they are logged and the UI keeps
// showing the last snapshot. Auth commands do return errors, already mapped
// to user-facing messages.
type App struct {
	store       *Store
	auth        AuthProvider
	docs        DocumentStore
	kv          kv.Store
	log         *slog.Logger
	now         func() time.Time
	authTimeout time.Duration

	mu         sync.Mutex
	gen        uint64
	gateway    DataGateway
	cancelData context.CancelFunc
	checked    bool
	failsafe   *time.Timer
	stopAuth   context.CancelFunc
	unwatch    func()
}

func New(opts Options) *App {
	a := &App{
		store:       NewStore(State{Route: RouteSplash}),
		auth:        opts.Auth,
		docs:        opts.Documents,
		kv:          opts.KV,
		log:         opts.Logger,
		now:         opts.Now,
		authTimeout: opts.AuthTimeout,
	}
	if a.kv == nil {
		a.kv = kv.NewMemory()
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.authTimeout <= 0 {
		a.authTimeout = DefaultAuthTimeout
	}
	a.unwatch = a.store.Watch(a.persistSelection)
	return a
}

// Store exposes the state container for rendering.
func (a *App) Store() *Store { return a.store }

// Snapshot is shorthand for Store().Snapshot().
func (a *App) Snapshot() State { return a.store.Snapshot() }

// Start restores demo mode, arms the splash failsafe and begins observing
// the auth provider until ctx ends or Close is called.
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	if a.demoFlag() {
		a.installDemoLocked("")
	}
	a.failsafe = time.AfterFunc(a.authTimeout, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if !a.checked {
			a.log.Warn("auth provider did not answer, leaving splash", "timeout", a.authTimeout)
			a.store.Dispatch(authChecked{})
		}
	})
	authCtx, cancel := context.WithCancel(ctx)
	a.stopAuth = cancel
	a.mu.Unlock()

	if a.auth != nil {
		a.auth.Watch(authCtx, a.onAuth)
	}
}

// Close stops observing auth and tears the data path down.
func (a *App) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failsafe != nil {
		a.failsafe.Stop()
	}
	if a.stopAuth != nil {
		a.stopAuth()
		a.stopAuth = nil
	}
	a.teardownLocked()
	if a.unwatch != nil {
		a.unwatch()
		a.unwatch = nil
	}
}

func (a *App) onAuth(sess *domain.Session) {
	if subscribe := a.applyAuth(sess); subscribe != nil {
		subscribe()
	}
}

// applyAuth records the new principal. For a new session it returns the
// step that opens its subscriptions, which must run without a.mu: opening
// a stream may refresh the session and report back through onAuth.
func (a *App) applyAuth(sess *domain.Session) func() {
	a.mu.Lock()
	defer a.mu.Unlock()

	first := !a.checked
	a.checked = true
	if a.failsafe != nil {
		a.failsafe.Stop()
	}

	if sess != nil {
		return a.establishLocked(*sess)
	}

	gen := a.gen
	if _, remote := a.gateway.(*RemoteGateway); remote {
		a.teardownLocked()
		gen = a.nextGenLocked()
	}

	route := RouteLogin
	if a.store.Snapshot().DemoMode {
		// The sign-out that EnterDemo triggers lands here; the trial keeps
		// its screen instead of falling back to login.
		route = ""
		if first {
			route = RouteWelcome
		}
	}
	a.store.Dispatch(sessionEnded{route: route, gen: gen})
	return nil
}

// establishLocked switches to the remote data path of sess and returns the
// subscription step. A principal that is already subscribed keeps its
// subscriptions.
func (a *App) establishLocked(sess domain.Session) func() {
	if _, remote := a.gateway.(*RemoteGateway); remote && a.store.Snapshot().UID() == sess.UID {
		a.store.Dispatch(sessionStarted{session: sess, gen: a.gen})
		return nil
	}

	a.teardownLocked()
	if err := a.kv.Delete(kv.KeyDemoMode); err != nil {
		a.log.Warn("failed to clear demo flag", "error", err)
	}
	gen := a.nextGenLocked()
	a.store.Dispatch(sessionStarted{session: sess, gen: gen})

	if a.docs == nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	gw := NewRemoteGateway(a.docs, a.log)
	a.gateway, a.cancelData = gw, cancel
	return func() { a.subscribe(ctx, gw, sess.UID, gen) }
}

// subscribe opens the subscriptions of data path gen. A failure ends the
// session unless another path has replaced it meanwhile.
func (a *App) subscribe(ctx context.Context, gw *RemoteGateway, uid string, gen uint64) {
	err := gw.Subscribe(ctx, &sink{app: a, gen: gen})
	if err == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gen != gen {
		a.log.Debug("subscription setup of a replaced session failed", "uid", uid, "error", err)
		return
	}
	a.log.Error("subscription setup failed, ending session", "uid", uid, "error", err)
	a.teardownLocked()
	a.store.Dispatch(sessionEnded{route: RouteLogin, gen: a.nextGenLocked()})
}

// installDemoLocked replaces the data path with a fresh shadow store.
func (a *App) installDemoLocked(route Route) {
	a.teardownLocked()
	gen := a.nextGenLocked()
	a.store.Dispatch(demoChanged{enabled: true, route: route, gen: gen})

	ctx, cancel := context.WithCancel(context.Background())
	gw := NewInMemoryGateway(a.now)
	a.gateway, a.cancelData = gw, cancel
	// The shadow store never fails to subscribe.
	_ = gw.Subscribe(ctx, &sink{app: a, gen: gen})
}

func (a *App) teardownLocked() {
	if a.cancelData != nil {
		a.cancelData()
	}
	a.gateway, a.cancelData = nil, nil
}

func (a *App) nextGenLocked() uint64 {
	a.gen++
	return a.gen
}

func (a *App) demoFlag() bool {
	v, err := a.kv.Get(kv.KeyDemoMode)
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		a.log.Warn("failed to read demo flag", "error", err)
	}
	return v == "true"
}

// EnterDemo switches to the shadow store with empty data and signs out any
// real session. The choice survives restarts.
func (a *App) EnterDemo(ctx context.Context) {
	a.mu.Lock()
	signedIn := a.store.Snapshot().SignedIn()
	if err := a.kv.Set(kv.KeyDemoMode, "true"); err != nil {
		a.log.Warn("failed to persist demo flag", "error", err)
	}
	a.installDemoLocked(RouteHome)
	a.mu.Unlock()

	if signedIn && a.auth != nil {
		if err := a.auth.SignOut(ctx); err != nil {
			a.log.Warn("sign out on demo entry failed", "error", err)
		}
	}
}

// ExitDemo discards the shadow store and returns to sign-in.
func (a *App) ExitDemo() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.kv.Delete(kv.KeyDemoMode); err != nil {
		a.log.Warn("failed to clear demo flag", "error", err)
	}
	a.teardownLocked()
	route := Route("")
	if !a.store.Snapshot().SignedIn() {
		route = RouteLogin
	}
	a.store.Dispatch(demoChanged{enabled: false, route: route, gen: a.nextGenLocked()})
}

func (a *App) currentGateway() DataGateway {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gateway
}

// sink routes one data path's snapshots into the store. Snapshots of a
// path that has since been replaced are dropped by the reducer.
type sink struct {
	app *App
	gen uint64
}

func (s *sink) dispatch(a Action) State {
	return s.app.store.Dispatch(scoped{gen: s.gen, action: a})
}

func (s *sink) Members(m []domain.FamilyMember) {
	st := s.dispatch(membersReplaced{members: m})
	s.app.restoreSelection(st, s.gen)
}

func (s *sink) Favorites(r []domain.Recipe) { s.dispatch(favoritesReplaced{favorites: r}) }
func (s *sink) History(r []domain.Recipe) { s.dispatch(historyReplaced{history: r}) }
func (s *sink) Shopping(i []domain.ShoppingItem) { s.dispatch(shoppingReplaced{items: i}) }
func (s *sink) Pantry(p []string) { s.dispatch(pantryReplaced{items: p}) }
func (s *sink) Profile(p domain.Profile) { s.dispatch(profileChanged{profile: p}) }

// restoreSelection adopts the cached selection of the signed-in principal
// once its members are known. Unreadable entries are discarded.
func (a *App) restoreSelection(st State, gen uint64) {
	if st.gen != gen || !st.SignedIn() || st.ActiveProfiles != nil || len(st.Members) == 0 {
		return
	}
	key := kv.ActiveProfilesKey(st.UID())
	raw, err := a.kv.Get(key)
	if errors.Is(err, kv.ErrNotFound) {
		return
	}
	if err != nil {
		a.log.Warn("failed to read profile selection", "error", err)
		return
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		a.log.Warn("discarding malformed profile selection", "uid", st.UID(), "error", err)
		if err := a.kv.Delete(key); err != nil {
			a.log.Warn("failed to delete profile selection", "error", err)
		}
		return
	}
	a.store.Dispatch(scoped{gen: gen, action: selectionRestored{ids: ids}})
}

// persistSelection writes the selection of a real session whenever it
// changes. Demo selections are never stored.
func (a *App) persistSelection(prev, next State) {
	if !next.SignedIn() || next.ActiveProfiles == nil {
		return
	}
	if prev.UID() == next.UID() && prev.ActiveProfiles != nil && slices.Equal(prev.ActiveProfiles, next.ActiveProfiles) {
		return
	}
	raw, err := json.Marshal(next.ActiveProfiles)
	if err != nil {
		return
	}
	if err := a.kv.Set(kv.ActiveProfilesKey(next.UID()), string(raw)); err != nil {
		a.log.Warn("failed to persist profile selection", "error", err)
	}
}

// mutate runs fn against the current data path and logs its failure.
func (a *App) mutate(op string, fn func(DataGateway) error) {
	gw := a.currentGateway()
	if gw == nil {
		a.log.Debug("mutation without data path ignored", "op", op)
		return
	}
	if err := fn(gw); err != nil {
		a.log.Error("mutation failed", "op", op, "error", err)
	}
}

// SaveMember creates or updates a family member.
func (a *App) SaveMember(ctx context.Context, m domain.FamilyMember) {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return
	}
	a.mutate("save_member", func(gw DataGateway) error { return gw.SaveMember(ctx, m) })
}

// ToggleFavorite removes r from the favorites when it is there and adds it
// otherwise.
func (a *App) ToggleFavorite(ctx context.Context, r domain.Recipe) {
	if fav, ok := domain.FindFavorite(a.store.Snapshot().Favorites, r); ok {
		a.mutate("remove_favorite", func(gw DataGateway) error { return gw.RemoveFavorite(ctx, fav.FavoriteID) })
		return
	}
	a.mutate("add_favorite", func(gw DataGateway) error { return gw.AddFavorite(ctx, r) })
}

// FinishCooking records r in the history with the current time.
func (a *App) FinishCooking(ctx context.Context, r domain.Recipe) {
	now := a.now()
	r.CompletedAt = &now
	a.mutate("append_history", func(gw DataGateway) error { return gw.AppendHistory(ctx, r) })
}

// RateRecipe rates the recipe on screen. The stored rating is only updated
// when that recipe is a favorite; rating never favorites it.
func (a *App) RateRecipe(ctx context.Context, rating int) {
	st := a.store.Dispatch(CurrentRecipeRated{Rating: rating})
	if st.CurrentRecipe == nil {
		return
	}
	fav, ok := domain.FindFavorite(st.Favorites, *st.CurrentRecipe)
	if !ok {
		return
	}
	a.mutate("rate_favorite", func(gw DataGateway) error { return gw.RateFavorite(ctx, fav.FavoriteID, rating) })
}

// AddShoppingItem adds an unchecked item. A bare number becomes "Nx".
func (a *App) AddShoppingItem(ctx context.Context, name, quantity string) {
	item := domain.ShoppingItem{
		Name:     strings.TrimSpace(name),
		Quantity: domain.FormatQuantity(quantity),
	}
	if item.Name == "" {
		return
	}
	a.mutate("add_shopping_item", func(gw DataGateway) error { return gw.AddShoppingItem(ctx, item) })
}

func (a *App) ToggleShoppingItem(ctx context.Context, id string) {
	item, ok := a.shoppingItem(id)
	if !ok {
		return
	}
	item.Checked = !item.Checked
	a.mutate("toggle_shopping_item", func(gw DataGateway) error { return gw.UpdateShoppingItem(ctx, item) })
}

func (a *App) EditShoppingItem(ctx context.Context, id, name, quantity string) {
	item, ok := a.shoppingItem(id)
	if !ok {
		return
	}
	if name = strings.TrimSpace(name); name != "" {
		item.Name = name
	}
	if strings.TrimSpace(quantity) != "" {
		item.Quantity = domain.FormatQuantity(quantity)
	}
	a.mutate("edit_shopping_item", func(gw DataGateway) error { return gw.UpdateShoppingItem(ctx, item) })
}

func (a *App) RemoveShoppingItem(ctx context.Context, id string) {
	a.mutate("remove_shopping_item", func(gw DataGateway) error { return gw.RemoveShoppingItem(ctx, id) })
}

// ClearShoppingList deletes every item concurrently and returns once all
// deletions have settled.
func (a *App) ClearShoppingList(ctx context.Context) {
	gw := a.currentGateway()
	if gw == nil {
		return
	}
	var g errgroup.Group
	for _, item := range a.store.Snapshot().Shopping {
		id := item.ID
		g.Go(func() error {
			if err := gw.RemoveShoppingItem(ctx, id); err != nil {
				a.log.Error("mutation failed", "op", "clear_shopping_list", "item_id", id, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// AddMissingToShopping puts the missing ingredients of r on the shopping
// list, skipping names already there. It returns how many were added.
func (a *App) AddMissingToShopping(ctx context.Context, r domain.Recipe) int {
	existing := a.store.Snapshot().Shopping
	added := 0
	for _, line := range r.MissingIngredients {
		name, quantity := domain.ParseIngredientLine(line)
		if name == "" {
			continue
		}
		dup := slices.ContainsFunc(existing, func(it domain.ShoppingItem) bool { return strings.EqualFold(it.Name, name) })
		if dup {
			continue
		}
		item := domain.ShoppingItem{Name: name, Quantity: domain.FormatQuantity(quantity)}
		existing = append(existing, item)
		a.mutate("add_shopping_item", func(gw DataGateway) error { return gw.AddShoppingItem(ctx, item) })
		added++
	}
	return added
}

func (a *App) shoppingItem(id string) (domain.ShoppingItem, bool) {
	items := a.store.Snapshot().Shopping
	i := slices.IndexFunc(items, func(it domain.ShoppingItem) bool { return it.ID == id })
	if i < 0 {
		return domain.ShoppingItem{}, false
	}
	return items[i], true
}

// AddPantryItem writes the pantry set with name added.
func (a *App) AddPantryItem(ctx context.Context, name string) {
	name = strings.TrimSpace(name)
	pantry := a.store.Snapshot().Pantry
	if name == "" || slices.ContainsFunc(pantry, func(p string) bool { return strings.EqualFold(p, name) }) {
		return
	}
	items := append(slices.Clone(pantry), name)
	a.mutate("set_pantry", func(gw DataGateway) error { return gw.SetPantry(ctx, items) })
}

// RemovePantryItem writes the pantry set without name.
func (a *App) RemovePantryItem(ctx context.Context, name string) {
	pantry := a.store.Snapshot().Pantry
	items := slices.DeleteFunc(slices.Clone(pantry), func(p string) bool { return strings.EqualFold(p, name) })
	if len(items) == len(pantry) {
		return
	}
	a.mutate("set_pantry", func(gw DataGateway) error { return gw.SetPantry(ctx, items) })
}

// ToggleActiveProfile adds or removes one member from the selection.
func (a *App) ToggleActiveProfile(id string) {
	ids := a.store.Snapshot().ActiveProfiles
	if i := slices.Index(ids, id); i >= 0 {
		ids = slices.Delete(ids, i, i+1)
	} else {
		ids = append(ids, id)
	}
	a.store.Dispatch(SelectionSet{IDs: ids})
}

// SelectAllProfiles selects every known member.
func (a *App) SelectAllProfiles() {
	a.store.Dispatch(SelectionSet{IDs: a.store.Snapshot().MemberIDs()})
}

func (a *App) SelectRecipe(r *domain.Recipe) { a.store.Dispatch(RecipeSelected{Recipe: r}) }

func (a *App) Navigate(r Route) { a.store.Dispatch(Navigated{Route: r}) }

// SignIn authenticates with email and password and remembers the email
// for the next sign-in form. The session itself arrives through the
// provider's watch.
func (a *App) SignIn(ctx context.Context, email, password string) error {
	if err := a.auth.SignIn(ctx, strings.TrimSpace(email), password); err != nil {
		return AsAuthError(err)
	}
	if err := a.kv.Set(kv.KeyRememberedEmail, strings.TrimSpace(email)); err != nil {
		a.log.Warn("failed to remember email", "error", err)
	}
	return nil
}

func (a *App) Register(ctx context.Context, email, password, displayName string) error {
	if err := a.auth.Register(ctx, strings.TrimSpace(email), password, strings.TrimSpace(displayName)); err != nil {
		return AsAuthError(err)
	}
	return nil
}

func (a *App) SignOut(ctx context.Context) error {
	if err := a.auth.SignOut(ctx); err != nil {
		return AsAuthError(err)
	}
	return nil
}

func (a *App) ResetPassword(ctx context.Context, email string) error {
	if err := a.auth.SendPasswordReset(ctx, strings.TrimSpace(email)); err != nil {
		return AsAuthError(err)
	}
	return nil
}

// RememberedEmail is the last email that signed in successfully.
func (a *App) RememberedEmail() string {
	v, _ := a.kv.Get(kv.KeyRememberedEmail)
	return v
}
