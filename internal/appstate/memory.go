package appstate

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/domain"
)

var _ DataGateway = (*InMemoryGateway)(nil)

// InMemoryGateway is the demo-mode shadow store. Every write changes the
// local copy and pushes the new snapshot to the sink before returning. It
// never talks to the network and its data dies with it.
//
// The sink is called with the gateway locked so snapshots arrive in write
// order; it must not call back into the gateway.
type InMemoryGateway struct {
	now func() time.Time

	mu        sync.Mutex
	sink      Sink
	lastID    string
	seq       int
	members   []domain.FamilyMember
	favorites []domain.Recipe
	history   []domain.Recipe
	shopping  []domain.ShoppingItem
	pantry    []string
}

func NewInMemoryGateway(now func() time.Time) *InMemoryGateway {
	if now == nil {
		now = time.Now
	}
	return &InMemoryGateway{now: now}
}

// Subscribe emits the current snapshots and keeps sink for later writes
// until ctx ends.
func (g *InMemoryGateway) Subscribe(ctx context.Context, sink Sink) error {
	g.mu.Lock()
	g.sink = sink
	sink.Members(g.membersCopy())
	sink.Favorites(slices.Clone(g.favorites))
	sink.History(slices.Clone(g.history))
	sink.Shopping(slices.Clone(g.shopping))
	sink.Pantry(slices.Clone(g.pantry))
	sink.Profile(domain.Profile{})
	g.mu.Unlock()

	go func() {
		<-ctx.Done()
		g.mu.Lock()
		if g.sink == sink {
			g.sink = nil
		}
		g.mu.Unlock()
	}()
	return nil
}

// SaveMember replaces the member with the same id or appends it under a
// fresh local id.
func (g *InMemoryGateway) SaveMember(_ context.Context, m domain.FamilyMember) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := slices.IndexFunc(g.members, func(x domain.FamilyMember) bool { return x.ID == m.ID })
	if i >= 0 && m.ID != "" {
		g.members = slices.Clone(g.members)
		g.members[i] = m
	} else {
		if m.ID != domain.PrimaryMemberID {
			m.ID = g.nextID()
		}
		g.members = append(slices.Clip(g.members), m)
	}
	if g.sink != nil {
		g.sink.Members(g.membersCopy())
	}
	return nil
}

func (g *InMemoryGateway) AddFavorite(_ context.Context, r domain.Recipe) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r.Image == "" {
		r.Image = domain.FallbackImageURL(r.Title)
	}
	r.Key = r.IdentityKey()
	r.FavoriteID = g.nextID()
	g.favorites = append(slices.Clip(g.favorites), r)
	g.emitFavorites()
	return nil
}

func (g *InMemoryGateway) RemoveFavorite(_ context.Context, favoriteID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.favorites = slices.DeleteFunc(slices.Clone(g.favorites), func(r domain.Recipe) bool { return r.FavoriteID == favoriteID })
	g.emitFavorites()
	return nil
}

func (g *InMemoryGateway) RateFavorite(_ context.Context, favoriteID string, rating int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.favorites = slices.Clone(g.favorites)
	for i := range g.favorites {
		if g.favorites[i].FavoriteID == favoriteID {
			g.favorites[i].Rating = rating
		}
	}
	g.emitFavorites()
	return nil
}

func (g *InMemoryGateway) AppendHistory(_ context.Context, r domain.Recipe) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	r.FavoriteID = ""
	g.history = append(slices.Clip(g.history), r)
	if g.sink != nil {
		g.sink.History(slices.Clone(g.history))
	}
	return nil
}

func (g *InMemoryGateway) AddShoppingItem(_ context.Context, item domain.ShoppingItem) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	item.ID = g.nextID()
	g.shopping = append(slices.Clip(g.shopping), item)
	g.emitShopping()
	return nil
}

func (g *InMemoryGateway) UpdateShoppingItem(_ context.Context, item domain.ShoppingItem) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.shopping = slices.Clone(g.shopping)
	for i := range g.shopping {
		if g.shopping[i].ID == item.ID {
			g.shopping[i] = item
		}
	}
	g.emitShopping()
	return nil
}

func (g *InMemoryGateway) RemoveShoppingItem(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.shopping = slices.DeleteFunc(slices.Clone(g.shopping), func(it domain.ShoppingItem) bool { return it.ID == id })
	g.emitShopping()
	return nil
}

func (g *InMemoryGateway) SetPantry(_ context.Context, items []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pantry = append([]string{}, items...)
	if g.sink != nil {
		g.sink.Pantry(slices.Clone(g.pantry))
	}
	return nil
}

// nextID returns a timestamp id, suffixed when two writes share a
// millisecond.
func (g *InMemoryGateway) nextID() string {
	id := domain.LocalID(g.now())
	if id == g.lastID {
		g.seq++
		return id + "-" + strconv.Itoa(g.seq)
	}
	g.lastID, g.seq = id, 0
	return id
}

func (g *InMemoryGateway) membersCopy() []domain.FamilyMember {
	out := make([]domain.FamilyMember, len(g.members))
	for i, m := range g.members {
		m.Restrictions = slices.Clone(m.Restrictions)
		out[i] = m
	}
	return out
}

func (g *InMemoryGateway) emitFavorites() {
	if g.sink != nil {
		g.sink.Favorites(cloneRecipes(g.favorites))
	}
}

func (g *InMemoryGateway) emitShopping() {
	if g.sink != nil {
		g.sink.Shopping(slices.Clone(g.shopping))
	}
}
