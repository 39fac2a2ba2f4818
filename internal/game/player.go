package game

import "github.com/kiliankoe/promptparty/internal/cards"

type Player struct {
	ID     string
	Name   string
	Role   Role
	Points int
	Hand   []cards.Card
}

// deckKind is the kind of card a player holds in their current role.
func (p *Player) deckKind() cards.Kind {
	if p.Role == RoleJudge {
		return cards.KindPrompt
	}
	return cards.KindAnswer
}

// takeCard removes cardID from the hand, keeping the order of the rest.
func (p *Player) takeCard(cardID string) (cards.Card, bool) {
	for i, c := range p.Hand {
		if c.ID == cardID {
			p.Hand = append(p.Hand[:i:i], p.Hand[i+1:]...)
			return c, true
		}
	}
	return cards.Card{}, false
}

func (p *Player) public(submitted bool) PublicPlayer {
	return PublicPlayer{
		ID:           p.ID,
		Name:         p.Name,
		Role:         p.Role,
		Points:       p.Points,
		HasSubmitted: submitted,
	}
}

// registry keeps players in insertion order, which is also the judge
// rotation order.
type registry struct {
	order []string
	byID  map[string]*Player
}

func newRegistry() *registry {
	return &registry{byID: make(map[string]*Player)}
}

func (r *registry) add(p *Player) {
	r.order = append(r.order, p.ID)
	r.byID[p.ID] = p
}

// remove deletes id and returns the position it held, or -1.
func (r *registry) remove(id string) int {
	pos := r.indexOf(id)
	if pos < 0 {
		return -1
	}
	r.order = append(r.order[:pos:pos], r.order[pos+1:]...)
	delete(r.byID, id)
	return pos
}

func (r *registry) get(id string) *Player { return r.byID[id] }

func (r *registry) len() int { return len(r.order) }

func (r *registry) indexOf(id string) int {
	for i, pid := range r.order {
		if pid == id {
			return i
		}
	}
	return -1
}

func (r *registry) at(i int) *Player { return r.byID[r.order[i]] }

// all returns the players in rotation order.
func (r *registry) all() []*Player {
	out := make([]*Player, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

func (r *registry) countRole(role Role) int {
	n := 0
	for _, p := range r.byID {
		if p.Role == role {
			n++
		}
	}
	return n
}
