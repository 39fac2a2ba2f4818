package cards

import "fmt"

type Kind string

const (
	KindPrompt Kind = "prompt"
	KindAnswer Kind = "answer"
)

// Card is immutable once a deck has assigned its id.
type Card struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

// Rand is the random source used for shuffling and automatic choices.
// *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// Shuffle permutes s in place with Fisher-Yates.
func Shuffle[T any](rng Rand, s []T) {
	for i := len(s) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}

// Deck is a draw pile plus a discard pile for one kind of card.
type Deck struct {
	kind    Kind
	draw    []Card
	discard []Card
	rng     Rand
}

// NewDeck assigns ids of the form "<kind>_<index>" and shuffles the draw pile.
func NewDeck(kind Kind, entries []Entry, rng Rand) *Deck {
	d := &Deck{kind: kind, rng: rng, draw: make([]Card, 0, len(entries))}
	for i, e := range entries {
		d.draw = append(d.draw, Card{ID: fmt.Sprintf("%s_%d", kind, i), Kind: kind, Text: e.Text})
	}
	Shuffle(d.rng, d.draw)
	return d
}

func (d *Deck) Kind() Kind { return d.kind }

// Draw takes up to n cards from the top of the draw pile, reshuffling the
// discard pile in when the draw pile runs out. Fewer than n cards come back
// only when both piles are empty.
func (d *Deck) Draw(n int) []Card {
	out := make([]Card, 0, n)
	for len(out) < n {
		c, ok := d.DrawOne()
		if !ok {
			break
		}
		out = append(out, c)
	}
	return out
}

func (d *Deck) DrawOne() (Card, bool) {
	if len(d.draw) == 0 {
		d.reshuffle()
	}
	if len(d.draw) == 0 {
		return Card{}, false
	}
	c := d.draw[0]
	d.draw = d.draw[1:]
	return c, true
}

// Discard appends cards to the discard pile. Cards of another kind are
// ignored so a deck never absorbs foreign cards.
func (d *Deck) Discard(cards ...Card) {
	for _, c := range cards {
		if c.Kind != d.kind {
			continue
		}
		d.discard = append(d.discard, c)
	}
}

func (d *Deck) reshuffle() {
	if len(d.discard) == 0 {
		return
	}
	d.draw = append(d.draw, d.discard...)
	d.discard = nil
	Shuffle(d.rng, d.draw)
}

// Remaining is the size of the draw pile.
func (d *Deck) Remaining() int { return len(d.draw) }

// Discarded is the size of the discard pile.
func (d *Deck) Discarded() int { return len(d.discard) }
