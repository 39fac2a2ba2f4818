package cards

// Supply holds the two independent decks of a session.
type Supply struct {
	Prompts *Deck
	Answers *Deck
}

func NewSupply(c Catalog, rng Rand) *Supply {
	return &Supply{
		Prompts: NewDeck(KindPrompt, c.Prompts, rng),
		Answers: NewDeck(KindAnswer, c.Answers, rng),
	}
}

// For returns the deck holding cards of kind k.
func (s *Supply) For(k Kind) *Deck {
	if k == KindPrompt {
		return s.Prompts
	}
	return s.Answers
}
