package domain

import (
	"fmt"
	"strings"
)

type VotingOption struct {
	Value CardValue `json:"value"`
	Label string    `json:"label"`
}

// Deck is the ordered set of cards a room votes with.
type Deck []VotingOption

var DefaultEmojis = []string{"🦊", "🐼", "🐯", "🦁", "🐸", "🦄", "🐙", "🦋", "😍", "😱", "😡", "🤢"}

func DefaultDeck() Deck {
	return Deck{
		{Value: StringValue("☕"), Label: "Coffee Break"},
		{Value: NumberValue(1), Label: "1 Point"},
		{Value: NumberValue(2), Label: "2 Points"},
		{Value: NumberValue(3), Label: "3 Points"},
		{Value: NumberValue(5), Label: "5 Points"},
		{Value: NumberValue(8), Label: "8 Points"},
		{Value: NumberValue(13), Label: "13 Points"},
	}
}

func (d Deck) Validate() error {
	if len(d) == 0 {
		return fmt.Errorf("%w: at least one card is required", ErrInvalidDeck)
	}

	seen := make(map[string]struct{}, len(d))
	for i, opt := range d {
		key := opt.Value.Key()
		if key == "" {
			return fmt.Errorf("%w: card %d has an empty value", ErrInvalidDeck, i)
		}
		if strings.TrimSpace(opt.Label) == "" {
			return fmt.Errorf("%w: card %q has no label", ErrInvalidDeck, key)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate card %q", ErrInvalidDeck, key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func (d Deck) Contains(v CardValue) bool {
	for _, opt := range d {
		if opt.Value.Equal(v) {
			return true
		}
	}
	return false
}

// WithCustomOption appends a card built from raw form input.
func (d Deck) WithCustomOption(value, label string) (Deck, error) {
	if value == "" || label == "" {
		return d, fmt.Errorf("%w: custom card needs a value and a label", ErrInvalidDeck)
	}
	next := append(Deck{}, d...)
	next = append(next, VotingOption{Value: ParseCardValue(value), Label: label})
	if err := next.Validate(); err != nil {
		return d, err
	}
	return next, nil
}

func (d Deck) Without(index int) Deck {
	if index < 0 || index >= len(d) {
		return d
	}
	next := make(Deck, 0, len(d)-1)
	next = append(next, d[:index]...)
	return append(next, d[index+1:]...)
}
