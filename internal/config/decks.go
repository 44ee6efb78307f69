package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
	"gopkg.in/yaml.v3"
)

const DefaultDeckName = "default"

// Catalogue is the ordered list of decks offered when creating a room. The
// built-in default deck is always present and always first.
type Catalogue struct {
	names []string
	decks map[string]domain.Deck
}

type NamedDeck struct {
	Name  string      `json:"name"`
	Cards domain.Deck `json:"cards"`
}

type rawCatalogue struct {
	Decks []struct {
		Name  string `yaml:"name"`
		Cards []struct {
			Value string `yaml:"value"`
			Label string `yaml:"label"`
		} `yaml:"cards"`
	} `yaml:"decks"`
}

func DefaultCatalogue() *Catalogue {
	return &Catalogue{
		names: []string{DefaultDeckName},
		decks: map[string]domain.Deck{DefaultDeckName: domain.DefaultDeck()},
	}
}

// LoadDecks reads a YAML catalogue. An empty path yields the default one.
func LoadDecks(path string) (*Catalogue, error) {
	if path == "" {
		return DefaultCatalogue(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deck catalogue: %w", err)
	}
	return ParseDecks(data)
}

// ParseDecks decodes a catalogue such as
//
//	decks:
//	  - name: tshirt
//	    cards:
//	      - {value: S, label: Small}
//	      - {value: 3, label: 3 Points}
//
// Card values that read as numbers become numeric cards.
func ParseDecks(data []byte) (*Catalogue, error) {
	var raw rawCatalogue
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse deck catalogue: %w", err)
	}

	cat := DefaultCatalogue()
	for _, d := range raw.Decks {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: deck without a name", domain.ErrInvalidDeck)
		}

		deck := make(domain.Deck, 0, len(d.Cards))
		for _, c := range d.Cards {
			deck = append(deck, domain.VotingOption{Value: domain.ParseCardValue(c.Value), Label: c.Label})
		}
		if err := deck.Validate(); err != nil {
			return nil, fmt.Errorf("deck %q: %w", name, err)
		}

		if _, exists := cat.decks[name]; !exists {
			cat.names = append(cat.names, name)
		}
		cat.decks[name] = deck
	}
	return cat, nil
}

func (c *Catalogue) Get(name string) (domain.Deck, bool) {
	deck, ok := c.decks[name]
	if !ok {
		return nil, false
	}
	return append(domain.Deck(nil), deck...), true
}

func (c *Catalogue) Default() domain.Deck {
	deck, _ := c.Get(DefaultDeckName)
	return deck
}

func (c *Catalogue) List() []NamedDeck {
	out := make([]NamedDeck, 0, len(c.names))
	for _, name := range c.names {
		deck, _ := c.Get(name)
		out = append(out, NamedDeck{Name: name, Cards: deck})
	}
	return out
}
