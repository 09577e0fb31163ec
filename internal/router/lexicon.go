// Package router decides which responder handles a turn. An LLM
// classification runs first; a deterministic keyword lexicon is the
// fallback when the model is slow, down, or off-label.
package router

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Lexicon is the declarative keyword table behind the deterministic
// fallback: per-domain keyword lists, greeting triggers, and tie-breaker
// phrases. Loaded from YAML so coaching domains can be retuned without a
// rebuild.
type Lexicon struct {
	// Domains maps a domain label to the keywords that vote for it.
	Domains map[string][]string `yaml:"domains"`

	// Welcome lists greeting triggers that short-circuit routing.
	Welcome []string `yaml:"welcome"`

	// TieBreakers maps a domain to phrases that decide keyword ties in
	// its favor.
	TieBreakers map[string][]string `yaml:"tie_breakers"`

	// Default is the domain used when no keyword evidence exists.
	Default string `yaml:"default"`
}

// DefaultLexicon is the built-in table used when no lexicon file is
// configured. Spanish-first, matching the coaching audience.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		Domains: map[string][]string{
			"fitness": {
				"entrenar", "entrenamiento", "ejercicio", "ejercicios", "rutina",
				"pesas", "cardio", "musculo", "músculo", "fuerza", "gym",
				"gimnasio", "series", "repeticiones", "sentadilla", "press",
				"correr", "estirar", "workout", "training", "exercise",
			},
			"nutrition": {
				"comer", "comida", "dieta", "nutricion", "nutrición", "proteina",
				"proteína", "calorias", "calorías", "carbohidratos", "grasas",
				"desayuno", "almuerzo", "cena", "receta", "ayuno", "suplemento",
				"vitaminas", "diet", "meal", "nutrition",
			},
		},
		Welcome: []string{
			"hola", "hello", "hi", "hey", "buenas",
			"qué puedes hacer", "que puedes hacer", "ayuda", "help",
		},
		TieBreakers: map[string][]string{
			"nutrition": {"plan de comidas", "qué comer", "que comer", "dieta para"},
			"fitness":   {"plan de entrenamiento", "rutina de", "cómo entrenar", "como entrenar"},
		},
		Default: "fitness",
	}
}

// LoadLexicon reads a lexicon from a YAML file and validates it.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lexicon: %w", err)
	}
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("parsing lexicon: %w", err)
	}
	if err := lex.validate(); err != nil {
		return nil, err
	}
	return &lex, nil
}

func (l *Lexicon) validate() error {
	if len(l.Domains) == 0 {
		return fmt.Errorf("lexicon defines no domains")
	}
	if l.Default == "" {
		return fmt.Errorf("lexicon has no default domain")
	}
	if _, ok := l.Domains[l.Default]; !ok {
		return fmt.Errorf("default domain %q is not in the domain table", l.Default)
	}
	return nil
}

// DomainLabels returns the domain names in no particular order.
func (l *Lexicon) DomainLabels() []string {
	labels := make([]string, 0, len(l.Domains))
	for name := range l.Domains {
		labels = append(labels, name)
	}
	return labels
}

// normalize lowercases text for matching. Accents are kept; the keyword
// lists carry accented and plain variants instead.
func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// tokenize splits normalized text on anything that is not a letter or
// digit, so punctuation around a keyword never hides it.
func tokenize(text string) []string {
	return strings.FieldsFunc(normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Score counts keyword hits for each domain.
func (l *Lexicon) Score(text string) map[string]int {
	tokens := tokenize(text)
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		seen[tok] = struct{}{}
	}

	scores := make(map[string]int, len(l.Domains))
	for domain, keywords := range l.Domains {
		for _, kw := range keywords {
			if _, ok := seen[normalize(kw)]; ok {
				scores[domain]++
			}
		}
	}
	return scores
}

// IsWelcome reports whether the text contains a greeting trigger. Phrase
// triggers match as substrings; single-word triggers match whole tokens
// only, so "hi" never fires inside "hijo".
func (l *Lexicon) IsWelcome(text string) bool {
	norm := normalize(text)
	tokens := make(map[string]struct{})
	for _, tok := range tokenize(text) {
		tokens[tok] = struct{}{}
	}
	for _, trigger := range l.Welcome {
		t := normalize(trigger)
		if strings.ContainsRune(t, ' ') {
			if strings.Contains(norm, t) {
				return true
			}
			continue
		}
		if _, ok := tokens[t]; ok {
			return true
		}
	}
	return false
}

// BreakTie resolves a keyword-score tie among candidates using the
// tie-breaker phrase table. Returns "" when no phrase settles it.
func (l *Lexicon) BreakTie(text string, candidates []string) string {
	norm := normalize(text)
	for _, domain := range candidates {
		for _, phrase := range l.TieBreakers[domain] {
			if strings.Contains(norm, normalize(phrase)) {
				return domain
			}
		}
	}
	return ""
}
