package router

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLexiconYAML = `
domains:
  fitness: [entrenar, rutina, pesas]
  nutrition: [dieta, proteina, calorias]
  sleep: [dormir, sueño, descanso]
welcome: [hola, hi, ayuda]
tie_breakers:
  sleep: ["antes de dormir"]
default: fitness
`

func writeLexicon(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadLexicon(t *testing.T) {
	lex, err := LoadLexicon(writeLexicon(t, testLexiconYAML))
	require.NoError(t, err)

	assert.Len(t, lex.Domains, 3)
	assert.Equal(t, "fitness", lex.Default)
	assert.ElementsMatch(t, []string{"fitness", "nutrition", "sleep"}, lex.DomainLabels())
}

func TestLoadLexiconMissingFile(t *testing.T) {
	_, err := LoadLexicon(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadLexiconRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"no domains":      "welcome: [hola]\ndefault: fitness\n",
		"no default":      "domains:\n  fitness: [pesas]\n",
		"unknown default": "domains:\n  fitness: [pesas]\ndefault: cooking\n",
		"bad yaml":        "domains: [not: a map",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadLexicon(writeLexicon(t, body))
			assert.Error(t, err)
		})
	}
}

func TestScoreIgnoresPunctuationAndCase(t *testing.T) {
	lex := DefaultLexicon()
	scores := lex.Score("¿RUTINA? ¡Pesas! (cardio)...")
	assert.Equal(t, 3, scores["fitness"])
	assert.Zero(t, scores["nutrition"])
}

func TestScoreMatchesWholeTokensOnly(t *testing.T) {
	lex := DefaultLexicon()
	// "dietario" must not count as "dieta".
	scores := lex.Score("un texto dietario cualquiera")
	assert.Zero(t, scores["nutrition"])
}

func TestIsWelcome(t *testing.T) {
	lex := DefaultLexicon()

	assert.True(t, lex.IsWelcome("Hola"))
	assert.True(t, lex.IsWelcome("hola, ¿qué puedes hacer?"))
	assert.True(t, lex.IsWelcome("HELP"))
	assert.False(t, lex.IsWelcome("mi hijo entrena conmigo"), "hi inside a word is not a greeting")
	assert.False(t, lex.IsWelcome("quiero una rutina"))
}

func TestBreakTie(t *testing.T) {
	lex, err := LoadLexicon(writeLexicon(t, testLexiconYAML))
	require.NoError(t, err)

	winner := lex.BreakTie("qué hago antes de dormir", []string{"fitness", "sleep"})
	assert.Equal(t, "sleep", winner)

	assert.Empty(t, lex.BreakTie("sin frase decisiva", []string{"fitness", "sleep"}))
}
