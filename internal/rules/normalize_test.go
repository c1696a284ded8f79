package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase", "GASOLINA", "gasolina"},
		{"accents stripped", "Electricidád y teléfono", "electricidad y telefono"},
		{"enye stripped", "diseño", "diseno"},
		{"punctuation to space", "luz,agua;gas", "luz agua gas"},
		{"whitespace collapsed", "  menu   del   dia  ", "menu del dia"},
		{"mixed", "Consultoría (IT) - Factura num. 3", "consultoria it factura num 3"},
		{"empty", "", ""},
		{"only punctuation", "--- ;;;", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestMatchKeyword(t *testing.T) {
	keywords := []string{"pan", "leche", "libro"}

	t.Run("first match wins in keyword order", func(t *testing.T) {
		// Text contains both "leche" and "pan"; "pan" is listed first.
		assert.Equal(t, "pan", MatchKeyword("leche y pan integral", keywords))
	})

	t.Run("accented text matches plain keyword", func(t *testing.T) {
		assert.Equal(t, "libro", MatchKeyword("LIBRO técnico", keywords))
	})

	t.Run("substring of a word still matches", func(t *testing.T) {
		// Substring semantics: "pan" is inside "panaderia".
		assert.Equal(t, "pan", MatchKeyword("panaderia", keywords))
	})

	t.Run("no match", func(t *testing.T) {
		assert.Equal(t, "", MatchKeyword("gasolina", keywords))
	})

	t.Run("empty text", func(t *testing.T) {
		assert.Equal(t, "", MatchKeyword("   ", keywords))
	})
}
