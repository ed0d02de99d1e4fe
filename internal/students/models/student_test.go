package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchable(t *testing.T) {
	assert.False(t, Searchable(""))
	assert.False(t, Searchable("a"))
	assert.False(t, Searchable(" a "))
	assert.True(t, Searchable("an"))
	assert.True(t, Searchable("Jõ"))
}

func TestQueryMatches(t *testing.T) {
	ana := Student{ID: "1", FullName: "Ana Beatriz Souza", Grade: "1º Ano", Section: "A", Shift: "Manhã"}

	assert.True(t, NewQuery("beatriz", "Manhã", "").Matches(ana))
	assert.True(t, NewQuery("ANA", "Manhã", "1º Ano").Matches(ana))
	assert.False(t, NewQuery("ana", "Tarde", "").Matches(ana))
	assert.False(t, NewQuery("ana", "Manhã", "2º Ano").Matches(ana))
	assert.False(t, NewQuery("pedro", "Manhã", "").Matches(ana))
}

func TestEffectiveLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, Query{}.EffectiveLimit())
	assert.Equal(t, 3, Query{Limit: 3}.EffectiveLimit())
	assert.Equal(t, DefaultLimit, Query{Limit: 50}.EffectiveLimit())
}
