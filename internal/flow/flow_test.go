package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The confirm vocabulary is a closed set; near-synonyms must reprompt
// instead of silently confirming.
func TestConfirmVocabulary(t *testing.T) {
	for _, word := range []string{"evet", "yes", "e", "ok", "tamam", "onay", "onayla"} {
		assert.True(t, affirmative(word), word)
	}
	for _, word := range []string{"olur", "olsun", "yep", "evet lutfen", ""} {
		assert.False(t, affirmative(word), word)
	}
	for _, word := range []string{"hayir", "hayır", "no", "h"} {
		assert.True(t, negative(word), word)
	}
	for _, word := range []string{"yok", "istemiyorum", ""} {
		assert.False(t, negative(word), word)
	}
}
