package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbolRegistry_ReplaceDiffs(t *testing.T) {
	r := New([]string{"BTCUSDT", "ETHUSDT"})

	added, removed := r.Replace([]string{"ETHUSDT", "SOLUSDT"})
	assert.Equal(t, []string{"SOLUSDT"}, added)
	assert.Equal(t, []string{"BTCUSDT"}, removed)
	assert.ElementsMatch(t, []string{"ETHUSDT", "SOLUSDT"}, r.GetAll())
}

func TestSymbolRegistry_ReplaceNoChange(t *testing.T) {
	r := New([]string{"BTCUSDT"})
	added, removed := r.Replace([]string{"BTCUSDT"})
	assert.Empty(t, added)
	assert.Empty(t, removed)
}
