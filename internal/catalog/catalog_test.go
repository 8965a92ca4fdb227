package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
items:
  - key: minecraft:diamond
    max_stack: 64
    sell_price: 100
    buy_price: 250
    category: ores
  - key: minecraft:ender_pearl
    max_stack: 16
    sell_price: 20
    category: mob_drops
  - key: Minecraft:Bread
    buy_price: 5
    category: food
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"minecraft:bread", "minecraft:diamond", "minecraft:ender_pearl"}, c.Keys())
	assert.Equal(t, []string{"food", "mob_drops", "ores"}, c.Categories())

	d, ok := c.Resolve("MINECRAFT:DIAMOND")
	require.True(t, ok)
	assert.Equal(t, int64(100), d.SellPrice)
	assert.Equal(t, 64, d.StackSize())

	bread, ok := c.Resolve("minecraft:bread")
	require.True(t, ok)
	assert.Equal(t, 64, bread.StackSize(), "unset stack size falls back to the default")

	_, ok = c.Resolve("minecraft:bedrock")
	assert.False(t, ok)

	ores := c.Items("ores")
	require.Len(t, ores, 1)
	assert.Equal(t, "minecraft:diamond", ores[0].Key)
}

func TestParseRejectsBadEntries(t *testing.T) {
	tests := map[string]string{
		"missing key": "items:\n  - sell_price: 1\n",
		"duplicate":   "items:\n  - key: a\n  - key: A\n",
		"negative":    "items:\n  - key: a\n    sell_price: -1\n",
		"bad yaml":    "items: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	empty, err := Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())

	path := filepath.Join(dir, "items.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())
}
