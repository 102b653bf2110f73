package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioCatalog() []Item {
	return []Item{
		{Name: "Аваланж"},
		{Name: "Ред Наоми"},
		{Name: "Пинк Флойд"},
	}
}

func names(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Аваланж", want: "аваланж"},
		{in: "  Роза   «Аваланж» ", want: "аваланж"},
		{in: `"Ред" (Наоми)`, want: "ред наоми"},
		{in: "РОЗЫ сорта [Пинк Флойд]", want: "пинк флойд"},
		{in: "Ёлка", want: "елка"},
		{in: "роза", want: ""},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	samples := []string{
		"Аваланж", "  Роза   «Аваланж» ", `"Ред" (Наоми)`, "РОЗЫ сорта [Пинк Флойд]",
		"Rose ROSES Rosa", "ёЁ", "\tтабы\nи\r\nпереводы", "'''", "роза роза аваланж роза",
		"Mixed Case «Ёжик» {в} <тумане>",
	}

	for _, s := range samples {
		once := Normalize(s)
		assert.Equal(t, once, Normalize(once), "input %q", s)
	}
}

func TestSubstringScenarios(t *testing.T) {
	m := NewMatcher(ModeSubstring, 0)

	t.Run("A: exact name", func(t *testing.T) {
		assert.Equal(t, []string{"Аваланж"}, names(m.Match("аваланж", scenarioCatalog())))
	})

	t.Run("B: category stopword", func(t *testing.T) {
		assert.Equal(t, []string{"Аваланж"}, names(m.Match("роза аваланж", scenarioCatalog())))
	})

	t.Run("C: empty catalog", func(t *testing.T) {
		assert.Empty(t, m.Match("аваланж", nil))
	})

	t.Run("partial tokens in any order", func(t *testing.T) {
		assert.Equal(t, []string{"Ред Наоми"}, names(m.Match("наом ред", scenarioCatalog())))
	})

	t.Run("no match", func(t *testing.T) {
		assert.Empty(t, m.Match("пионы", scenarioCatalog()))
	})
}

func TestSubstringProperty(t *testing.T) {
	items := []Item{
		{Name: "Аваланж"}, {Name: "Ред Наоми"}, {Name: "Пинк Флойд"}, {Name: "Роза Пинк Интуишн"},
		{Name: "Ред Интуишн"}, {Name: "Флойд"}, {Name: "«Наоми» (спрей)"},
	}
	queries := []string{"ред", "пинк", "интуишн ред", "наоми", "ф", "роза", "спрей наоми", "x", "ой"}

	m := NewMatcher(ModeSubstring, 0)
	for _, q := range queries {
		got := map[string]bool{}
		for _, it := range m.Match(q, items) {
			got[it.Name] = true
		}

		tokens := strings.Fields(Normalize(q))
		for _, it := range items {
			want := true
			for _, tok := range tokens {
				if !strings.Contains(Normalize(it.Name), tok) {
					want = false
				}
			}
			assert.Equal(t, want, got[it.Name], "query %q item %q", q, it.Name)
		}
	}
}

func TestSubstringPreservesCatalogOrder(t *testing.T) {
	items := []Item{{Name: "Пинк Б"}, {Name: "Ред"}, {Name: "Пинк А"}}
	m := NewMatcher(ModeSubstring, 0)

	assert.Equal(t, []string{"Пинк Б", "Пинк А"}, names(m.Match("пинк", items)))
}

func TestFuzzyMatch(t *testing.T) {
	items := []Item{
		{Name: "Аваланш"},
		{Name: "Ред Наоми"},
		{Name: "Аваланж"},
		{Name: "Пинк Флойд"},
		{Name: "Аваланж Пич"},
	}
	m := NewMatcher(ModeFuzzy, 80)

	got := m.Match("аваланж", items)
	require.NotEmpty(t, got)

	prev := 101
	for _, it := range got {
		score := PartialRatio("аваланж", Normalize(it.Name))
		assert.GreaterOrEqual(t, score, 80, it.Name)
		assert.LessOrEqual(t, score, prev, "results must be sorted by score")
		prev = score
	}

	// точные совпадения (100) идут первыми в порядке каталога
	assert.Equal(t, []string{"Аваланж", "Аваланж Пич", "Аваланш"}, names(got))
}

func TestFuzzyEmptyQuery(t *testing.T) {
	m := NewMatcher(ModeFuzzy, 80)
	assert.Empty(t, m.Match("роза", scenarioCatalog()))
}

func TestPartialRatio(t *testing.T) {
	assert.Equal(t, 100, PartialRatio("флойд", "пинк флойд"))
	assert.Equal(t, 100, PartialRatio("пинк флойд", "флойд"))
	assert.Equal(t, 86, PartialRatio("аваланж", "аваланш"))
	assert.Equal(t, 0, PartialRatio("", "аваланж"))
	assert.Less(t, PartialRatio("пинк", "наоми"), 80)
}

func TestLimit(t *testing.T) {
	items := scenarioCatalog()

	assert.Len(t, Limit(items, 2), 2)
	assert.Len(t, Limit(items, 10), 3)
	assert.Empty(t, Limit(items, 0))
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeFuzzy, ParseMode(" Fuzzy "))
	assert.Equal(t, ModeSubstring, ParseMode("substring"))
	assert.Equal(t, ModeSubstring, ParseMode("unknown"))
}
