package catalog

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

type Mode int

const (
	ModeSubstring Mode = iota
	ModeFuzzy
)

func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), "fuzzy") {
		return ModeFuzzy
	}
	return ModeSubstring
}

func (m Mode) String() string {
	if m == ModeFuzzy {
		return "fuzzy"
	}
	return "substring"
}

const DefaultFuzzyThreshold = 80

// Стоп-слова: родовое слово каталога не должно мешать поиску ("роза аваланж").
var stopwords = map[string]struct{}{
	"роза": {}, "розы": {}, "розу": {}, "розе": {}, "розой": {}, "роз": {},
	"сорт": {}, "сорта": {},
	"rose": {}, "roses": {},
}

var stripper = strings.NewReplacer(
	`"`, " ", `'`, " ", "`", " ",
	"«", " ", "»", " ", "„", " ", "“", " ", "”", " ", "‘", " ", "’", " ",
	"(", " ", ")", " ", "[", " ", "]", " ", "{", " ", "}", " ", "<", " ", ">", " ",
	"ё", "е",
)

// Normalize: нижний регистр, без кавычек и скобок, схлопнутые пробелы,
// без стоп-слов. Идемпотентна.
func Normalize(text string) string {
	text = stripper.Replace(strings.ToLower(text))

	tokens := strings.Fields(text)
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

type Matcher struct {
	mode      Mode
	threshold int
}

func NewMatcher(mode Mode, threshold int) *Matcher {
	if threshold <= 0 || threshold > 100 {
		threshold = DefaultFuzzyThreshold
	}
	return &Matcher{mode: mode, threshold: threshold}
}

func (m *Matcher) Mode() Mode {
	return m.mode
}

// Match возвращает совпадения в порядке каталога (substring) или по убыванию
// оценки с сохранением порядка каталога при равенстве (fuzzy).
// Пустой результат — нормальный исход.
func (m *Matcher) Match(query string, items []Item) []Item {
	q := Normalize(query)
	if m.mode == ModeFuzzy {
		return matchFuzzy(q, items, m.threshold)
	}
	return matchSubstring(q, items)
}

func matchSubstring(q string, items []Item) []Item {
	tokens := strings.Fields(q)

	var out []Item
	for _, it := range items {
		if containsAll(Normalize(it.Name), tokens) {
			out = append(out, it)
		}
	}
	return out
}

func containsAll(name string, tokens []string) bool {
	for _, tok := range tokens {
		if !strings.Contains(name, tok) {
			return false
		}
	}
	return true
}

type scored struct {
	item  Item
	score int
}

func matchFuzzy(q string, items []Item, threshold int) []Item {
	if q == "" {
		return nil
	}

	var hits []scored
	for _, it := range items {
		if s := PartialRatio(q, Normalize(it.Name)); s >= threshold {
			hits = append(hits, scored{item: it, score: s})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	out := make([]Item, len(hits))
	for i, h := range hits {
		out[i] = h.item
	}
	return out
}

// PartialRatio — лучшее сходство (0..100) короткой строки с любым окном
// такой же длины в длинной.
func PartialRatio(a, b string) int {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}

	s := string(short)
	best := 0
	for i := 0; i+len(short) <= len(long); i++ {
		r := ratio(s, string(long[i:i+len(short)]), len(short))
		if r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

func ratio(a, b string, n int) int {
	dist := levenshtein.ComputeDistance(a, b)
	return (100*(n-dist) + n/2) / n
}

// Limit обрезает результат до n элементов.
func Limit(items []Item, n int) []Item {
	if n >= 0 && len(items) > n {
		return items[:n]
	}
	return items
}
