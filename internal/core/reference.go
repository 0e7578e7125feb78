package core

import "sort"

// All is the filter value meaning "no restriction".
const All = "Все"

// Filter is the three-level category selection. Empty fields and All both
// mean unrestricted.
type Filter struct {
	Category   string
	Article    string
	SubArticle string
}

// FilterOptions are the candidate values of each level given the chosen
// ancestors.
type FilterOptions struct {
	Categories  []string
	Articles    []string
	SubArticles []string
}

func isSet(v string) bool { return v != "" && v != All }

// Options narrows each level's candidates to reference rows matching the
// ancestors that are actually chosen. A level left at All does not scope
// its descendants.
func Options(ref []CategoryRow, f Filter) FilterOptions {
	var opts FilterOptions
	cats, arts, subs := map[string]bool{}, map[string]bool{}, map[string]bool{}
	for _, r := range ref {
		if r.Category != "" {
			cats[r.Category] = true
		}
		if isSet(f.Category) && r.Category != f.Category {
			continue
		}
		if r.Article != "" {
			arts[r.Article] = true
		}
		if isSet(f.Article) && r.Article != f.Article {
			continue
		}
		if r.SubArticle != "" {
			subs[r.SubArticle] = true
		}
	}
	opts.Categories = sortedKeys(cats)
	opts.Articles = sortedKeys(arts)
	opts.SubArticles = sortedKeys(subs)
	return opts
}

// Normalize resets any chosen value that is no longer a candidate under its
// ancestors, top-down.
func (f Filter) Normalize(ref []CategoryRow) Filter {
	opts := Options(ref, Filter{})
	if isSet(f.Category) && !contains(opts.Categories, f.Category) {
		f.Category = All
	}
	opts = Options(ref, Filter{Category: f.Category})
	if isSet(f.Article) && !contains(opts.Articles, f.Article) {
		f.Article = All
	}
	opts = Options(ref, Filter{Category: f.Category, Article: f.Article})
	if isSet(f.SubArticle) && !contains(opts.SubArticles, f.SubArticle) {
		f.SubArticle = All
	}
	for _, p := range []*string{&f.Category, &f.Article, &f.SubArticle} {
		if *p == "" {
			*p = All
		}
	}
	return f
}

// Apply keeps the rows matching every chosen level.
func (f Filter) Apply(rows []Transaction) []Transaction {
	var out []Transaction
	for _, t := range rows {
		if isSet(f.Category) && t.Category != f.Category {
			continue
		}
		if isSet(f.Article) && t.Article != f.Article {
			continue
		}
		if isSet(f.SubArticle) && t.SubArticle != f.SubArticle {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Selection resolves the entry form's cascading selects: each level
// defaults to its first candidate when the chosen value is not valid.
func Selection(ref []CategoryRow, f Filter) (Filter, FilterOptions) {
	var out FilterOptions
	opts := Options(ref, Filter{})
	out.Categories = opts.Categories
	f.Category = pick(opts.Categories, f.Category)

	opts = Options(ref, Filter{Category: f.Category})
	out.Articles = opts.Articles
	f.Article = pick(opts.Articles, f.Article)

	opts = Options(ref, Filter{Category: f.Category, Article: f.Article})
	out.SubArticles = opts.SubArticles
	f.SubArticle = pick(opts.SubArticles, f.SubArticle)
	return f, out
}

func pick(opts []string, v string) string {
	if contains(opts, v) {
		return v
	}
	if len(opts) > 0 {
		return opts[0]
	}
	return ""
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
