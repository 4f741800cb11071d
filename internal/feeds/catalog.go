package feeds

import (
	"strings"
	"unicode/utf8"

	"github.com/thinkscotty/newsroom/internal/similarity"
)

// fuzzy catches misspelled queries when nothing matches literally.
var fuzzy = similarity.New(0.4, 3)

// CatalogFeed is a curated feed offered as a suggestion when adding sources.
type CatalogFeed struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type Category struct {
	Name  string        `json:"name"`
	Feeds []CatalogFeed `json:"feeds"`
}

// Categories holds the curated IT news feeds, grouped by area.
var Categories = []Category{
	{
		Name: "Korean IT News",
		Feeds: []CatalogFeed{
			{Name: "ZDNet Korea", URL: "https://feeds.feedburner.com/zdkorea", Description: "지디넷코리아 IT 뉴스"},
			{Name: "전자신문", URL: "https://rss.etnews.com/Section901.xml", Description: "전자신문 속보 IT 산업 뉴스"},
			{Name: "블로터", URL: "https://www.bloter.net/rss/allArticle.xml", Description: "블로터 IT 테크 뉴스"},
			{Name: "ITWorld Korea", URL: "https://www.itworld.co.kr/rss/feed/index.php", Description: "기업 IT 인프라 클라우드 뉴스"},
		},
	},
	{
		Name: "Technology",
		Feeds: []CatalogFeed{
			{Name: "Hacker News", URL: "https://news.ycombinator.com/rss", Description: "Links for the intellectually curious, ranked by readers"},
			{Name: "TechCrunch", URL: "https://techcrunch.com/feed/", Description: "Startup and technology news"},
			{Name: "The Verge", URL: "https://www.theverge.com/rss/index.xml", Description: "Technology, science, art, and culture"},
			{Name: "Ars Technica", URL: "https://feeds.arstechnica.com/arstechnica/index", Description: "Technology news and analysis"},
			{Name: "WIRED", URL: "https://www.wired.com/feed/rss", Description: "Technology, business and culture"},
		},
	},
	{
		Name: "AI",
		Feeds: []CatalogFeed{
			{Name: "MIT Technology Review", URL: "https://www.technologyreview.com/feed/", Description: "Emerging technology and artificial intelligence"},
			{Name: "Google AI Blog", URL: "https://blog.google/technology/ai/rss/", Description: "AI research and product news from Google"},
			{Name: "Hugging Face Blog", URL: "https://huggingface.co/blog/feed.xml", Description: "Open source machine learning and LLM releases"},
		},
	},
	{
		Name: "Security",
		Feeds: []CatalogFeed{
			{Name: "Krebs on Security", URL: "https://krebsonsecurity.com/feed/", Description: "In-depth security news and investigation"},
			{Name: "BleepingComputer", URL: "https://www.bleepingcomputer.com/feed/", Description: "Security vulnerabilities, malware and breaches"},
		},
	},
	{
		Name: "Developers",
		Feeds: []CatalogFeed{
			{Name: "The Go Blog", URL: "https://go.dev/blog/feed.atom", Description: "News from the Go project"},
			{Name: "GitHub Blog", URL: "https://github.blog/feed/", Description: "Updates, ideas and inspiration from GitHub"},
		},
	},
}

// Suggest returns catalog feeds matching the query. A query that matches a
// category name returns the whole category; otherwise feeds are matched on
// name and description. When nothing matches literally, words are matched
// approximately instead. An empty query returns every feed.
func Suggest(query string) []CatalogFeed {
	var keywords []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(w) >= 2 {
			keywords = append(keywords, w)
		}
	}

	if len(keywords) == 0 {
		var all []CatalogFeed
		for _, cat := range Categories {
			all = append(all, cat.Feeds...)
		}
		return all
	}

	if results := match(keywords, containsAny); len(results) > 0 {
		return results
	}
	return match(keywords, matchesAny)
}

func match(keywords []string, hit func(string, []string) bool) []CatalogFeed {
	seen := make(map[string]bool)
	var results []CatalogFeed
	add := func(f CatalogFeed) {
		if !seen[f.URL] {
			seen[f.URL] = true
			results = append(results, f)
		}
	}

	for _, cat := range Categories {
		if hit(strings.ToLower(cat.Name), keywords) {
			for _, f := range cat.Feeds {
				add(f)
			}
			continue
		}
		for _, f := range cat.Feeds {
			if hit(strings.ToLower(f.Name+" "+f.Description), keywords) {
				add(f)
			}
		}
	}
	return results
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func matchesAny(s string, words []string) bool {
	for _, w := range words {
		if fuzzy.Matches(w, s) {
			return true
		}
	}
	return false
}
