package pageparse

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

const (
	MaxContentChars = 100_000
	ExcerptChars    = 300
	maxMetaChars    = 500
)

var noiseTags = "script, style, nav, header, footer, aside, noscript, iframe, form, button, input, select, textarea, label"

var noisePattern = regexp.MustCompile(`(?i)\b(nav|menu|sidebar|footer|header|ads?|advertisement|cookie|popup|modal|social|share|related|comment|breadcrumb|pagination|widget|banner)\b`)

var (
	mainIDPattern    = regexp.MustCompile(`(?i)(content|main|article|post|body)`)
	mainClassPattern = regexp.MustCompile(`(?i)(content|main|article|post|entry)`)
	datePrefix       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

// Page is the text-level view of one HTML document.
type Page struct {
	URL         string
	Title       string
	Description string
	// Content is markdown; WordCount and Excerpt are computed on the plain text.
	Content     string
	WordCount   int
	Excerpt     string
	PublishedAt *time.Time
}

var converter = md.NewConverter("", true, nil)

// Extract reads metadata from the full document and the main text from a
// pruned clone, so link discovery on doc is unaffected.
func Extract(doc *goquery.Document, pageURL string) Page {
	p := Page{
		URL:         pageURL,
		Title:       title(doc),
		Description: description(doc),
		PublishedAt: publishedAt(doc),
	}
	if p.Title == "" {
		p.Title = pageURL
	}

	clone, err := cloneDocument(doc)
	if err != nil {
		return p
	}
	clone.Find(noiseTags).Remove()
	clone.Find("[class], [id]").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		if noisePattern.MatchString(class) || noisePattern.MatchString(id) {
			s.Remove()
		}
	})

	main := mainContainer(clone)
	if main == nil {
		return p
	}

	plain := strings.Join(strings.Fields(main.Text()), " ")
	p.WordCount = len(strings.Fields(plain))
	p.Excerpt = excerpt(plain, ExcerptChars)

	content := plain
	if html, err := goquery.OuterHtml(main); err == nil {
		if markdown, err := converter.ConvertString(html); err == nil && strings.TrimSpace(markdown) != "" {
			content = strings.TrimSpace(markdown)
		}
	}
	p.Content = truncateRunes(content, MaxContentChars)
	return p
}

func cloneDocument(doc *goquery.Document) (*goquery.Document, error) {
	html, err := doc.Html()
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func mainContainer(doc *goquery.Document) *goquery.Selection {
	for _, sel := range []string{"main", "article"} {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}
	var found *goquery.Selection
	doc.Find("[id]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		id, _ := s.Attr("id")
		if mainIDPattern.MatchString(id) {
			found = s
			return false
		}
		return true
	})
	if found != nil {
		return found
	}
	doc.Find("[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		if mainClassPattern.MatchString(class) {
			found = s
			return false
		}
		return true
	})
	if found != nil {
		return found
	}
	if body := doc.Find("body").First(); body.Length() > 0 {
		return body
	}
	return nil
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func title(doc *goquery.Document) string {
	if v := metaContent(doc, `meta[property="og:title"]`, `meta[name="twitter:title"]`); v != "" {
		return truncateRunes(v, maxMetaChars)
	}
	for _, sel := range []string{"title", "h1"} {
		if v := strings.TrimSpace(doc.Find(sel).First().Text()); v != "" {
			return truncateRunes(v, maxMetaChars)
		}
	}
	return ""
}

func description(doc *goquery.Document) string {
	v := metaContent(doc,
		`meta[property="og:description"]`,
		`meta[name="description"]`,
		`meta[name="twitter:description"]`,
	)
	return truncateRunes(v, maxMetaChars)
}

func publishedAt(doc *goquery.Document) *time.Time {
	candidates := []string{metaContent(doc,
		`meta[property="article:published_time"]`,
		`meta[property="og:article:published_time"]`,
		`meta[name="date"]`,
		`meta[name="pubdate"]`,
		`meta[name="DC.date"]`,
		`meta[itemprop="datePublished"]`,
	)}
	doc.Find("time[datetime]").Each(func(_ int, s *goquery.Selection) {
		v, _ := s.Attr("datetime")
		candidates = append(candidates, v)
	})
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if !datePrefix.MatchString(c) {
			continue
		}
		if t, err := time.Parse("2006-01-02", c[:10]); err == nil {
			return &t
		}
	}
	return nil
}

// excerpt cuts s to at most n runes, backing off to the last space.
func excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	cut := truncateRunes(s, n)
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
