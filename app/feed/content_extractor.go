package feed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

const extractCacheTTL = time.Hour

// Candidate content containers, tried in order. The semantic article tag
// wins over class/id heuristics; the page body is the last resort.
var defaultContentSelectors = []string{
	"article",
	".post-content",
	".entry-content",
	".article-content",
	".article-body",
	".content-body",
	".post-body",
	"#content",
	".content",
	"main",
}

// Boilerplate stripped from the document before any content search.
var defaultRemoveSelectors = []string{
	"script",
	"style",
	"nav",
	"header",
	"footer",
	"aside",
	".sidebar",
	".navigation",
	".nav",
	".menu",
	".ads",
	".advertisement",
	".social-share",
	".comments",
	".related-posts",
	".author-bio",
	"form",
	"iframe",
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	eventAttrRe  = regexp.MustCompile(`^on\w+$`)
)

type cacheEntry struct {
	content   string
	expiresAt time.Time
}

// ContentExtractor fetches an article page and isolates its main body from
// boilerplate markup. Successful extractions are cached per URL for an hour.
type ContentExtractor struct {
	httpClient       *http.Client
	userAgent        string
	contentSelectors []string
	removeSelectors  []string
	sanitizer        *bluemonday.Policy

	cache   map[string]cacheEntry
	cacheMu sync.RWMutex
}

func NewContentExtractor(httpClient *http.Client, userAgent string) *ContentExtractor {
	return &ContentExtractor{
		httpClient:       httpClient,
		userAgent:        userAgent,
		contentSelectors: append([]string(nil), defaultContentSelectors...),
		removeSelectors:  append([]string(nil), defaultRemoveSelectors...),
		sanitizer:        bluemonday.UGCPolicy(),
		cache:            make(map[string]cacheEntry),
	}
}

// AddContentSelector prepends a custom content selector, giving it top
// priority in the candidate search.
func (e *ContentExtractor) AddContentSelector(selector string) {
	e.contentSelectors = append([]string{selector}, e.contentSelectors...)
}

// AddRemoveSelector appends a selector to the boilerplate denylist.
func (e *ContentExtractor) AddRemoveSelector(selector string) {
	e.removeSelectors = append(e.removeSelectors, selector)
}

// Extract returns the sanitized HTML of the main content region of the
// page at pageURL.
func (e *ContentExtractor) Extract(ctx context.Context, pageURL string) (string, error) {
	cacheKey := hashURL(pageURL)

	if content, ok := e.cacheGet(cacheKey); ok {
		slog.Debug("Content extraction cache hit", "url", pageURL)
		return content, nil
	}

	if err := ValidateURL(pageURL); err != nil {
		return "", err
	}

	html, err := e.fetchPage(ctx, pageURL)
	if err != nil {
		return "", err
	}

	content, err := e.parseContent(html)
	if err != nil {
		return "", err
	}

	e.cacheSet(cacheKey, content)

	return content, nil
}

func (e *ContentExtractor) fetchPage(ctx context.Context, pageURL string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if len(data) == 0 {
		return "", ErrEmptyResponse
	}

	return string(data), nil
}

func (e *ContentExtractor) parseContent(html string) (string, error) {
	// goquery tolerates malformed markup and always yields a document.
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	// Boilerplate goes first, so a match inside a sidebar can't win.
	for _, selector := range e.removeSelectors {
		doc.Find(selector).Remove()
	}

	selectors := append(append([]string(nil), e.contentSelectors...), "body")
	for _, selector := range selectors {
		matched := doc.Find(selector)
		if matched.Length() == 0 {
			continue
		}

		var parts []string
		matched.Each(func(_ int, s *goquery.Selection) {
			if fragment, err := goquery.OuterHtml(s); err == nil {
				parts = append(parts, fragment)
			}
		})

		content := e.cleanContent(strings.Join(parts, ""))
		if content == "" {
			continue
		}
		return content, nil
	}

	return "", ErrNoContent
}

func (e *ContentExtractor) cleanContent(content string) string {
	content = whitespaceRe.ReplaceAllString(content, " ")

	// Residual script/style and inline handlers can survive when they sit
	// inside the matched container rather than at the top level.
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(content)); err == nil {
		doc.Find("script, style").Remove()
		doc.Find("*").Each(func(_ int, s *goquery.Selection) {
			s.RemoveAttr("style")
			for _, attr := range s.Nodes[0].Attr {
				if eventAttrRe.MatchString(attr.Key) {
					s.RemoveAttr(attr.Key)
				}
			}
		})
		if cleaned, err := doc.Find("body").Html(); err == nil {
			content = cleaned
		}
	}

	return strings.TrimSpace(e.sanitizer.Sanitize(content))
}

func (e *ContentExtractor) cacheGet(key string) (string, bool) {
	e.cacheMu.RLock()
	defer e.cacheMu.RUnlock()

	entry, ok := e.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.content, true
}

func (e *ContentExtractor) cacheSet(key, content string) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()

	e.cache[key] = cacheEntry{
		content:   content,
		expiresAt: time.Now().Add(extractCacheTTL),
	}
}

func hashURL(pageURL string) string {
	hash := sha256.Sum256([]byte(pageURL))
	return hex.EncodeToString(hash[:])
}
