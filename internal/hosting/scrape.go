package hosting

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"issuepatch/internal/contextutil"
)

const (
	changedFileSelector = ".file-info a[title]"
	linkedPRSelector    = `[aria-label^="1 linked pull request"] a`
	defaultWebURL       = "https://github.com"
)

var issueNumberRe = regexp.MustCompile(`/(\d+)/`)

// HTMLScraper lists changed files from a pull request's rendered files page.
type HTMLScraper struct {
	client *http.Client
}

// NewHTMLScraper creates a scraper. A nil client uses http.DefaultClient.
func NewHTMLScraper(client *http.Client) *HTMLScraper {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTMLScraper{client: client}
}

// ChangedFiles returns the title of every changed-file link on <pr.URL>/files.
func (s *HTMLScraper) ChangedFiles(ctx context.Context, pr *PullRequest) ([]string, error) {
	doc, _, err := fetchDocument(ctx, s.client, strings.TrimSuffix(pr.URL, "/")+"/files")
	if err != nil {
		return nil, err
	}
	files := []string{}
	doc.Find(changedFileSelector).Each(func(_ int, sel *goquery.Selection) {
		if title, ok := sel.Attr("title"); ok {
			files = append(files, title)
		}
	})
	return files, nil
}

// LinkScraper maps closed issues to the pull request that closed them using
// the host's issue list page.
type LinkScraper struct {
	client  *http.Client
	baseURL string
}

// NewLinkScraper creates a scraper for the host at baseURL. An empty baseURL
// means github.com; a nil client uses http.DefaultClient.
func NewLinkScraper(client *http.Client, baseURL string) *LinkScraper {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = defaultWebURL
	}
	return &LinkScraper{client: client, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// IssuePRMap returns issue number -> pull request number for closed issues
// that show exactly one linked pull request. Each link is followed and the
// pull request number is read from the final redirected URL.
func (s *LinkScraper) IssuePRMap(ctx context.Context, owner, repo string) (map[int]int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	listURL := fmt.Sprintf("%s/%s/%s/issues?q=%s", s.baseURL, owner, repo, url.QueryEscape("is:issue is:closed"))
	doc, _, err := fetchDocument(ctx, s.client, listURL)
	if err != nil {
		return nil, err
	}

	var hrefs []string
	doc.Find(linkedPRSelector).Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			hrefs = append(hrefs, href)
		}
	})

	out := make(map[int]int)
	for _, href := range hrefs {
		match := issueNumberRe.FindStringSubmatch(href)
		if match == nil {
			continue
		}
		issueNum, _ := strconv.Atoi(match[1])

		target, err := s.resolve(href)
		if err != nil {
			logger.WarnContext(ctx, "skipping unparseable link", "href", href, "error", err)
			continue
		}
		_, finalURL, err := fetchDocument(ctx, s.client, target)
		if err != nil {
			return nil, err
		}
		prNum, err := strconv.Atoi(path.Base(finalURL.Path))
		if err != nil {
			logger.WarnContext(ctx, "linked page is not a pull request", "href", href, "url", finalURL.String())
			continue
		}
		out[issueNum] = prNum
	}

	logger.InfoContext(ctx, "scraped linked pull requests", "owner", owner, "repo", repo, "links", len(out))
	return out, nil
}

func (s *LinkScraper) resolve(href string) (string, error) {
	base, err := url.Parse(s.baseURL + "/")
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// fetchDocument GETs rawURL, following redirects, and parses the body as HTML.
// It also returns the URL of the final response.
func fetchDocument(ctx context.Context, client *http.Client, rawURL string) (*goquery.Document, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("bad status %d fetching %s", resp.StatusCode, rawURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", rawURL, err)
	}
	return doc, resp.Request.URL, nil
}
