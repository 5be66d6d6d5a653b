package ingest

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// stashedPrefetchMarker identifies the inline script that carries the
// page's session metadata.
const stashedPrefetchMarker = "window.__stashedPrefetch"

const accessPolicyKey = "accessPolicy="

// The patterns below match Airtable's current page rendering. There is no
// fallback: when the share page changes shape, update them together with the
// fixtures in credentials_test.go.
var (
	applicationIDPattern = regexp.MustCompile(`x-airtable-application-id":"(.*?)"`)
	pageLoadIDPattern    = regexp.MustCompile(`x-airtable-page-load-id":"(.*?)"`)
	requestIDPattern     = regexp.MustCompile(`requestId:\s*"(.*?)"`)
	urlWithParamsPattern = regexp.MustCompile(`urlWithParams:\s*"(.*?)"`)
)

// Extractor fetches the public share page and scrapes session credentials.
type Extractor struct {
	Fetcher Fetcher
	Config  SourceConfig
}

// Extract performs the share page GET. Only transport failures are errors;
// missing fields come back empty.
func (e *Extractor) Extract(ctx context.Context) (Credentials, error) {
	headers := map[string]string{
		"User-Agent":      e.Config.Fetch.UserAgent,
		"Accept-Language": e.Config.Fetch.AcceptLanguage,
	}

	doc, err := e.Fetcher.Fetch(ctx, e.Config.ShareURL, headers)
	if err != nil {
		return Credentials{}, transportError(StageSharePage, err)
	}
	defer doc.Body.Close()

	payload, err := io.ReadAll(doc.Body)
	if err != nil {
		return Credentials{}, transportError(StageSharePage, fmt.Errorf("failed to read share page: %w", err))
	}

	return ExtractCredentialsFromHTML(string(payload)), nil
}

// ExtractCredentialsFromHTML pulls the four session values out of the first
// text node containing the stashed-prefetch marker. Each value is matched
// independently and is left empty when its pattern does not match.
func ExtractCredentialsFromHTML(htmlBody string) Credentials {
	blob := findPrefetchBlob(htmlBody)
	if blob == "" {
		return Credentials{}
	}

	creds := Credentials{
		ApplicationID: firstSubmatch(applicationIDPattern, blob),
		PageLoadID:    firstSubmatch(pageLoadIDPattern, blob),
		RequestID:     firstSubmatch(requestIDPattern, blob),
	}
	if raw := firstSubmatch(urlWithParamsPattern, blob); raw != "" {
		creds.AccessPolicy = accessPolicyFromURL(raw)
	}
	return creds
}

func findPrefetchBlob(htmlBody string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return ""
	}

	var blob string
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.TextNode && strings.Contains(n.Data, stashedPrefetchMarker) {
			blob = n.Data
			return true
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if walk(child) {
				return true
			}
		}
		return false
	}

	for _, n := range doc.Nodes {
		if walk(n) {
			break
		}
	}
	return blob
}

func firstSubmatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// accessPolicyFromURL URL-decodes raw and returns the accessPolicy query value,
// which runs up to the next '&' or the end of the string.
func accessPolicyFromURL(raw string) string {
	decoded := unescapeLenient(raw)

	start := strings.Index(decoded, accessPolicyKey)
	if start < 0 {
		return ""
	}
	value := decoded[start+len(accessPolicyKey):]
	if end := strings.IndexByte(value, '&'); end >= 0 {
		value = value[:end]
	}
	return value
}

// unescapeLenient decodes every valid %XX escape and keeps malformed ones
// literally. '+' is not treated as a space. Decoded bytes that are not UTF-8
// become U+FFFD.
func unescapeLenient(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	if decoded, err := url.PathUnescape(s); err == nil && utf8.ValidString(decoded) {
		return decoded
	}

	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			buf = append(buf, unhex(s[i+1])<<4|unhex(s[i+2]))
			i += 2
			continue
		}
		buf = append(buf, s[i])
	}
	return strings.ToValidUTF8(string(buf), "\uFFFD")
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
