// Package listing turns autoindex-style HTML into resolved link targets.
// It is a pure transformation: no network access, best-effort on broken
// markup.
package listing

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link 表示目录页中的一个超链接：解析后的绝对地址与原始 href 文本。
type Link struct {
	URL  *url.URL
	Href string
}

// Origin 返回链接地址的 scheme://host 形式，用于同源判断。
func (l Link) Origin() string {
	return Origin(l.URL)
}

// ParseLinks 解析 HTML 片段中的全部锚点，相对地址以 base 为基准解析，
// 而非文档自身的地址——目录页可能经由代理或重定向返回。
// 无法解析的 href 会被静默跳过，坏掉的 HTML 只会产出更少的链接。
func ParseLinks(html string, base *url.URL) []Link {
	if base == nil {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var links []Link
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		links = append(links, Link{
			URL:  base.ResolveReference(ref),
			Href: href,
		})
	})
	return links
}

// Origin 返回 URL 的 scheme://host 形式。
func Origin(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
