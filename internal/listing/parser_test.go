package listing

import (
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("解析 URL 失败: %v", err)
	}
	return u
}

func TestParseLinksResolvesAgainstBase(t *testing.T) {
	base := mustParse(t, "http://nas.local:8080/manga/")
	html := `<html><body><pre>
<a href="Yotsuba/">Yotsuba/</a>
<a href="/other/abs/">abs</a>
<a href="https://ads.example.com/banner">ad</a>
</pre></body></html>`

	links := ParseLinks(html, base)
	if len(links) != 3 {
		t.Fatalf("期望 3 个链接，得到 %d", len(links))
	}
	if got := links[0].URL.String(); got != "http://nas.local:8080/manga/Yotsuba/" {
		t.Fatalf("相对链接应以 base 为基准解析，得到 %s", got)
	}
	if got := links[1].URL.Path; got != "/other/abs/" {
		t.Fatalf("绝对路径应保留，得到 %s", got)
	}
	if got := links[2].Origin(); got != "https://ads.example.com" {
		t.Fatalf("外链 origin 不正确: %s", got)
	}
	if links[0].Href != "Yotsuba/" {
		t.Fatalf("原始 href 应被保留，得到 %s", links[0].Href)
	}
}

func TestParseLinksNoAnchors(t *testing.T) {
	base := mustParse(t, "http://nas.local/")
	for _, html := range []string{
		"",
		"<html><body><p>empty listing</p></body></html>",
		"<div>no links here",
	} {
		if links := ParseLinks(html, base); len(links) != 0 {
			t.Fatalf("无锚点的文档应返回空结果，输入 %q 得到 %d 个", html, len(links))
		}
	}
}

func TestParseLinksBestEffortOnBrokenMarkup(t *testing.T) {
	base := mustParse(t, "http://nas.local/")
	// 残缺标签与非法 href 都只会让结果变少，绝不 panic。
	html := `<a href="ok/">ok<a href="%zz">bad<a>missing</a><table><a href="also/">`

	links := ParseLinks(html, base)
	for _, link := range links {
		if link.Href == "%zz" {
			t.Fatalf("非法 href 应被跳过")
		}
	}
	found := map[string]bool{}
	for _, link := range links {
		found[link.Href] = true
	}
	if !found["ok/"] || !found["also/"] {
		t.Fatalf("可解析的链接应被保留: %v", found)
	}
}

func TestParseLinksNilBase(t *testing.T) {
	if links := ParseLinks(`<a href="x/">x</a>`, nil); links != nil {
		t.Fatalf("base 为空时应返回 nil")
	}
}

func TestParseLinksSkipsEmptyHref(t *testing.T) {
	base := mustParse(t, "http://nas.local/")
	links := ParseLinks(`<a href="">blank</a><a href="   ">spaces</a>`, base)
	if len(links) != 0 {
		t.Fatalf("空 href 应被跳过，得到 %d 个", len(links))
	}
}
