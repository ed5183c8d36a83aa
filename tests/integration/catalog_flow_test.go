package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/mokuro-hub/mokuro-hub/internal/catalog"
	"github.com/mokuro-hub/mokuro-hub/internal/config"
	"github.com/mokuro-hub/mokuro-hub/internal/gateway"
	"github.com/mokuro-hub/mokuro-hub/internal/server"
	"github.com/mokuro-hub/mokuro-hub/internal/server/routes"
	"github.com/mokuro-hub/mokuro-hub/internal/thumbnail"
)

// libraryStub 模拟一个要求 Basic 认证的 autoindex 书库服务器。
type libraryStub struct {
	srv   *httptest.Server
	cover []byte

	mu   sync.Mutex
	hits int
}

func newLibraryStub(t *testing.T) *libraryStub {
	t.Helper()

	img := imaging.New(800, 400, color.NRGBA{R: 90, G: 90, B: 180, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		t.Fatalf("编码封面失败: %v", err)
	}

	stub := &libraryStub{cover: buf.Bytes()}
	stub.srv = httptest.NewServer(http.HandlerFunc(stub.handle))
	t.Cleanup(stub.srv.Close)
	return stub
}

func (s *libraryStub) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits++
	s.mu.Unlock()

	user, pass, ok := r.BasicAuth()
	if !ok || user != "reader" || pass != "secret" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.URL.Path {
	case "/manga/":
		io.WriteString(w, listingPage("Yotsuba/", "Azumanga/", "../"))
	case "/manga/Yotsuba/":
		io.WriteString(w, listingPage("v1.mokuro", "v1/", "v2/"))
	case "/manga/Yotsuba/v1.mokuro":
		json.NewEncoder(w).Encode(map[string]any{
			"pages": []map[string]string{{"img_path": "001.jpg"}},
		})
	case "/manga/Yotsuba/v1/001.jpg":
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(s.cover)
	default:
		http.NotFound(w, r)
	}
}

func (s *libraryStub) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

func listingPage(hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><pre>")
	for _, href := range hrefs {
		fmt.Fprintf(&b, "<a href=%q>%s</a>\n", href, href)
	}
	b.WriteString("</pre></body></html>")
	return b.String()
}

// newHubApp 按 main.go 的启动顺序组装一个完整的应用。
func newHubApp(t *testing.T, cfg *config.Config) *fiber.App {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	registry, err := server.NewLibraryRegistry(cfg)
	if err != nil {
		t.Fatalf("registry error: %v", err)
	}

	store, err := thumbnail.NewStore(cfg.Global.StoragePath)
	if err != nil {
		t.Fatalf("store error: %v", err)
	}

	client := server.NewUpstreamClient(cfg)
	gw := gateway.New(client, logger)
	lister := catalog.NewLister(gw, logger)
	covers := thumbnail.NewResolver(thumbnail.ResolverOptions{
		Lister:    lister,
		Gateway:   gw,
		Store:     store,
		Logger:    logger,
		MaxWidth:  cfg.Global.ThumbnailMaxWidth,
		MaxHeight: cfg.Global.ThumbnailMaxHeight,
		Quality:   cfg.Global.ThumbnailQuality,
	})

	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		ListenPort: cfg.Global.ListenPort,
	})
	if err != nil {
		t.Fatalf("app error: %v", err)
	}

	routes.RegisterProxyRoute(app, gw)
	routes.RegisterCatalogRoutes(app, routes.CatalogDeps{
		Registry: registry,
		Lister:   lister,
		Covers:   covers,
		Logger:   logger,
	})
	return app
}

func hubConfig(t *testing.T, upstream string, withCreds bool) *config.Config {
	t.Helper()
	lib := config.LibraryConfig{
		Name:     "homelab",
		Upstream: upstream,
	}
	if withCreds {
		lib.Username = "reader"
		lib.Password = "secret"
	}
	return &config.Config{
		Global: config.GlobalConfig{
			ListenPort:         5500,
			StoragePath:        t.TempDir(),
			UpstreamTimeout:    config.Duration(10 * time.Second),
			ThumbnailMaxWidth:  250,
			ThumbnailMaxHeight: 350,
			ThumbnailQuality:   80,
		},
		Libraries: []config.LibraryConfig{lib},
	}
}

func TestCatalogFlowEndToEnd(t *testing.T) {
	stub := newLibraryStub(t)
	app := newHubApp(t, hubConfig(t, stub.srv.URL+"/manga", true))

	doRequest := func(method, path string) *http.Response {
		resp, err := app.Test(httptest.NewRequest(method, path, nil))
		if err != nil {
			t.Fatalf("app.Test error: %v", err)
		}
		return resp
	}

	// 系列枚举：凭据由服务端配置注入，客户端无感。
	resp := doRequest(http.MethodGet, "/catalog/homelab/series")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("series 期望 200，得到 %d", resp.StatusCode)
	}
	var seriesPayload struct {
		Series []string `json:"series"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&seriesPayload); err != nil {
		t.Fatalf("解码 series 失败: %v", err)
	}
	resp.Body.Close()
	if len(seriesPayload.Series) != 2 || seriesPayload.Series[0] != "Yotsuba" {
		t.Fatalf("系列列表不正确: %v", seriesPayload.Series)
	}

	// 卷枚举：v1 的目录与元数据文件合并为一条。
	resp = doRequest(http.MethodGet, "/catalog/homelab/series/Yotsuba/volumes")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("volumes 期望 200，得到 %d", resp.StatusCode)
	}
	var volumesPayload struct {
		Volumes []catalog.VolumeEntry `json:"volumes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&volumesPayload); err != nil {
		t.Fatalf("解码 volumes 失败: %v", err)
	}
	resp.Body.Close()
	if len(volumesPayload.Volumes) != 2 {
		t.Fatalf("期望 2 卷，得到 %v", volumesPayload.Volumes)
	}

	// 首次取封面：未命中缓存，走完整派生链。
	resp = doRequest(http.MethodGet, "/catalog/homelab/series/Yotsuba/cover")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("cover 期望 200，得到 %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Cache-Hit") != "false" {
		t.Fatalf("首次取封面不应命中缓存")
	}
	if resp.Header.Get("X-Volume-Count") != "2" {
		t.Fatalf("X-Volume-Count 应为 2，得到 %q", resp.Header.Get("X-Volume-Count"))
	}
	if got := resp.Header.Get("Content-Type"); got != "image/jpeg" {
		t.Fatalf("封面应为 JPEG，得到 %q", got)
	}
	firstCover, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if len(firstCover) == 0 {
		t.Fatalf("封面不应为空")
	}

	// 二次取封面：命中缓存，上游零请求。
	before := stub.requestCount()
	resp = doRequest(http.MethodGet, "/catalog/homelab/series/Yotsuba/cover")
	if resp.Header.Get("X-Cache-Hit") != "true" {
		t.Fatalf("二次取封面应命中缓存")
	}
	cached, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !bytes.Equal(cached, firstCover) {
		t.Fatalf("缓存封面与首次结果不一致")
	}
	if stub.requestCount() != before {
		t.Fatalf("命中缓存不应访问上游")
	}

	// 显式失效后重新派生。
	resp = doRequest(http.MethodDelete, "/catalog/homelab/series/Yotsuba/cover")
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("失效期望 204，得到 %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doRequest(http.MethodGet, "/catalog/homelab/series/Yotsuba/cover")
	if resp.Header.Get("X-Cache-Hit") != "false" {
		t.Fatalf("失效后应重新派生封面")
	}
	resp.Body.Close()
	if stub.requestCount() == before {
		t.Fatalf("重新派生应访问上游")
	}
}

func TestCatalogFlowRejectsUnknownLibrary(t *testing.T) {
	stub := newLibraryStub(t)
	app := newHubApp(t, hubConfig(t, stub.srv.URL+"/manga", true))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/catalog/ghost/series", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("未知书库应返回 404，得到 %d", resp.StatusCode)
	}
}

func TestCatalogFlowUpstreamAuthFailure(t *testing.T) {
	stub := newLibraryStub(t)
	// 不带凭据访问要求认证的上游：目录层应回报 502 而不是泄漏 401 细节。
	app := newHubApp(t, hubConfig(t, stub.srv.URL+"/manga", false))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/catalog/homelab/series", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusBadGateway {
		t.Fatalf("上游拒绝时期望 502，得到 %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "server_unreachable") {
		t.Fatalf("错误码不正确: %s", string(body))
	}
}

func TestProxyFlowWithQueryCredentials(t *testing.T) {
	stub := newLibraryStub(t)
	app := newHubApp(t, hubConfig(t, stub.srv.URL+"/manga", true))

	target := stub.srv.URL + "/manga/Yotsuba/v1/001.jpg"
	path := "/proxy?url=" + url.QueryEscape(target) + "&user=reader&pass=secret"
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("proxy 期望 200，得到 %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(body, stub.cover) {
		t.Fatalf("proxy 应原样转发图片正文")
	}
	if got := resp.Header.Get("Content-Type"); got != "image/jpeg" {
		t.Fatalf("Content-Type 应被透传，得到 %q", got)
	}
}
