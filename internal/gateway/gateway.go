package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"
)

// ErrInvalidTarget 表示目标 URL 缺失或无法解析为绝对地址。
var ErrInvalidTarget = errors.New("invalid target url")

// Credentials 是发往上游的 Basic 认证凭据对。零值表示匿名访问。
type Credentials struct {
	Username string
	Password string
}

// Complete 返回用户名与密码是否同时存在；只有成对出现才会构造认证头。
func (c Credentials) Complete() bool {
	return c.Username != "" && c.Password != ""
}

// Mode 返回便于日志输出的认证模式描述。
func (c Credentials) Mode() string {
	if c.Complete() {
		return "credentialed"
	}
	return "anonymous"
}

// Gateway 是唯一允许携带上游凭据的网络出口。目录抓取、元数据与图片下载
// 全部经由 Fetch 发出，凭据绝不会回流到对下游的响应中。
type Gateway struct {
	client *http.Client
	logger *logrus.Logger
}

// New constructs a gateway sharing the provided HTTP client and logger.
func New(client *http.Client, logger *logrus.Logger) *Gateway {
	return &Gateway{
		client: client,
		logger: logger,
	}
}

// Fetch 对目标地址执行单次 GET，不做任何重试。凭据完整时附加 Basic 认证头。
// 返回的 Response 由调用方负责关闭。
func (g *Gateway) Fetch(ctx context.Context, rawURL string, creds Credentials) (*http.Response, error) {
	target, err := parseTarget(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}

	if header := basicAuthHeader(creds); header != "" {
		req.Header.Set("Authorization", header)
	}

	return g.client.Do(req)
}

func parseTarget(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, ErrInvalidTarget
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTarget, rawURL)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTarget, rawURL)
	}
	return parsed, nil
}

func basicAuthHeader(creds Credentials) string {
	if !creds.Complete() {
		return ""
	}
	token := creds.Username + ":" + creds.Password
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(token))
}
