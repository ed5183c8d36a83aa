package gateway

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/mokuro-hub/mokuro-hub/internal/logging"
)

// Handle 实现 GET /proxy?url=<target>&user=<u>&pass=<p>。
// 上游响应仅透传状态码、Content-Type 与 Content-Length，其余头部一律丢弃，
// 避免 Authorization/Set-Cookie 等会话信息泄漏给下游。
func (g *Gateway) Handle(c fiber.Ctx) error {
	started := time.Now()

	target := c.Query("url")
	if target == "" {
		// 缺少目标地址直接拒绝，不发起任何网络请求。
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url_required"})
	}

	creds := Credentials{
		Username: c.Query("user"),
		Password: c.Query("pass"),
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := g.Fetch(ctx, target, creds)
	if err != nil {
		if errors.Is(err, ErrInvalidTarget) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url_invalid"})
		}
		g.logResult(target, creds, 0, started, err)
		// 网络层故障只回报通用信息，不暴露内部细节。
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "upstream_unavailable"})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.logResult(target, creds, resp.StatusCode, started, nil)
		return c.Status(resp.StatusCode).SendString("failed to fetch target url: " + resp.Status)
	}

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		c.Set("Content-Type", contentType)
	}
	if resp.ContentLength >= 0 {
		c.Response().Header.SetContentLength(int(resp.ContentLength))
	}
	c.Status(resp.StatusCode)

	_, copyErr := io.Copy(c.Response().BodyWriter(), resp.Body)
	g.logResult(target, creds, resp.StatusCode, started, copyErr)
	if copyErr != nil {
		return fiber.NewError(fiber.StatusBadGateway, "proxy stream failed")
	}
	return nil
}

func (g *Gateway) logResult(target string, creds Credentials, status int, started time.Time, err error) {
	fields := logging.UpstreamFields("proxy", target, creds.Mode(), status)
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if err != nil {
		fields["error"] = err.Error()
		g.logger.WithFields(fields).Error("proxy_failed")
		return
	}
	g.logger.WithFields(fields).Info("proxy_complete")
}
