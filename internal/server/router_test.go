package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNewAppValidatesOptions(t *testing.T) {
	if _, err := NewApp(AppOptions{ListenPort: 5500}); err == nil {
		t.Fatalf("缺少 logger 应返回错误")
	}
	if _, err := NewApp(AppOptions{Logger: testLogger()}); err == nil {
		t.Fatalf("非法端口应返回错误")
	}
}

func TestAppAssignsRequestID(t *testing.T) {
	app, err := NewApp(AppOptions{Logger: testLogger(), ListenPort: 5500})
	if err != nil {
		t.Fatalf("构建 app 失败: %v", err)
	}

	var fromLocals string
	app.Get("/ping", func(c fiber.Ctx) error {
		fromLocals = RequestID(c)
		return c.SendString("pong")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	header := resp.Header.Get("X-Request-ID")
	if header == "" {
		t.Fatalf("响应应携带 X-Request-ID")
	}
	if fromLocals != header {
		t.Fatalf("Locals 与响应头中的请求 ID 应一致: %q vs %q", fromLocals, header)
	}
}

func TestAppRecoversFromPanic(t *testing.T) {
	app, err := NewApp(AppOptions{Logger: testLogger(), ListenPort: 5500})
	if err != nil {
		t.Fatalf("构建 app 失败: %v", err)
	}
	app.Get("/boom", func(c fiber.Ctx) error {
		panic("boom")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	if err != nil {
		t.Fatalf("panic 应被中间件兜住: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("panic 应转换为 500，得到 %d", resp.StatusCode)
	}
}
