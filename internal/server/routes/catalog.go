package routes

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/mokuro-hub/mokuro-hub/internal/catalog"
	"github.com/mokuro-hub/mokuro-hub/internal/gateway"
	"github.com/mokuro-hub/mokuro-hub/internal/server"
	"github.com/mokuro-hub/mokuro-hub/internal/thumbnail"
)

// CatalogDeps 聚合目录路由依赖，便于在测试中注入替身。
type CatalogDeps struct {
	Registry *server.LibraryRegistry
	Lister   *catalog.Lister
	Covers   *thumbnail.Resolver
	Logger   *logrus.Logger
}

// RegisterProxyRoute 挂载凭据代理端点，语义见 gateway.Handle。
func RegisterProxyRoute(app *fiber.App, gw *gateway.Gateway) {
	if app == nil || gw == nil {
		return
	}
	app.Get("/proxy", gw.Handle)
}

// RegisterCatalogRoutes 挂载系列/卷/封面路由与 /-/libraries 诊断接口。
func RegisterCatalogRoutes(app *fiber.App, deps CatalogDeps) {
	if app == nil || deps.Registry == nil {
		return
	}

	app.Get("/catalog/:library/series", func(c fiber.Ctx) error {
		route, err := resolveLibrary(c, deps.Registry)
		if err != nil {
			return err
		}

		names, listErr := deps.Lister.ListSeries(requestContext(c), route.UpstreamURL.String(), route.Credentials())
		if listErr != nil {
			return renderCatalogError(c, listErr)
		}
		if names == nil {
			names = []string{}
		}
		return c.JSON(fiber.Map{"series": names})
	})

	app.Get("/catalog/:library/series/:series/volumes", func(c fiber.Ctx) error {
		route, err := resolveLibrary(c, deps.Registry)
		if err != nil {
			return err
		}
		series := paramValue(c, "series")

		volumes, listErr := deps.Lister.ListVolumes(requestContext(c), route.UpstreamURL.String(), series, route.Credentials())
		if listErr != nil {
			return renderCatalogError(c, listErr)
		}
		if volumes == nil {
			volumes = []catalog.VolumeEntry{}
		}
		return c.JSON(fiber.Map{"volumes": volumes})
	})

	app.Get("/catalog/:library/series/:series/cover", func(c fiber.Ctx) error {
		route, err := resolveLibrary(c, deps.Registry)
		if err != nil {
			return err
		}
		series := paramValue(c, "series")

		art, resolveErr := deps.Covers.ResolveCoverArt(requestContext(c), route.UpstreamURL.String(), series, route.Credentials())
		if resolveErr != nil {
			return renderCatalogError(c, resolveErr)
		}

		c.Set("X-Volume-Count", fmt.Sprintf("%d", art.VolumeCount))
		c.Set("X-Cache-Hit", fmt.Sprintf("%t", art.CacheHit))
		if len(art.Image) == 0 {
			return c.SendStatus(fiber.StatusNoContent)
		}
		c.Set("Content-Type", art.ContentType)
		return c.Send(art.Image)
	})

	app.Delete("/catalog/:library/series/:series/cover", func(c fiber.Ctx) error {
		route, err := resolveLibrary(c, deps.Registry)
		if err != nil {
			return err
		}
		series := paramValue(c, "series")

		if err := deps.Covers.Invalidate(requestContext(c), route.UpstreamURL.String(), series); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cover_invalidate_failed"})
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Get("/-/libraries", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"libraries": encodeLibraries(deps.Registry.List())})
	})
}

type libraryPayload struct {
	Name     string `json:"name"`
	Upstream string `json:"upstream"`
	AuthMode string `json:"auth_mode"`
}

// encodeLibraries 输出书库概览；凭据本身永远不出现在响应中。
func encodeLibraries(routes []server.LibraryRoute) []libraryPayload {
	result := make([]libraryPayload, 0, len(routes))
	for _, route := range routes {
		result = append(result, libraryPayload{
			Name:     route.Config.Name,
			Upstream: route.Config.Upstream,
			AuthMode: route.Config.AuthMode(),
		})
	}
	return result
}

func resolveLibrary(c fiber.Ctx, registry *server.LibraryRegistry) (*server.LibraryRoute, error) {
	name := paramValue(c, "library")
	route, ok := registry.Lookup(name)
	if !ok {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "library_unknown"})
	}
	return route, nil
}

// renderCatalogError 将目录层错误映射为带作用域信息的响应，
// 不透传底层堆栈。
func renderCatalogError(c fiber.Ctx, err error) error {
	var unreachable *catalog.ServerUnreachableError
	if errors.As(err, &unreachable) {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "server_unreachable",
			"message": unreachable.Error(),
		})
	}

	var volumes *catalog.VolumeListError
	if errors.As(err, &volumes) {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "volume_list_unavailable",
			"message": volumes.Error(),
		})
	}

	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "catalog_unavailable"})
}

// paramValue 返回百分号解码后的路径参数；解码失败时退回原始值。
func paramValue(c fiber.Ctx, name string) string {
	raw := c.Params(name)
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
