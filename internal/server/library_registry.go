package server

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mokuro-hub/mokuro-hub/internal/config"
	"github.com/mokuro-hub/mokuro-hub/internal/gateway"
)

// LibraryRoute 将 Library 配置与解析后的 Upstream URL 聚合在一起，
// 供路由层直接复用，避免每次请求重复解析配置。
type LibraryRoute struct {
	// Config 是用户在 config.toml 中声明的 Library 字段副本，避免外部修改。
	Config config.LibraryConfig
	// UpstreamURL 在构造 Registry 时提前解析完成，便于后续请求快速复用。
	UpstreamURL *url.URL
}

// Credentials 返回发往上游时使用的凭据对；未配置时为零值（匿名访问）。
func (r *LibraryRoute) Credentials() gateway.Credentials {
	return gateway.Credentials{
		Username: r.Config.Username,
		Password: r.Config.Password,
	}
}

// LibraryRegistry 提供名称到 LibraryRoute 的查询能力。
type LibraryRegistry struct {
	routes  map[string]*LibraryRoute
	ordered []*LibraryRoute
}

// NewLibraryRegistry 根据配置构建书库映射。调用方应在启动阶段创建一次并复用。
func NewLibraryRegistry(cfg *config.Config) (*LibraryRegistry, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	registry := &LibraryRegistry{
		routes: make(map[string]*LibraryRoute, len(cfg.Libraries)),
	}

	for _, lib := range cfg.Libraries {
		name := normalizeLibraryName(lib.Name)
		if name == "" {
			return nil, fmt.Errorf("invalid name for library %q", lib.Name)
		}
		if _, exists := registry.routes[name]; exists {
			return nil, fmt.Errorf("duplicate library name detected for %s", name)
		}

		upstreamURL, err := url.Parse(lib.Upstream)
		if err != nil {
			return nil, fmt.Errorf("invalid upstream for library %s: %w", lib.Name, err)
		}

		route := &LibraryRoute{
			Config:      lib,
			UpstreamURL: upstreamURL,
		}
		registry.routes[name] = route
		registry.ordered = append(registry.ordered, route)
	}

	return registry, nil
}

// Lookup 根据名称查找 LibraryRoute，名称不区分大小写。
func (r *LibraryRegistry) Lookup(name string) (*LibraryRoute, bool) {
	if r == nil {
		return nil, false
	}

	normalized := normalizeLibraryName(name)
	if normalized == "" {
		return nil, false
	}

	route, ok := r.routes[normalized]
	return route, ok
}

// List 返回当前注册的 LibraryRoute 列表（按配置定义的顺序），用于诊断输出。
func (r *LibraryRegistry) List() []LibraryRoute {
	if r == nil || len(r.ordered) == 0 {
		return nil
	}

	result := make([]LibraryRoute, len(r.ordered))
	for i, route := range r.ordered {
		result[i] = *route
	}
	return result
}

func normalizeLibraryName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
