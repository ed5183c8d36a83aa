// Package catalog enumerates series and volumes on a remote directory-listing
// server. All upstream traffic flows through the gateway so credentials never
// leave that boundary.
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mokuro-hub/mokuro-hub/internal/gateway"
	"github.com/mokuro-hub/mokuro-hub/internal/listing"
	"github.com/mokuro-hub/mokuro-hub/internal/logging"
)

// MetadataSuffix 是卷元数据边车文件的固定扩展名。
const MetadataSuffix = ".mokuro"

// VolumeEntry 描述一个卷：名称与是否带有 .mokuro 元数据（即是否可读）。
type VolumeEntry struct {
	Name        string `json:"name"`
	HasMetadata bool   `json:"has_metadata"`
}

// Lister 基于 autoindex 式目录页枚举系列与卷。
type Lister struct {
	gw     *gateway.Gateway
	logger *logrus.Logger
}

// NewLister constructs a catalog lister on top of the gateway.
func NewLister(gw *gateway.Gateway, logger *logrus.Logger) *Lister {
	return &Lister{
		gw:     gw,
		logger: logger,
	}
}

// ListSeries 枚举服务器根目录下的全部系列名，保持目录页原始顺序。
// 仅保留同源、位于根目录正下方一层的目录链接；空名、点号开头与
// 跨多级路径的条目被剔除。
func (l *Lister) ListSeries(ctx context.Context, server string, creds gateway.Credentials) ([]string, error) {
	// 根地址统一补齐末尾斜杠，目录页里的相对链接才能以目录为基准解析。
	server = strings.TrimSuffix(server, "/") + "/"
	base, err := url.Parse(server)
	if err != nil || base.Host == "" {
		return nil, &ServerUnreachableError{Server: server, Err: err}
	}

	html, err := l.fetchListing(ctx, server, creds)
	if err != nil {
		return nil, &ServerUnreachableError{Server: server, Err: err}
	}

	origin := listing.Origin(base)
	// server 已补齐末尾斜杠，prefix 因此落在路径段边界上：
	// 共享字符串前缀的兄弟目录（/lib 与 /library2）不会被误配。
	prefix := base.EscapedPath()

	var names []string
	for _, link := range listing.ParseLinks(html, base) {
		if link.Origin() != origin {
			// 目录页里混入的外链（广告、"powered by" 等）不是系列。
			continue
		}
		path := link.URL.EscapedPath()
		if !strings.HasSuffix(path, "/") {
			continue
		}
		rel, ok := strings.CutPrefix(path, prefix)
		if !ok || rel == "" {
			continue
		}
		name, err := url.PathUnescape(strings.TrimSuffix(rel, "/"))
		if err != nil {
			continue
		}
		// 残余路径仍含 / 说明链接指向更深层目录，不是直接子目录。
		if name == "" || strings.Contains(name, "/") || strings.HasPrefix(name, ".") {
			continue
		}
		names = append(names, name)
	}

	l.logger.WithFields(logging.CatalogFields("list_series", server, "")).
		WithField("count", len(names)).Debug("series_listed")
	return names, nil
}

// ListVolumes 枚举一个系列目录下的卷，返回按名称排序的结果。
// 同一个卷可能同时以 `name/` 目录和 `name.mokuro` 文件出现，二者按名称
// 取并集，出现元数据文件即视为可读。
func (l *Lister) ListVolumes(ctx context.Context, server, series string, creds gateway.Credentials) ([]VolumeEntry, error) {
	root := VolumeRoot(server, series)
	base, err := url.Parse(root)
	if err != nil || base.Host == "" {
		return nil, &VolumeListError{Series: series, Err: err}
	}

	html, err := l.fetchListing(ctx, root, creds)
	if err != nil {
		return nil, &VolumeListError{Series: series, Err: err}
	}

	origin := listing.Origin(base)
	prefix := base.EscapedPath()

	// 元数据文件与目录分两个集合累积，最后按名称合并，
	// 避免“先目录后文件”这类顺序差异造成重复或不一致的条目。
	withMetadata := map[string]struct{}{}
	directories := map[string]struct{}{}

	for _, link := range listing.ParseLinks(html, base) {
		if link.Origin() != origin {
			continue
		}
		path := link.URL.EscapedPath()
		rel, ok := strings.CutPrefix(path, prefix)
		if !ok || rel == "" {
			continue
		}

		if strings.HasSuffix(strings.ToLower(rel), MetadataSuffix) {
			name, err := url.PathUnescape(rel[:len(rel)-len(MetadataSuffix)])
			if err != nil || name == "" || strings.Contains(name, "/") {
				continue
			}
			withMetadata[name] = struct{}{}
			continue
		}

		if strings.HasSuffix(rel, "/") {
			name, err := url.PathUnescape(strings.TrimSuffix(rel, "/"))
			if err != nil || name == "" || strings.Contains(name, "/") {
				continue
			}
			if strings.HasPrefix(name, "..") || strings.HasPrefix(name, "?") {
				continue
			}
			directories[name] = struct{}{}
		}
	}

	entries := make([]VolumeEntry, 0, len(withMetadata)+len(directories))
	for name := range withMetadata {
		entries = append(entries, VolumeEntry{Name: name, HasMetadata: true})
	}
	for name := range directories {
		if _, ok := withMetadata[name]; ok {
			continue
		}
		entries = append(entries, VolumeEntry{Name: name})
	}
	sortVolumes(entries)

	l.logger.WithFields(logging.CatalogFields("list_volumes", server, series)).
		WithField("count", len(entries)).Debug("volumes_listed")
	return entries, nil
}

// VolumeRoot 构造系列目录的绝对地址：去掉服务器末尾斜杠后拼接
// 百分号编码的系列名，并保证以 / 结尾。
func VolumeRoot(server, series string) string {
	return strings.TrimSuffix(server, "/") + "/" + url.PathEscape(series) + "/"
}

// fetchListing 经由 gateway 抓取一个目录页并整页读入。单次尝试，不重试。
func (l *Lister) fetchListing(ctx context.Context, rawURL string, creds gateway.Credentials) (string, error) {
	resp, err := l.gw.Fetch(ctx, rawURL, creds)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("server returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read listing body: %w", err)
	}
	return string(body), nil
}
