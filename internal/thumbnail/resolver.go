package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mokuro-hub/mokuro-hub/internal/catalog"
	"github.com/mokuro-hub/mokuro-hub/internal/gateway"
	"github.com/mokuro-hub/mokuro-hub/internal/logging"
)

// CoverArt 是一次封面解析的结果。Image 为空表示无法得到封面，
// 调用方应继续渲染系列名而不是报错。
type CoverArt struct {
	Image       []byte
	ContentType string
	VolumeCount int
	CacheHit    bool
}

// ResolverOptions 聚合 Resolver 的依赖与缩放参数。
type ResolverOptions struct {
	Lister    *catalog.Lister
	Gateway   *gateway.Gateway
	Store     Store
	Logger    *logrus.Logger
	MaxWidth  int
	MaxHeight int
	Quality   int
}

// Resolver orchestrates 封面解析：查缓存 → 选首个带元数据的卷 →
// 抓元数据 → 抓首页图片 → 缩放 → 写缓存。
type Resolver struct {
	lister    *catalog.Lister
	gw        *gateway.Gateway
	store     Store
	logger    *logrus.Logger
	maxWidth  int
	maxHeight int
	quality   int
}

// NewResolver constructs a cover-art resolver from its options.
func NewResolver(opts ResolverOptions) *Resolver {
	return &Resolver{
		lister:    opts.Lister,
		gw:        opts.Gateway,
		store:     opts.Store,
		logger:    opts.Logger,
		maxWidth:  opts.MaxWidth,
		maxHeight: opts.MaxHeight,
		quality:   opts.Quality,
	}
}

// ResolveCoverArt 返回系列封面与卷数。命中缓存时 VolumeCount 为 0：
// 调用方总能通过 ListVolumes 重新得到真实数量，这里不为命中路径买单。
// 卷枚举失败是唯一的致命错误；之后的每一步失败都降级为“无封面”。
func (r *Resolver) ResolveCoverArt(ctx context.Context, server, series string, creds gateway.Credentials) (CoverArt, error) {
	key := RemoteKey(server, series)

	if result, err := r.store.Get(ctx, key); err == nil {
		data, readErr := io.ReadAll(result.Reader)
		result.Reader.Close()
		if readErr == nil {
			return CoverArt{
				Image:       data,
				ContentType: result.Record.ContentType,
				CacheHit:    true,
			}, nil
		}
		r.logDegraded(server, series, "cache_read_failed", readErr)
	} else if !errors.Is(err, ErrNotFound) {
		r.logDegraded(server, series, "cache_get_failed", err)
	}

	volumes, err := r.lister.ListVolumes(ctx, server, series, creds)
	if err != nil {
		return CoverArt{}, err
	}
	if len(volumes) == 0 {
		return CoverArt{}, nil
	}
	count := len(volumes)

	chosen := ""
	for _, v := range volumes {
		if v.HasMetadata {
			chosen = v.Name
			break
		}
	}
	if chosen == "" {
		return CoverArt{VolumeCount: count}, nil
	}

	seriesRoot := strings.TrimSuffix(catalog.VolumeRoot(server, series), "/")
	metaURL := seriesRoot + "/" + url.PathEscape(chosen) + catalog.MetadataSuffix

	meta, err := r.fetchMetadata(ctx, metaURL, creds)
	if err != nil {
		r.logDegraded(server, series, "metadata_fetch_failed", err)
		return CoverArt{VolumeCount: count}, nil
	}
	imgPath := meta.firstPageImage()
	if imgPath == "" {
		r.logDegraded(server, series, "metadata_empty_pages", nil)
		return CoverArt{VolumeCount: count}, nil
	}

	imgURL := seriesRoot + "/" + url.PathEscape(chosen) + "/" + escapeImagePath(imgPath)
	raw, err := r.fetchBytes(ctx, imgURL, creds)
	if err != nil {
		r.logDegraded(server, series, "image_fetch_failed", err)
		return CoverArt{VolumeCount: count}, nil
	}

	resized, err := Resize(raw, r.maxWidth, r.maxHeight, r.quality)
	if err != nil {
		r.logDegraded(server, series, "image_decode_failed", err)
		return CoverArt{VolumeCount: count}, nil
	}

	// 只有整条派生链成功后才写缓存，取消或失败不会留下半成品记录。
	if _, err := r.store.Put(ctx, key, coverContentType, bytes.NewReader(resized)); err != nil {
		// 配额等写入失败不影响本次结果，下一次未命中时重新派生。
		r.logDegraded(server, series, "cache_put_failed", err)
	}

	return CoverArt{
		Image:       resized,
		ContentType: coverContentType,
		VolumeCount: count,
	}, nil
}

// Invalidate 显式清除一个系列的缓存封面。
func (r *Resolver) Invalidate(ctx context.Context, server, series string) error {
	return r.store.Remove(ctx, RemoteKey(server, series))
}

func (r *Resolver) fetchMetadata(ctx context.Context, rawURL string, creds gateway.Credentials) (*volumeMetadata, error) {
	resp, err := r.gw.Fetch(ctx, rawURL, creds)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return parseVolumeMetadata(resp.Body)
}

func (r *Resolver) fetchBytes(ctx context.Context, rawURL string, creds gateway.Credentials) ([]byte, error) {
	resp, err := r.gw.Fetch(ctx, rawURL, creds)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (r *Resolver) logDegraded(server, series, reason string, err error) {
	fields := logging.CatalogFields("cover_degraded", server, series)
	fields["reason"] = reason
	if err != nil {
		fields["error"] = err.Error()
	}
	r.logger.WithFields(fields).Warn("cover_degraded")
}

// escapeImagePath 对 img_path 按路径段做百分号编码，保留目录结构。
func escapeImagePath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
