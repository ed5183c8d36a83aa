package config

import (
	"errors"
	"net/url"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}
	if g.ThumbnailMaxWidth <= 0 {
		return newFieldError("Global.ThumbnailMaxWidth", "必须大于 0")
	}
	if g.ThumbnailMaxHeight <= 0 {
		return newFieldError("Global.ThumbnailMaxHeight", "必须大于 0")
	}
	if g.ThumbnailQuality <= 0 || g.ThumbnailQuality > 100 {
		return newFieldError("Global.ThumbnailQuality", "必须在 1-100")
	}

	if len(c.Libraries) == 0 {
		return errors.New("至少需要配置一个 Library")
	}

	seenNames := map[string]struct{}{}
	for i := range c.Libraries {
		lib := &c.Libraries[i]
		if lib.Name == "" {
			return newFieldError("Library[].Name", "不能为空")
		}
		if _, exists := seenNames[lib.Name]; exists {
			return newFieldError(libraryField(lib.Name, "Name"), "重复")
		}
		seenNames[lib.Name] = struct{}{}

		if err := validateUpstream(lib.Upstream); err != nil {
			return newFieldError(libraryField(lib.Name, "Upstream"), err.Error())
		}

		// 用户名/密码必须成对出现，否则 gateway 无法构造 Basic 认证头。
		if (lib.Username == "") != (lib.Password == "") {
			return newFieldError(libraryField(lib.Name, "Username"), "用户名与密码必须同时配置")
		}
	}

	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return errors.New("不能为空")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return errors.New("不是合法的 URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("仅支持 http/https")
	}
	if parsed.Host == "" {
		return errors.New("缺少主机名")
	}
	return nil
}

// CredentialModes 汇总各 Library 的认证模式，用于启动日志输出。
func CredentialModes(libraries []LibraryConfig) map[string]string {
	modes := make(map[string]string, len(libraries))
	for _, lib := range libraries {
		modes[lib.Name] = lib.AuthMode()
	}
	return modes
}
