package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// CatalogFields 提供 library/series 维度的字段，供目录与封面日志复用。
func CatalogFields(action, library, series string) logrus.Fields {
	fields := logrus.Fields{
		"action":  action,
		"library": library,
	}
	if series != "" {
		fields["series"] = series
	}
	return fields
}

// UpstreamFields 提供上游请求的通用字段，供 gateway 日志复用。
func UpstreamFields(action, upstream, authMode string, status int) logrus.Fields {
	return logrus.Fields{
		"action":          action,
		"upstream":        upstream,
		"auth_mode":       authMode,
		"upstream_status": status,
	}
}
