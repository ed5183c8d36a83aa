package thumbnail

import "strings"

// CacheKey 是缩略图缓存的寻址标识，由服务器地址与系列名确定性推导。
type CacheKey string

// remoteKeyPrefix 区分远端服务器条目与共用同一存储的本地导入条目。
const remoteKeyPrefix = "server//"

// RemoteKey 推导远端系列的缓存标识。相同的 (server, series) 永远得到
// 相同的 key；服务器末尾斜杠在推导前归一化掉，避免同一地址产生两个条目。
func RemoteKey(server, series string) CacheKey {
	return CacheKey(remoteKeyPrefix + strings.TrimSuffix(server, "/") + "/" + series)
}
