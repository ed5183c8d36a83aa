package catalog

import "fmt"

// ServerUnreachableError 表示无法抓取服务器根目录。面向用户的提示只包含
// 服务器地址，不携带底层堆栈。
type ServerUnreachableError struct {
	Server string
	Err    error
}

func (e *ServerUnreachableError) Error() string {
	return fmt.Sprintf("could not connect to %s: check the URL and your network connection", e.Server)
}

func (e *ServerUnreachableError) Unwrap() error {
	return e.Err
}

// VolumeListError 表示某个系列的卷枚举失败。按系列粒度上报，
// 单个坏掉的系列不应中断整个目录渲染。
type VolumeListError struct {
	Series string
	Err    error
}

func (e *VolumeListError) Error() string {
	return fmt.Sprintf("could not load volumes for %q: check the server for a valid directory", e.Series)
}

func (e *VolumeListError) Unwrap() error {
	return e.Err
}
