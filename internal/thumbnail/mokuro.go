package thumbnail

import (
	"encoding/json"
	"fmt"
	"io"
)

// volumeMetadata 只映射 .mokuro 边车文件中本子系统消费的字段。
// 除了 pages 非空之外不做任何语义校验。
type volumeMetadata struct {
	Pages []struct {
		ImgPath string `json:"img_path"`
	} `json:"pages"`
}

func parseVolumeMetadata(r io.Reader) (*volumeMetadata, error) {
	var meta volumeMetadata
	if err := json.NewDecoder(r).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode volume metadata: %w", err)
	}
	return &meta, nil
}

// firstPageImage 返回首页图片的相对路径；pages 为空或字段缺失时返回 ""。
func (m *volumeMetadata) firstPageImage() string {
	if m == nil || len(m.Pages) == 0 {
		return ""
	}
	return m.Pages[0].ImgPath
}
