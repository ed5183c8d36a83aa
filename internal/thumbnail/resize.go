package thumbnail

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// coverContentType 是缩略图统一的输出格式。
const coverContentType = "image/jpeg"

// Resize 将图片等比缩放进 maxWidth×maxHeight 的包围盒：宽图按宽度收敛，
// 高图按高度收敛，已经在界内的图片不会被放大。输出固定以有损质量重编码，
// 用保真度换缓存体积。
func Resize(data []byte, maxWidth, maxHeight, quality int) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width > height {
		if width > maxWidth {
			src = imaging.Resize(src, maxWidth, 0, imaging.Lanczos)
		}
	} else {
		if height > maxHeight {
			src = imaging.Resize(src, 0, maxHeight, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, src, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
