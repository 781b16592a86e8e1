package service

import (
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/bannerhub/internal/config"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// ImageUpload 待上传的图片
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.ReadSeeker
}

// ImageInspector 校验图片大小、扩展名、类型与尺寸
type ImageInspector struct {
	cfg config.UploadConfig
}

// NewImageInspector 创建图片校验器
func NewImageInspector(cfg config.UploadConfig) *ImageInspector {
	return &ImageInspector{cfg: cfg}
}

// Inspect 校验通过后返回小写扩展名与识别出的 MIME 类型，读取位置重置到开头
func (i *ImageInspector) Inspect(upload *ImageUpload) (string, string, error) {
	if upload == nil || upload.Content == nil {
		return "", "", ErrImageRequired
	}
	if i.cfg.MaxSize > 0 && upload.Size > i.cfg.MaxSize {
		return "", "", fmt.Errorf("%w: max %d MB", ErrImageTooLarge, i.cfg.MaxSize/1024/1024)
	}

	ext := strings.ToLower(filepath.Ext(upload.Filename))
	if len(i.cfg.AllowedExtensions) > 0 {
		if ext == "" || !isAllowedExtension(ext, i.cfg.AllowedExtensions) {
			return "", "", fmt.Errorf("%w: extension %q", ErrImageTypeNotAllowed, ext)
		}
	}

	// 读取文件头部识别 MIME 类型
	buffer := make([]byte, 512)
	n, err := upload.Content.Read(buffer)
	if err != nil && err != io.EOF {
		return "", "", err
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", "", err
	}
	contentType := http.DetectContentType(buffer[:n])
	if !strings.HasPrefix(contentType, "image/") {
		return "", "", fmt.Errorf("%w: %s", ErrImageTypeNotAllowed, contentType)
	}
	if len(i.cfg.AllowedTypes) > 0 && !containsFold(i.cfg.AllowedTypes, contentType) {
		return "", "", fmt.Errorf("%w: %s", ErrImageTypeNotAllowed, contentType)
	}

	width, height, err := decodeImageDimensions(upload.Content, contentType)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrImageInvalid, err)
	}
	if i.cfg.MaxWidth > 0 && width > i.cfg.MaxWidth {
		return "", "", fmt.Errorf("%w: width exceeds %d", ErrImageTooLarge, i.cfg.MaxWidth)
	}
	if i.cfg.MaxHeight > 0 && height > i.cfg.MaxHeight {
		return "", "", fmt.Errorf("%w: height exceeds %d", ErrImageTooLarge, i.cfg.MaxHeight)
	}

	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", "", err
	}
	return ext, contentType, nil
}

func containsFold(items []string, target string) bool {
	for _, item := range items {
		if strings.EqualFold(strings.TrimSpace(item), target) {
			return true
		}
	}
	return false
}

func isAllowedExtension(ext string, allowed []string) bool {
	for _, allowedExt := range allowed {
		normalized := strings.ToLower(strings.TrimSpace(allowedExt))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if strings.EqualFold(ext, normalized) {
			return true
		}
	}
	return false
}

func decodeImageDimensions(src io.ReadSeeker, contentType string) (int, int, error) {
	if strings.EqualFold(contentType, "image/webp") {
		return decodeWebPDimensions(src)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return 0, 0, err
	}
	cfg, _, err := image.DecodeConfig(src)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// webpChunkPrefix 识别宽高所需的 chunk 头部字节数
const webpChunkPrefix = 10

// decodeWebPDimensions 按 RIFF chunk 解析 WebP 宽高
// chunk 长度不得超过文件剩余字节，未识别的 chunk 直接跳过不读入内存
func decodeWebPDimensions(src io.ReadSeeker) (int, int, error) {
	total, err := src.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, 0, err
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return 0, 0, err
	}
	header := make([]byte, 12)
	if _, err := io.ReadFull(src, header); err != nil {
		return 0, 0, err
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WEBP" {
		return 0, 0, fmt.Errorf("invalid webp header")
	}

	offset := int64(len(header))
	chunkHeader := make([]byte, 8)
	for {
		if _, err := io.ReadFull(src, chunkHeader); err != nil {
			return 0, 0, err
		}
		offset += int64(len(chunkHeader))
		chunkType := string(chunkHeader[0:4])
		chunkSize := int64(binary.LittleEndian.Uint32(chunkHeader[4:8]))
		if chunkSize > total-offset {
			return 0, 0, fmt.Errorf("webp chunk %q declares %d bytes, %d left", chunkType, chunkSize, total-offset)
		}

		switch chunkType {
		case "VP8X", "VP8 ", "VP8L":
			n := chunkSize
			if n > webpChunkPrefix {
				n = webpChunkPrefix
			}
			data := make([]byte, n)
			if _, err := io.ReadFull(src, data); err != nil {
				return 0, 0, err
			}
			return webpChunkDimensions(chunkType, data)
		}

		skip := chunkSize + chunkSize%2
		if _, err := src.Seek(skip, io.SeekCurrent); err != nil {
			return 0, 0, err
		}
		offset += skip
	}
}

func webpChunkDimensions(chunkType string, data []byte) (int, int, error) {
	switch chunkType {
	case "VP8X":
		if len(data) < 10 {
			return 0, 0, fmt.Errorf("short VP8X chunk")
		}
		width := 1 + int(data[4]) + int(data[5])<<8 + int(data[6])<<16
		height := 1 + int(data[7]) + int(data[8])<<8 + int(data[9])<<16
		return width, height, nil
	case "VP8 ":
		if len(data) < 10 {
			return 0, 0, fmt.Errorf("short VP8 chunk")
		}
		width := int(binary.LittleEndian.Uint16(data[6:8]) & 0x3FFF)
		height := int(binary.LittleEndian.Uint16(data[8:10]) & 0x3FFF)
		return width, height, nil
	}
	if len(data) < 5 || data[0] != 0x2f {
		return 0, 0, fmt.Errorf("invalid VP8L chunk")
	}
	bits := binary.LittleEndian.Uint32(data[1:5])
	return int(bits&0x3FFF) + 1, int((bits>>14)&0x3FFF) + 1, nil
}
