package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bannerhub/internal/config"
	"github.com/bannerhub/internal/constants"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// StoredImage 已上传图片
type StoredImage struct {
	URL      string
	PublicID string
}

// ImageStore 图片存储
type ImageStore interface {
	Upload(ctx context.Context, upload *ImageUpload, ext string) (StoredImage, error)
	Delete(ctx context.Context, publicID string) error
}

// NewImageStore 按配置选择 Cloudinary 或本地存储
func NewImageStore(cloudCfg config.CloudinaryConfig, uploadCfg config.UploadConfig) (ImageStore, error) {
	if cloudCfg.Enabled {
		return NewCloudinaryImageStore(cloudCfg)
	}
	return NewLocalImageStore(uploadCfg.LocalDir), nil
}

// CloudinaryImageStore Cloudinary 图床
type CloudinaryImageStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryImageStore 创建 Cloudinary 图床客户端
func NewCloudinaryImageStore(cfg config.CloudinaryConfig) (*CloudinaryImageStore, error) {
	var (
		cld *cloudinary.Cloudinary
		err error
	)
	if rawURL := strings.TrimSpace(cfg.URL); rawURL != "" {
		cld, err = cloudinary.NewFromURL(rawURL)
	} else {
		cld, err = cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	}
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	folder := strings.Trim(strings.TrimSpace(cfg.Folder), "/")
	if folder == "" {
		folder = constants.ImageFolderBanners
	}
	return &CloudinaryImageStore{cld: cld, folder: folder}, nil
}

// Upload 上传图片
func (s *CloudinaryImageStore) Upload(ctx context.Context, upload *ImageUpload, ext string) (StoredImage, error) {
	result, err := s.cld.Upload.Upload(ctx, upload.Content, uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     uuid.NewString(),
		ResourceType: "image",
	})
	if err != nil {
		return StoredImage{}, err
	}
	if result.Error.Message != "" {
		return StoredImage{}, fmt.Errorf("cloudinary: %s", result.Error.Message)
	}
	url := result.SecureURL
	if url == "" {
		url = strings.Replace(result.URL, "http://", "https://", 1)
	}
	return StoredImage{URL: url, PublicID: result.PublicID}, nil
}

// Delete 删除图片
func (s *CloudinaryImageStore) Delete(ctx context.Context, publicID string) error {
	if strings.TrimSpace(publicID) == "" {
		return nil
	}
	_, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID, ResourceType: "image"})
	return err
}

// LocalImageStore 本地磁盘存储，路径形如 <dir>/banners/2025/01/<uuid>.png
type LocalImageStore struct {
	dir string
	now func() time.Time
}

// NewLocalImageStore 创建本地存储
func NewLocalImageStore(dir string) *LocalImageStore {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "uploads"
	}
	return &LocalImageStore{dir: dir, now: time.Now}
}

// Upload 保存到本地，PublicID 为相对路径
func (s *LocalImageStore) Upload(ctx context.Context, upload *ImageUpload, ext string) (StoredImage, error) {
	if err := ctx.Err(); err != nil {
		return StoredImage{}, err
	}
	now := s.now()
	publicID := path.Join(constants.ImageFolderBanners, now.Format("2006"), now.Format("01"), uuid.NewString()+ext)
	savePath := filepath.Join(s.dir, filepath.FromSlash(publicID))
	if err := os.MkdirAll(filepath.Dir(savePath), 0755); err != nil {
		return StoredImage{}, err
	}
	dst, err := os.Create(savePath)
	if err != nil {
		return StoredImage{}, err
	}
	if _, err := io.Copy(dst, upload.Content); err != nil {
		_ = dst.Close()
		_ = os.Remove(savePath)
		return StoredImage{}, err
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(savePath)
		return StoredImage{}, err
	}
	return StoredImage{URL: "/uploads/" + publicID, PublicID: publicID}, nil
}

// Delete 删除本地文件，不存在视为成功
func (s *LocalImageStore) Delete(ctx context.Context, publicID string) error {
	publicID = strings.TrimSpace(publicID)
	if publicID == "" {
		return nil
	}
	clean := path.Clean("/" + publicID)
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(strings.TrimPrefix(clean, "/"))))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
