package public

import (
	"mime/multipart"
	"net/http"
	"strings"

	handlershared "github.com/bannerhub/internal/http/handlers/shared"
	"github.com/bannerhub/internal/http/response"
	"github.com/bannerhub/internal/repository"
	"github.com/bannerhub/internal/service"

	"github.com/gin-gonic/gin"
)

var bannerErrorRules = handlershared.BannerErrorRules

// CreateBanner 创建 Banner（multipart，file 必填）
func (h *Handler) CreateBanner(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	req, ok := bindBannerForm(c)
	if !ok {
		return
	}
	upload, closeFile, err := readBannerFile(c)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	defer closeFile()
	if upload == nil {
		respondError(c, response.CodeBadRequest, "error.image_required", nil)
		return
	}

	banner, err := h.BannerService.Create(c.Request.Context(), req, actor, upload)
	if err != nil {
		respondMappedError(c, err, bannerErrorRules, "error.internal")
		return
	}
	response.Created(c, banner)
}

// UpdateBanner 部分更新 Banner，可替换图片
func (h *Handler) UpdateBanner(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	req, ok := bindBannerForm(c)
	if !ok {
		return
	}
	upload, closeFile, err := readBannerFile(c)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	defer closeFile()
	if req.IsEmpty() && upload == nil {
		respondError(c, response.CodeBadRequest, "error.banner_update_empty", nil)
		return
	}

	banner, err := h.BannerService.Update(c.Request.Context(), c.Param("id"), req, actor, upload)
	if err != nil {
		respondMappedError(c, err, bannerErrorRules, "error.internal")
		return
	}
	response.Success(c, banner)
}

// DeleteBanner 删除 Banner（所有者或管理员）
func (h *Handler) DeleteBanner(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	if err := h.BannerService.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		respondMappedError(c, err, bannerErrorRules, "error.internal")
		return
	}
	response.SuccessWithMsg(c, "deleted", nil)
}

// GetBanner Banner 详情（所有者或管理员）
func (h *Handler) GetBanner(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	banner, err := h.BannerService.Get(c.Param("id"), actor)
	if err != nil {
		respondMappedError(c, err, bannerErrorRules, "error.banner_fetch_failed")
		return
	}
	response.Success(c, banner)
}

// ListBanners 分页列表，非管理员只能看到自己的 Banner
func (h *Handler) ListBanners(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.ParsePagination(c)
	positionID, err := handlershared.ParseOptionalUint(c.Query("position_id"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.number_invalid", nil)
		return
	}
	userID, err := handlershared.ParseOptionalUint(c.Query("user_id"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.number_invalid", nil)
		return
	}
	filter := repository.BannerListFilter{Page: page, PageSize: pageSize}
	if positionID != nil {
		filter.PositionID = *positionID
	}
	if userID != nil {
		filter.UserID = *userID
	}

	banners, total, err := h.BannerService.List(filter, actor)
	if err != nil {
		respondError(c, response.CodeInternal, "error.banner_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, banners, handlershared.BuildPagination(page, pageSize, total))
}

// GetActiveBanners 公开接口：当前生效的 Banner
func (h *Handler) GetActiveBanners(c *gin.Context) {
	positionID, err := handlershared.ParseOptionalUint(c.Query("position_id"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.number_invalid", nil)
		return
	}
	var id uint
	if positionID != nil {
		id = *positionID
	}
	banners, err := h.BannerService.ListActive(id)
	if err != nil {
		respondError(c, response.CodeInternal, "error.banner_fetch_failed", err)
		return
	}
	response.Success(c, banners)
}

// bindBannerForm 读取表单字段，未出现的字段保持 nil
func bindBannerForm(c *gin.Context) (service.BannerRequest, bool) {
	var req service.BannerRequest
	if link, ok := c.GetPostForm("destination_link"); ok {
		link = strings.TrimSpace(link)
		req.DestinationLink = &link
	}
	if raw, ok := c.GetPostForm("position_id"); ok {
		id, err := handlershared.ParseOptionalUint(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "error.number_invalid", nil)
			return req, false
		}
		req.PositionID = id
	}
	if raw, ok := c.GetPostForm("start_date"); ok {
		start, err := handlershared.ParseDate(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "error.date_invalid", nil)
			return req, false
		}
		req.StartDate = start
	}
	if raw, ok := c.GetPostForm("end_date"); ok {
		end, err := handlershared.ParseDate(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "error.date_invalid", nil)
			return req, false
		}
		req.EndDate = end
	}
	if strategy, ok := c.GetPostForm("renewal_strategy"); ok && strings.TrimSpace(strategy) != "" {
		strategy = strings.ToLower(strings.TrimSpace(strategy))
		req.RenewalStrategy = &strategy
	}
	if raw, ok := c.GetPostForm("renewal_period"); ok {
		period, err := handlershared.ParseOptionalInt(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "error.number_invalid", nil)
			return req, false
		}
		req.RenewalPeriod = period
	}
	if raw, ok := c.GetPostForm("display_order"); ok {
		order, err := handlershared.ParseOptionalInt(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "error.number_invalid", nil)
			return req, false
		}
		req.DisplayOrder = order
	}
	return req, true
}

// readBannerFile 读取可选的 file 字段，返回的 close 函数总是可调用
func readBannerFile(c *gin.Context) (*service.ImageUpload, func(), error) {
	noop := func() {}
	header, err := c.FormFile("file")
	if err != nil {
		if err == http.ErrMissingFile || err == http.ErrNotMultipart {
			return nil, noop, nil
		}
		return nil, noop, err
	}
	file, err := header.Open()
	if err != nil {
		return nil, noop, err
	}
	return &service.ImageUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     file,
	}, func() { closeMultipartFile(file) }, nil
}

func closeMultipartFile(file multipart.File) {
	if file != nil {
		_ = file.Close()
	}
}
