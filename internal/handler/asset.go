package handler

import (
	"MediaVault/internal/dto"
	"MediaVault/internal/logger"
	"MediaVault/internal/service"
	"MediaVault/utils"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func currentUserID(c *gin.Context) uint64 {
	return c.MustGet("user_id").(uint64)
}

func assetIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.BadRequest(c, "invalid asset id")
		return 0, false
	}
	return id, true
}

// UploadAssets ingests a multipart batch under the "files" field.
func UploadAssets(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		utils.BadRequest(c, "invalid multipart form: "+err.Error())
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		utils.BadRequest(c, "files required")
		return
	}
	allOrNothing, _ := strconv.ParseBool(c.PostForm("all_or_nothing"))

	files := make([]*dto.UploadFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, dto.FromMultipart(fh))
	}
	result, err := service.Ingest(c.Request.Context(), currentUserID(c), files, dto.IngestOptions{AllOrNothing: allOrNothing})
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, result)
}

// ListAssets returns a filtered, paginated asset list.
func ListAssets(c *gin.Context) {
	var req dto.AssetListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 50
	}
	assets, total, err := service.ListAssets(c.Request.Context(), currentUserID(c), &req)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, dto.AssetListResponse{
		Assets:   assets,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
}

// GetAsset returns one asset with its folders.
func GetAsset(c *gin.Context) {
	id, ok := assetIDParam(c)
	if !ok {
		return
	}
	asset, err := service.GetAsset(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, asset)
}

// AssetURL returns a short-lived read URL for an active asset.
func AssetURL(c *gin.Context) {
	id, ok := assetIDParam(c)
	if !ok {
		return
	}
	url, ttl, err := service.AssetURL(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, dto.AssetURLResponse{URL: url, ExpiresIn: int64(ttl.Seconds())})
}

// AssetContent streams the stored bytes of an active asset.
func AssetContent(c *gin.Context) {
	id, ok := assetIDParam(c)
	if !ok {
		return
	}
	asset, body, info, err := service.OpenAsset(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	defer body.Close()

	name := utils.SanitizeHeaderFilename(asset.OriginalName)
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", name))
	c.Header("Content-Type", asset.MimeType)
	if info.Size > 0 {
		c.Header("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, body); err != nil {
		logger.L().Warn("asset stream aborted", "asset_id", id, "error", err)
	}
}

// SetFavorite flags or unflags an asset.
func SetFavorite(c *gin.Context) {
	var req dto.FavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := service.SetFavorite(c.Request.Context(), currentUserID(c), req.AssetID, req.Favorite); err != nil {
		utils.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "success"})
}
