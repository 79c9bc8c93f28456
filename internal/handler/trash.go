package handler

import (
	"MediaVault/internal/dto"
	"MediaVault/internal/service"
	"MediaVault/model"
	"MediaVault/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

// DeleteAssets moves assets to the trash; per-asset failures are reported, not fatal.
func DeleteAssets(c *gin.Context) {
	var req dto.BatchAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	result := service.BatchSoftDelete(c.Request.Context(), currentUserID(c), req.AssetIDs)
	utils.Success(c, result)
}

// RestoreAsset returns a trashed asset to the library.
func RestoreAsset(c *gin.Context) {
	var req dto.AssetIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := service.Restore(c.Request.Context(), currentUserID(c), req.AssetID); err != nil {
		utils.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "success"})
}

// PurgeAsset permanently deletes a trashed asset and frees its bytes.
func PurgeAsset(c *gin.Context) {
	var req dto.AssetIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := service.PurgeAsset(c.Request.Context(), currentUserID(c), req.AssetID); err != nil {
		utils.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "success"})
}

// ListTrash lists trashed assets, most recently trashed first unless ordered otherwise.
func ListTrash(c *gin.Context) {
	var req dto.AssetListRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	req.State = model.StateTrashed
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

// EmptyTrash purges every trashed asset of the caller.
func EmptyTrash(c *gin.Context) {
	result, err := service.EmptyTrash(c.Request.Context(), currentUserID(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, result)
}
