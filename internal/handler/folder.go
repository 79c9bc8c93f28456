package handler

import (
	"MediaVault/internal/dto"
	"MediaVault/internal/service"
	"MediaVault/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CreateFolder creates an album.
func CreateFolder(c *gin.Context) {
	var req dto.FolderCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	folder, err := service.CreateFolder(c.Request.Context(), currentUserID(c), req.Name)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, folder)
}

// ListFolders lists the caller's folders.
func ListFolders(c *gin.Context) {
	folders, err := service.ListFolders(c.Request.Context(), currentUserID(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, folders)
}

// RenameFolder renames a user folder.
func RenameFolder(c *gin.Context) {
	var req dto.FolderRenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	folder, err := service.RenameFolder(c.Request.Context(), currentUserID(c), req.FolderID, req.Name)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, folder)
}

// DeleteFolder deletes a user folder; its assets are untouched.
func DeleteFolder(c *gin.Context) {
	var req dto.FolderIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := service.DeleteFolder(c.Request.Context(), currentUserID(c), req.FolderID); err != nil {
		utils.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "success"})
}

// AddToFolder puts an asset into a folder.
func AddToFolder(c *gin.Context) {
	var req dto.FolderMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := service.AddToFolder(c.Request.Context(), currentUserID(c), req.AssetID, req.FolderID); err != nil {
		utils.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "success"})
}

// RemoveFromFolder takes an asset out of a folder.
func RemoveFromFolder(c *gin.Context) {
	var req dto.FolderMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := service.RemoveFromFolder(c.Request.Context(), currentUserID(c), req.AssetID, req.FolderID); err != nil {
		utils.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "success"})
}
