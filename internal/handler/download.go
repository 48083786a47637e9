package handler

import (
	"net/http"

	"ShareDrop/config"
	"ShareDrop/internal/dto"
	"ShareDrop/internal/service"
	"ShareDrop/internal/session"
	"ShareDrop/utils"

	"github.com/gin-gonic/gin"
)

// DownloadHandler serves the download endpoints.
type DownloadHandler struct {
	cfg       *config.Config
	downloads *service.DownloadService
}

// NewDownloadHandler creates the download handler.
func NewDownloadHandler(cfg *config.Config, downloads *service.DownloadService) *DownloadHandler {
	return &DownloadHandler{cfg: cfg, downloads: downloads}
}

// Confirm describes an upload so the client can render the download page.
func (h *DownloadHandler) Confirm(c *gin.Context) {
	payload, err := h.downloads.Confirm(c.Request.Context(), session.ID(c), c.Param("slug"))
	if err != nil {
		utils.Fail(c, err, h.cfg.Debug)
		return
	}
	utils.Success(c, gin.H{"download": payload})
}

// Unlock checks the submitted password and redirects to the requested
// download on success.
func (h *DownloadHandler) Unlock(c *gin.Context) {
	slug := c.Param("slug")

	var form dto.UnlockForm
	_ = c.ShouldBind(&form)

	if err := h.downloads.Unlock(c.Request.Context(), session.ID(c), slug, form.Password); err != nil {
		utils.Fail(c, err, h.cfg.Debug)
		return
	}

	target := "/api/download/" + slug
	switch {
	case form.Target == "zip":
		target = "/api/download/zip/" + slug
	case form.Target != "":
		target = "/api/download/file/" + form.Target
	}
	c.Redirect(http.StatusFound, target)
}

// File streams a single stored file.
func (h *DownloadHandler) File(c *gin.Context) {
	err := h.downloads.SendFile(c.Request.Context(), session.ID(c), c.Writer, c.Request, c.Param("slug"))
	if err != nil {
		utils.Fail(c, err, h.cfg.Debug)
	}
}

// Zip streams the whole upload as one archive.
func (h *DownloadHandler) Zip(c *gin.Context) {
	err := h.downloads.StreamZip(c.Request.Context(), session.ID(c), c.Writer, c.Param("slug"))
	if err != nil {
		utils.Fail(c, err, h.cfg.Debug)
	}
}
