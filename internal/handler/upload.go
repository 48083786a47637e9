package handler

import (
	"fmt"
	"mime/multipart"
	"strings"

	"ShareDrop/config"
	"ShareDrop/internal/apperr"
	"ShareDrop/internal/dto"
	"ShareDrop/internal/service"
	"ShareDrop/internal/session"
	"ShareDrop/utils"

	"github.com/gin-gonic/gin"
)

// UploadHandler serves the upload endpoints.
type UploadHandler struct {
	cfg     *config.Config
	uploads *service.UploadService
}

// NewUploadHandler creates the upload handler.
func NewUploadHandler(cfg *config.Config, uploads *service.UploadService) *UploadHandler {
	return &UploadHandler{cfg: cfg, uploads: uploads}
}

// Upload accepts a multipart form with one or more files plus the share
// options and returns the share link.
func (h *UploadHandler) Upload(c *gin.Context) {
	var form dto.UploadForm
	if err := c.ShouldBind(&form); err != nil {
		utils.Fail(c, apperr.Securityf("invalid upload form"), h.cfg.Debug)
		return
	}

	mpForm, err := c.MultipartForm()
	if err != nil {
		utils.Fail(c, apperr.Securityf("invalid multipart form"), h.cfg.Debug)
		return
	}
	headers := collectFiles(mpForm)
	emails := collectEmails(c, h.cfg.MaxEmail)

	result, err := h.uploads.Process(c.Request.Context(), session.ID(c), form, headers, emails)
	if err != nil {
		utils.Fail(c, err, h.cfg.Debug)
		return
	}
	utils.Success(c, gin.H{
		"url":    h.cfg.BaseURL + "/api/upload-success",
		"upload": result,
	})
}

// UploadSuccess returns the share link of the upload this session just
// created, for the post-upload confirmation page.
func (h *UploadHandler) UploadSuccess(c *gin.Context) {
	result, err := h.uploads.LastUploadResult(c.Request.Context(), session.ID(c))
	if err != nil {
		utils.Fail(c, err, h.cfg.Debug)
		return
	}
	utils.Success(c, gin.H{"upload": result})
}

// collectFiles gathers file parts from both the repeated "file[]" field and
// numbered "file_0".."file_n" fields, so directory-mode and file-mode
// clients both work.
func collectFiles(form *multipart.Form) []*multipart.FileHeader {
	var headers []*multipart.FileHeader
	for _, key := range []string{"file[]", "files[]", "file"} {
		headers = append(headers, form.File[key]...)
	}
	for i := 0; ; i++ {
		fhs, ok := form.File[fmt.Sprintf("file_%d", i)]
		if !ok {
			break
		}
		headers = append(headers, fhs...)
	}
	return headers
}

// collectEmails gathers recipients from numbered "email_0".."email_n"
// fields, capped at max.
func collectEmails(c *gin.Context, max int) []string {
	var emails []string
	for i := 0; i < max; i++ {
		addr := strings.TrimSpace(c.PostForm(fmt.Sprintf("email_%d", i)))
		if addr == "" {
			continue
		}
		emails = append(emails, addr)
	}
	return emails
}
