package service

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strings"

	"ShareDrop/config"
	"ShareDrop/internal/apperr"
	"ShareDrop/internal/cipher"
	"ShareDrop/internal/dto"
	"ShareDrop/internal/logger"
	"ShareDrop/internal/repo"
	"ShareDrop/internal/session"
	"ShareDrop/internal/storage"
	"ShareDrop/internal/worker"
	"ShareDrop/model"
	"ShareDrop/utils"

	"go.uber.org/zap"
)

// MailPublisher is the queueing side of the notification pipeline.
type MailPublisher interface {
	PublishMail(ctx context.Context, body []byte) error
}

// UploadService receives files, persists their records and lays the
// artifacts out on disk, encrypting them first when requested.
type UploadService struct {
	cfg      *config.Config
	store    *repo.Store
	layout   *storage.Layout
	mirror   *storage.Mirror
	cipher   cipher.Gateway
	sessions *session.Manager
	mail     MailPublisher
}

// NewUploadService wires the upload pipeline. mail may be nil, in which
// case notifications are sent inline over SMTP.
func NewUploadService(
	cfg *config.Config,
	store *repo.Store,
	layout *storage.Layout,
	mirror *storage.Mirror,
	gateway cipher.Gateway,
	sessions *session.Manager,
	mail MailPublisher,
) *UploadService {
	return &UploadService{
		cfg:      cfg,
		store:    store,
		layout:   layout,
		mirror:   mirror,
		cipher:   gateway,
		sessions: sessions,
		mail:     mail,
	}
}

// Process handles one upload form submission: it creates the upload record
// alongside the first file, then records and stores each remaining file in
// its own transaction.
func (s *UploadService) Process(
	ctx context.Context,
	sid string,
	form dto.UploadForm,
	headers []*multipart.FileHeader,
	emails []string,
) (*dto.UploadResult, error) {
	if len(headers) == 0 {
		return nil, apperr.Securityf("no file uploaded")
	}
	if s.cfg.MaxFileCount > 0 && len(headers) > s.cfg.MaxFileCount {
		return nil, apperr.Securityf("upload exceeds the limit of %d files", s.cfg.MaxFileCount)
	}

	password := ""
	if form.Protect {
		password = form.Password
	}
	passwd := ""
	if password != "" {
		hash, err := utils.GetPwd(password)
		if err != nil {
			return nil, apperr.Operational(err, "hash password")
		}
		passwd = hash
	}

	// Encryption needs a passphrase to hand the cipher, so it is only
	// honored on password-protected uploads.
	crypt := form.Crypt && s.cfg.AllowCrypt && password != ""

	upload := &model.Upload{
		Slug:     utils.NewSlug(),
		Lifetime: s.cfg.DefaultLifetime,
		Passwd:   passwd,
		Crypt:    crypt,
	}

	result := &dto.UploadResult{
		Slug:     upload.Slug,
		ShareURL: s.ShareURL(upload.Slug),
		Lifetime: upload.Lifetime,
		Crypt:    crypt,
	}

	for i, header := range headers {
		info, err := s.processFile(upload, i == 0, header, password)
		if err != nil {
			return nil, err
		}
		result.Files = append(result.Files, *info)
	}

	if err := s.sessions.RememberUpload(ctx, sid, upload.Slug); err != nil {
		logger.Warn("remember upload for session failed", zap.Error(err))
	}

	if form.SendByMail && len(emails) > 0 {
		s.notify(ctx, result, form, emails)
	}

	return result, nil
}

// processFile stores one file inside its own transaction. The upload row
// rides along with the first file so an upload without any stored file
// never becomes visible.
func (s *UploadService) processFile(
	upload *model.Upload,
	first bool,
	header *multipart.FileHeader,
	passphrase string,
) (*dto.FileInfo, error) {
	txn := s.store.Txn()
	if err := txn.Begin(); err != nil {
		return nil, apperr.Operational(err, "begin transaction")
	}

	if first {
		if err := txn.SaveUpload(upload); err != nil {
			_ = txn.Rollback()
			return nil, apperr.Operational(err, "save upload")
		}
	}

	file := &model.File{
		UploadID: upload.ID,
		Slug:     utils.NewSlug(),
		Filename: header.Filename,
		Filesize: header.Size,
	}

	relPath, err := s.placeFile(file.Slug, header, upload.Crypt, passphrase)
	if err != nil {
		_ = txn.Rollback()
		return nil, err
	}
	file.File = relPath

	if err := txn.SaveFile(file); err != nil {
		_ = txn.Rollback()
		s.discardArtifact(relPath, upload.Crypt)
		return nil, apperr.Operational(err, "save file")
	}
	if err := txn.Commit(); err != nil {
		s.discardArtifact(relPath, upload.Crypt)
		return nil, apperr.Operational(err, "commit file")
	}

	storedPath := relPath
	if upload.Crypt {
		storedPath += s.cfg.CryptSuffix
	}
	if err := s.mirror.Put(context.Background(), storedPath, s.layout.Resolve(storedPath)); err != nil {
		logger.Warn("mirror upload failed", zap.String("path", storedPath), zap.Error(err))
	}

	return &dto.FileInfo{
		Slug:     file.Slug,
		Filename: file.Filename,
		Filesize: file.Filesize,
	}, nil
}

// placeFile writes the uploaded bytes into the sharded layout and, for
// encrypted uploads, replaces the plaintext with the cipher artifact.
func (s *UploadService) placeFile(
	slug string,
	header *multipart.FileHeader,
	crypt bool,
	passphrase string,
) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", apperr.Operational(err, "open uploaded file")
	}
	defer src.Close()

	relPath, err := s.layout.Place(slug, src)
	if err != nil {
		return "", apperr.Operational(err, "store uploaded file")
	}

	if !crypt {
		return relPath, nil
	}

	plainPath := s.layout.Resolve(relPath)
	cryptRel := relPath + s.cfg.CryptSuffix
	if err := s.cipher.Encrypt(plainPath, passphrase, s.layout.Resolve(cryptRel)); err != nil {
		_ = s.layout.Remove(relPath)
		return "", apperr.Operational(err, "encrypt uploaded file")
	}
	if err := s.layout.Remove(relPath); err != nil {
		logger.Warn("remove plaintext after encryption failed", zap.String("path", relPath), zap.Error(err))
	}
	if err := s.layout.Chmod(cryptRel); err != nil {
		logger.Warn("chmod cipher artifact failed", zap.String("path", cryptRel), zap.Error(err))
	}
	return relPath, nil
}

func (s *UploadService) discardArtifact(relPath string, crypt bool) {
	if crypt {
		relPath += s.cfg.CryptSuffix
	}
	if err := s.layout.Remove(relPath); err != nil {
		logger.Warn("discard artifact failed", zap.String("path", relPath), zap.Error(err))
	}
}

// ShareURL builds the public download link for an upload slug.
func (s *UploadService) ShareURL(slug string) string {
	return fmt.Sprintf("%s/api/download/%s", s.cfg.BaseURL, slug)
}

// LastUploadResult rebuilds the success payload for the upload this session
// just created.
func (s *UploadService) LastUploadResult(ctx context.Context, sid string) (*dto.UploadResult, error) {
	slug, ok := s.sessions.LastUpload(ctx, sid)
	if !ok {
		return nil, apperr.NotFoundf("no recent upload for this session")
	}

	txn := s.store.Txn()
	upload, err := txn.GetUploadBySlug(slug)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, apperr.NotFoundf("upload %s not found", slug)
		}
		return nil, apperr.Operational(err, "load upload")
	}
	files, err := txn.GetFilesForUpload(upload.ID)
	if err != nil {
		return nil, apperr.Operational(err, "load files")
	}

	result := &dto.UploadResult{
		Slug:     upload.Slug,
		ShareURL: s.ShareURL(upload.Slug),
		Lifetime: upload.Lifetime,
		Crypt:    upload.Crypt,
	}
	for _, f := range files {
		result.Files = append(result.Files, dto.FileInfo{
			Slug:     f.Slug,
			Filename: f.Filename,
			Filesize: f.Filesize,
		})
	}
	return result, nil
}

// notify queues the share notification, or delivers it inline when no
// queue is wired. Notification failures never fail the upload.
func (s *UploadService) notify(ctx context.Context, result *dto.UploadResult, form dto.UploadForm, emails []string) {
	if s.cfg.MaxEmail > 0 && len(emails) > s.cfg.MaxEmail {
		emails = emails[:s.cfg.MaxEmail]
	}

	subject := strings.TrimSpace(form.EmailSubject)
	if subject == "" {
		subject = "Files have been shared with you"
	}

	var body strings.Builder
	if msg := strings.TrimSpace(form.EmailMessage); msg != "" {
		body.WriteString(msg)
		body.WriteString("\n\n")
	}
	body.WriteString("Download link: ")
	body.WriteString(result.ShareURL)
	body.WriteString("\n\nShared files:\n")
	for _, f := range result.Files {
		fmt.Fprintf(&body, "  - %s (%d bytes)\n", f.Filename, f.Filesize)
	}
	fmt.Fprintf(&body, "\nThe link expires after %d days.\n", result.Lifetime)

	if s.mail == nil {
		if err := utils.SendMail(&s.cfg.SMTP, emails, subject, body.String()); err != nil {
			logger.Warn("inline mail delivery failed", zap.Error(err))
		}
		return
	}

	job := worker.MailJob{To: emails, Subject: subject, Body: body.String()}
	payload, err := json.Marshal(job)
	if err != nil {
		logger.Warn("encode mail job failed", zap.Error(err))
		return
	}
	if err := s.mail.PublishMail(ctx, payload); err != nil {
		logger.Warn("queue mail job failed", zap.Error(err))
	}
}
