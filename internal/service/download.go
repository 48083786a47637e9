package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"ShareDrop/config"
	"ShareDrop/internal/apperr"
	"ShareDrop/internal/cipher"
	"ShareDrop/internal/dto"
	"ShareDrop/internal/logger"
	"ShareDrop/internal/repo"
	"ShareDrop/internal/session"
	"ShareDrop/internal/storage"
	"ShareDrop/model"
	"ShareDrop/utils"

	"go.uber.org/zap"
)

// streamChunkSize is the buffer used when pushing file bytes to the client;
// each chunk is flushed so large downloads start immediately.
const streamChunkSize = 8 * 1024

// DownloadService gates access to uploads and streams their files.
type DownloadService struct {
	cfg      *config.Config
	store    *repo.Store
	layout   *storage.Layout
	cipher   cipher.Gateway
	sessions *session.Manager
}

// NewDownloadService wires the download side.
func NewDownloadService(
	cfg *config.Config,
	store *repo.Store,
	layout *storage.Layout,
	gateway cipher.Gateway,
	sessions *session.Manager,
) *DownloadService {
	return &DownloadService{
		cfg:      cfg,
		store:    store,
		layout:   layout,
		cipher:   gateway,
		sessions: sessions,
	}
}

func (s *DownloadService) loadUpload(txn *repo.Txn, slug string) (*model.Upload, error) {
	upload, err := txn.GetUploadBySlug(slug)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, apperr.NotFoundf("upload %s not found", slug)
		}
		return nil, apperr.Operational(err, "load upload")
	}
	return upload, nil
}

// Confirm describes the upload for the download confirmation page.
func (s *DownloadService) Confirm(ctx context.Context, sid, slug string) (*dto.ConfirmPayload, error) {
	txn := s.store.Txn()
	upload, err := s.loadUpload(txn, slug)
	if err != nil {
		return nil, err
	}
	files, err := txn.GetFilesForUpload(upload.ID)
	if err != nil {
		return nil, apperr.Operational(err, "load files")
	}

	payload := &dto.ConfirmPayload{
		Slug:      upload.Slug,
		Protected: upload.HasPassword(),
		Unlocked:  !upload.HasPassword() || s.sessions.IsUnlocked(ctx, sid, upload.Slug),
		Crypt:     upload.Crypt,
		AllowZip:  s.cfg.AllowZip && !upload.Crypt,
	}
	for _, f := range files {
		payload.Files = append(payload.Files, dto.FileInfo{
			Slug:     f.Slug,
			Filename: f.Filename,
			Filesize: f.Filesize,
		})
	}
	return payload, nil
}

// Unlock verifies the password of a protected upload and records the
// authorization on the session. Unprotected uploads unlock trivially.
func (s *DownloadService) Unlock(ctx context.Context, sid, slug, password string) error {
	txn := s.store.Txn()
	upload, err := s.loadUpload(txn, slug)
	if err != nil {
		return err
	}
	if !upload.HasPassword() {
		return nil
	}
	if !utils.CheckPwd(password, upload.Passwd) {
		return apperr.Securityf("wrong password for upload %s", slug)
	}
	if err := s.sessions.Unlock(ctx, sid, slug, password, upload.Crypt); err != nil {
		return apperr.Operational(err, "record unlock")
	}
	return nil
}

// authorize enforces the password gate for a loaded upload.
func (s *DownloadService) authorize(ctx context.Context, sid string, upload *model.Upload) error {
	if !upload.HasPassword() {
		return nil
	}
	if !s.sessions.IsUnlocked(ctx, sid, upload.Slug) {
		return apperr.Securityf("upload %s has not been unlocked by this session", upload.Slug)
	}
	return nil
}

// SendFile streams one file to the client. Plain files honor single byte
// ranges; encrypted files are always deciphered and sent whole.
func (s *DownloadService) SendFile(ctx context.Context, sid string, w http.ResponseWriter, r *http.Request, fileSlug string) error {
	txn := s.store.Txn()
	file, err := txn.GetFileBySlug(fileSlug)
	if err != nil {
		if repo.IsNotFound(err) {
			return apperr.NotFoundf("file %s not found", fileSlug)
		}
		return apperr.Operational(err, "load file")
	}
	upload, err := txn.GetUploadByID(file.UploadID)
	if err != nil {
		if repo.IsNotFound(err) {
			return apperr.NotFoundf("upload for file %s not found", fileSlug)
		}
		return apperr.Operational(err, "load upload")
	}
	if err := s.authorize(ctx, sid, upload); err != nil {
		return err
	}

	if upload.Crypt {
		return s.sendEncrypted(ctx, sid, w, upload, file)
	}
	return s.sendPlain(w, r, file)
}

func (s *DownloadService) sendPlain(w http.ResponseWriter, r *http.Request, file *model.File) error {
	absPath := s.layout.Resolve(file.File)
	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return apperr.NotFoundf("stored artifact for file %s is missing", file.Slug)
		}
		return apperr.Operational(err, "stat stored artifact")
	}
	size := info.Size()

	rng, err := parseRange(r.Header.Get("Range"), size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("*/%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return nil
	}

	src, err := os.Open(absPath)
	if err != nil {
		return apperr.Operational(err, "open stored artifact")
	}
	defer src.Close()

	writeDownloadHeaders(w, file.Filename)
	w.Header().Set("Accept-Ranges", "bytes")

	status := http.StatusOK
	length := size
	if rng != nil {
		if _, err := src.Seek(rng.start, io.SeekStart); err != nil {
			return apperr.Operational(err, "seek stored artifact")
		}
		length = rng.length()
		status = http.StatusPartialContent
		w.Header().Set("Content-Range", fmt.Sprintf("%d-%d/%d", rng.start, rng.end, size))
	}
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(status)

	return streamChunks(w, src, length, file.Slug)
}

func (s *DownloadService) sendEncrypted(ctx context.Context, sid string, w http.ResponseWriter, upload *model.Upload, file *model.File) error {
	passphrase, ok := s.sessions.Passphrase(ctx, sid, upload.Slug)
	if !ok {
		return apperr.Securityf("no passphrase retained for upload %s", upload.Slug)
	}

	cryptPath := s.layout.Resolve(file.File + s.cfg.CryptSuffix)
	if _, err := os.Stat(cryptPath); err != nil {
		if os.IsNotExist(err) {
			return apperr.NotFoundf("cipher artifact for file %s is missing", file.Slug)
		}
		return apperr.Operational(err, "stat cipher artifact")
	}

	writeDownloadHeaders(w, file.Filename)
	w.Header().Set("Content-Length", strconv.FormatInt(file.Filesize, 10))
	w.WriteHeader(http.StatusOK)

	if err := s.cipher.Decrypt(cryptPath, passphrase, w); err != nil {
		// Headers are gone; all we can do is log and cut the stream.
		logger.Error("decipher stream failed", zap.String("file", file.Slug), zap.Error(err))
		return nil
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

// writeDownloadHeaders sets the attachment and cache-defeating headers
// shared by every download response.
func writeDownloadHeaders(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"%s\"", utils.SanitizeHeaderFilename(filename)))
	w.Header().Set("Cache-Control", "no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

// streamChunks copies length bytes to the client in small flushed chunks.
func streamChunks(w http.ResponseWriter, src io.Reader, length int64, slug string) error {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, streamChunkSize)
	remaining := length
	for remaining > 0 {
		chunk := int64(len(buf))
		if remaining < chunk {
			chunk = remaining
		}
		n, err := io.ReadFull(src, buf[:chunk])
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				// Client went away mid-stream; nothing to clean up.
				return nil
			}
			if flusher != nil {
				flusher.Flush()
			}
			remaining -= int64(n)
		}
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				if remaining > 0 {
					logger.Warn("stored artifact shorter than expected", zap.String("file", slug))
				}
				return nil
			}
			logger.Error("read stored artifact failed", zap.String("file", slug), zap.Error(err))
			return nil
		}
	}
	return nil
}
