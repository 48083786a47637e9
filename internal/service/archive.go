package service

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"ShareDrop/internal/apperr"
	"ShareDrop/model"
	"ShareDrop/utils"
)

// StreamZip sends every file of an upload as one zip archive, built on the
// fly with nothing staged on disk. Encrypted uploads cannot be zipped: the
// archive would expose deciphered bytes outside the per-file flow.
func (s *DownloadService) StreamZip(ctx context.Context, sid string, w http.ResponseWriter, slug string) error {
	if !s.cfg.AllowZip {
		return apperr.Securityf("archive downloads are disabled")
	}

	txn := s.store.Txn()
	upload, err := s.loadUpload(txn, slug)
	if err != nil {
		return err
	}
	if upload.Crypt {
		return apperr.Securityf("upload %s is encrypted and cannot be archived", slug)
	}
	if err := s.authorize(ctx, sid, upload); err != nil {
		return err
	}

	files, err := txn.GetFilesForUpload(upload.ID)
	if err != nil {
		return apperr.Operational(err, "load files")
	}
	if len(files) == 0 {
		return apperr.NotFoundf("upload %s has no files", slug)
	}

	// Every artifact must exist before the first response byte goes out;
	// afterwards errors can no longer change the status code.
	for _, f := range files {
		if _, err := os.Stat(s.layout.Resolve(f.File)); err != nil {
			if os.IsNotExist(err) {
				return apperr.NotFoundf("stored artifact for file %s is missing", f.Slug)
			}
			return apperr.Operational(err, "stat stored artifact")
		}
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"%s.zip\"", utils.SanitizeHeaderFilename(slug)))
	w.Header().Set("Cache-Control", "no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)

	zw := zip.NewWriter(w)
	names := make(map[string]int)
	for _, f := range files {
		if err := s.addZipEntry(zw, names, &f); err != nil {
			// Mid-stream failure; the truncated archive tells the client.
			_ = zw.Close()
			return apperr.Operational(err, "write archive entry")
		}
	}
	if err := zw.Close(); err != nil {
		return apperr.Operational(err, "finish archive")
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

func (s *DownloadService) addZipEntry(zw *zip.Writer, names map[string]int, file *model.File) error {
	src, err := os.Open(s.layout.Resolve(file.File))
	if err != nil {
		return err
	}
	defer src.Close()

	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     uniqueArchiveName(names, file.Filename),
		Method:   zip.Deflate,
		Modified: file.CreatedAt,
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, src)
	return err
}

// uniqueArchiveName dedupes client-supplied names so two uploads of
// "report.pdf" both survive in the archive.
func uniqueArchiveName(names map[string]int, filename string) string {
	name := utils.SanitizeArchiveName(filename)
	count := names[name]
	names[name] = count + 1
	if count == 0 {
		return name
	}
	return fmt.Sprintf("%d_%s", count, name)
}
