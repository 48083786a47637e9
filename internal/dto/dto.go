package dto

// UploadForm carries the non-file fields of the upload form.
type UploadForm struct {
	Protect      bool   `form:"protect"`
	Password     string `form:"password"`
	Crypt        bool   `form:"crypt"`
	SendByMail   bool   `form:"send_by_mail"`
	EmailSubject string `form:"email_subject"`
	EmailMessage string `form:"email_message"`
}

// UnlockForm is the password submission on the download confirmation page.
// Target selects where the browser is sent after a successful unlock:
// a file slug, or "zip" for the whole-upload archive.
type UnlockForm struct {
	Password string `form:"password"`
	Target   string `form:"target"`
}

// FileInfo describes one file of an upload to clients.
type FileInfo struct {
	Slug     string `json:"slug"`
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
}

// UploadResult is returned after a successful upload.
type UploadResult struct {
	Slug     string     `json:"slug"`
	ShareURL string     `json:"share_url"`
	Lifetime int        `json:"lifetime"`
	Crypt    bool       `json:"crypt"`
	Files    []FileInfo `json:"files"`
}

// ConfirmPayload describes an upload on the download confirmation page.
type ConfirmPayload struct {
	Slug      string     `json:"slug"`
	Protected bool       `json:"protected"`
	Unlocked  bool       `json:"unlocked"`
	Crypt     bool       `json:"crypt"`
	AllowZip  bool       `json:"allow_zip"`
	Files     []FileInfo `json:"files"`
}
