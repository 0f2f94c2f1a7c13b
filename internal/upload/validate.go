// Package upload decides which declared filenames and payloads are accepted
// as images.
package upload

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrRejected matches every validation rejection.
var ErrRejected = errors.New("upload rejected")

// RejectMessage is the user-facing reason for a refused file type.
const RejectMessage = "File must be a JPG or PNG image."

var allowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

var allowedMIME = []string{"image/jpeg", "image/png"}

var extensionMIME = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
}

// RejectedError carries the reason shown to the uploader.
type RejectedError struct {
	Reason string
	Detail string
}

func (e *RejectedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("upload rejected: %s", e.Reason)
	}
	return fmt.Sprintf("upload rejected: %s (%s)", e.Reason, e.Detail)
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

// Validate accepts a filename whose text after the last dot is jpg, jpeg or
// png in any case, returning that extension lowercased. Only the name is
// inspected.
func Validate(declaredFilename string) (string, error) {
	idx := strings.LastIndex(declaredFilename, ".")
	if idx < 0 || idx == len(declaredFilename)-1 {
		return "", &RejectedError{Reason: RejectMessage, Detail: "missing extension"}
	}

	ext := strings.ToLower(declaredFilename[idx+1:])
	if _, ok := allowedExtensions[ext]; !ok {
		return "", &RejectedError{Reason: RejectMessage, Detail: "extension " + ext}
	}
	return ext, nil
}

// Sniff checks the leading bytes of a payload against the image types
// Validate admits. It is an opt-in complement to the filename check.
func Sniff(head []byte) (string, error) {
	mt := mimetype.Detect(head)
	if !mimetype.EqualsAny(mt.String(), allowedMIME...) {
		return "", &RejectedError{Reason: RejectMessage, Detail: "content " + mt.String()}
	}
	return mt.String(), nil
}

// ContentType returns the MIME type a stored upload is served with. It is
// derived from the validated extension only, never from the bytes, so a
// payload cannot pick its own type. ok is false for names Validate rejects.
func ContentType(name string) (string, bool) {
	ext, err := Validate(name)
	if err != nil {
		return "", false
	}
	return extensionMIME[ext], true
}
