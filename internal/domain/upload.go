package domain

// UploadedFile is an image persisted in the upload directory.
// The directory listing is the only index of these files.
type UploadedFile struct {
	Name      string
	Extension string
}
