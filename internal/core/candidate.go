package core

// UploadCandidate is what the upload form holds for one submission attempt.
type UploadCandidate struct {
	Name string
	File *File
}
