// internal/models/documents.go
package models

import "time"

// DocumentManifest is filled in by the upload subsystem. The core only
// emits the skeleton.
type DocumentManifest struct {
	UploadedDocuments  map[string][]interface{} `json:"uploadedDocuments"`
	Selfie             string                   `json:"selfie"`
	Signature          string                   `json:"signature"`
	UploadedAt         string                   `json:"uploadedAt"`
	DocumentReferences map[string]interface{}   `json:"documentReferences"`
	ValidationSummary  ValidationSummary        `json:"validationSummary"`
}

type ValidationSummary struct {
	AllDocumentsValid  bool     `json:"allDocumentsValid"`
	TotalDocuments     int      `json:"totalDocuments"`
	CompletedDocuments int      `json:"completedDocuments"`
	DocumentTypes      []string `json:"documentTypes"`
}

// NewDocumentManifest returns the empty manifest for the given categories.
func NewDocumentManifest(documentTypes []string, now time.Time) *DocumentManifest {
	types := make([]string, len(documentTypes))
	copy(types, documentTypes)

	uploaded := make(map[string][]interface{}, len(types))
	for _, t := range types {
		uploaded[t] = []interface{}{}
	}

	return &DocumentManifest{
		UploadedDocuments:  uploaded,
		UploadedAt:         now.UTC().Format(time.RFC3339),
		DocumentReferences: map[string]interface{}{},
		ValidationSummary: ValidationSummary{
			DocumentTypes: types,
		},
	}
}

// Submission is the terminal payload handed to the document collaborator
// and the back office.
type Submission struct {
	SessionID   string            `json:"sessionId"`
	FormType    string            `json:"formType"`
	FormID      string            `json:"formId"`
	Variant     Variant           `json:"variant"`
	Draft       *ApplicationDraft `json:"formResponses"`
	Facility    *Facility         `json:"facility,omitempty"`
	Documents   *DocumentManifest `json:"documents"`
	SubmittedAt time.Time         `json:"submittedAt"`
}
