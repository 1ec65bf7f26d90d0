package models

import (
	"time"
)

// CredentialSide selects which face of the ID card is being processed
type CredentialSide string

const (
	SideFront CredentialSide = "front"
	SideBack  CredentialSide = "back"
)

// Valid reports whether the side is one of the two known values
func (s CredentialSide) Valid() bool {
	return s == SideFront || s == SideBack
}

// RecognitionStatus represents the processing status of a recognition
type RecognitionStatus string

const (
	RecognitionStatusCompleted RecognitionStatus = "completed"
	RecognitionStatusFailed    RecognitionStatus = "failed"
)

// FrontFields is the structured data extracted from the front of a credential
type FrontFields struct {
	FullName         string `json:"full_name"`
	CURP             string `json:"curp"`
	ElectorKey       string `json:"elector_key"`
	BirthDate        string `json:"birth_date"`
	RegistrationYear string `json:"registration_year"`
	Section          string `json:"section"`
	Validity         string `json:"validity"`
	Sex              string `json:"sex"`
	Country          string `json:"country"`
	Street           string `json:"street"`
	Neighborhood     string `json:"neighborhood"`
	State            string `json:"state"`
	ExteriorNumber   string `json:"exterior_number"`
	PostalCode       string `json:"postal_code"`
	ValidCredential  bool   `json:"valid_credential"`
}

// BackFields is the structured data extracted from the back of a credential.
// The name parts are derived from the third machine-readable-zone line.
type BackFields struct {
	MRZLines        []string `json:"mrz_lines"`
	PaternalSurname string   `json:"paternal_surname"`
	MaternalSurname string   `json:"maternal_surname"`
	GivenNames      string   `json:"given_names"`
	ValidCredential bool     `json:"valid_credential"`
}

// RecognitionFields carries whichever side was recognized
type RecognitionFields struct {
	Side  CredentialSide `json:"side"`
	Front *FrontFields   `json:"front,omitempty"`
	Back  *BackFields    `json:"back,omitempty"`
}

// Recognition is a persisted recognition result
type Recognition struct {
	ID          int                `json:"id"`
	UserID      int                `json:"user_id"`
	Side        CredentialSide     `json:"side"`
	Status      RecognitionStatus  `json:"status"`
	Fields      *RecognitionFields `json:"fields,omitempty"`
	OCRText     *string            `json:"ocr_text,omitempty"`
	S3Bucket    *string            `json:"s3_bucket,omitempty"`
	S3Key       *string            `json:"s3_key,omitempty"`
	ContentType *string            `json:"content_type,omitempty"`
	ImageURL    *string            `json:"image_url,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// CreateRecognitionRequest is the payload for persisting a recognition
type CreateRecognitionRequest struct {
	UserID      int
	Side        CredentialSide
	Status      RecognitionStatus
	Fields      *RecognitionFields
	OCRText     *string
	S3Bucket    *string
	S3Key       *string
	ContentType *string
}

// RecognitionListParams are the filters for listing recognitions
type RecognitionListParams struct {
	UserID int
	Side   *string
	Limit  int
	Offset int
}
