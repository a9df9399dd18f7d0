// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"time"

	"wareflow/internal/core/entity"
	"wareflow/internal/core/id"
)

// --- List Response ---

// ListResponse wraps paginated list results.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// --- Base DTOs ---

// DocumentResponse contains fields shared by all document responses.
type DocumentResponse struct {
	ID            string    `json:"id"`
	Number        string    `json:"number"`
	Date          time.Time `json:"date"`
	Posted        bool      `json:"posted"`
	PostedVersion int       `json:"postedVersion,omitempty"`
	Comment       string    `json:"comment,omitempty"`
	DeletionMark  bool      `json:"deletionMark,omitempty"`
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	CreatedBy     string    `json:"createdBy,omitempty"`
	UpdatedBy     string    `json:"updatedBy,omitempty"`
}

// FromDocument creates DocumentResponse from entity.Document.
func FromDocument(d entity.Document) DocumentResponse {
	return DocumentResponse{
		ID:            d.ID.String(),
		Number:        d.Number,
		Date:          d.Date,
		Posted:        d.Posted,
		PostedVersion: d.PostedVersion,
		Comment:       d.Comment,
		DeletionMark:  d.DeletionMark,
		Version:       d.Version,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		CreatedBy:     d.CreatedBy,
		UpdatedBy:     d.UpdatedBy,
	}
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// --- Success Response ---

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// --- Helpers ---

// parseOptionalID converts an optional string UUID to *id.ID.
// Malformed values are treated as absent; documents validate references strictly.
func parseOptionalID(s string) *id.ID {
	if s == "" {
		return nil
	}
	parsed, err := id.Parse(s)
	if err != nil {
		return nil
	}
	return &parsed
}

// optionalIDString converts *id.ID to *string for responses.
func optionalIDString(v *id.ID) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}
