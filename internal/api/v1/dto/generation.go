package dto

import "time"

// GenerationRequestDTO is the body of a metered generation call. Images maps
// an input role ("person", "garment", "source") to a URL or base64 payload.
type GenerationRequestDTO struct {
	Prompt      string            `json:"prompt" validate:"required,max=4000"`
	Images      map[string]string `json:"images,omitempty" validate:"omitempty,max=4,dive,keys,oneof=person garment source reference,endkeys,required"`
	AspectRatio string            `json:"aspect_ratio,omitempty" validate:"omitempty,oneof=1:1 3:4 4:3 9:16 16:9"`
}

// GenerationResponseDTO is returned for a completed generation.
type GenerationResponseDTO struct {
	Operation    string `json:"operation"`
	Cost         int    `json:"cost"`
	Charged      bool   `json:"charged"`
	BalanceAfter int    `json:"balance_after"`
	ImageBase64  string `json:"image_base64,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	URL          string `json:"url,omitempty"`
	AssetID      string `json:"asset_id,omitempty"`
}

// InsufficientTokensResponse is the 402 body.
type InsufficientTokensResponse struct {
	Error    string `json:"error"`
	Required int    `json:"required"`
	Balance  int    `json:"balance"`
}

// JobResponseDTO is the state of an asynchronous generation job.
type JobResponseDTO struct {
	JobID     string    `json:"job_id"`
	Operation string    `json:"operation"`
	Status    string    `json:"status"`
	ResultURL string    `json:"result_url,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CaptionRequestDTO asks for social captions.
type CaptionRequestDTO struct {
	Description string   `json:"description" validate:"required,max=2000"`
	Platforms   []string `json:"platforms,omitempty" validate:"omitempty,dive,oneof=instagram tiktok facebook twitter pinterest linkedin"`
	Tone        string   `json:"tone,omitempty" validate:"omitempty,max=40"`
}

// AssetResponseDTO is one stored generated asset.
type AssetResponseDTO struct {
	ID          string    `json:"id"`
	Operation   string    `json:"operation"`
	Prompt      string    `json:"prompt"`
	DownloadURL string    `json:"download_url,omitempty"`
	Caption     string    `json:"caption,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
