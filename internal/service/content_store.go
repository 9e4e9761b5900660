package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/model"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const presignTTL = 15 * time.Minute

// ObjectUploader is the part of the S3 client the content store writes with.
type ObjectUploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ObjectPresigner signs time-limited download URLs.
type ObjectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// AssetView is a stored asset with a ready-to-use download URL.
type AssetView struct {
	model.GeneratedAsset
	DownloadURL string `json:"download_url,omitempty"`
}

// ContentStore persists generated content and its references.
type ContentStore interface {
	SaveAsset(ctx context.Context, userID string, op model.Operation, req GenerationRequest, result *GenerationResult) (*model.GeneratedAsset, error)
	ListAssets(ctx context.Context, userID string, limit, offset int) ([]AssetView, error)
}

type contentStore struct {
	repo      repository.AssetRepository
	uploader  ObjectUploader
	presigner ObjectPresigner
	bucket    string
	logger    zerolog.Logger
}

func NewContentStore(repo repository.AssetRepository, uploader ObjectUploader, presigner ObjectPresigner, bucket string, logger zerolog.Logger) ContentStore {
	return &contentStore{
		repo:      repo,
		uploader:  uploader,
		presigner: presigner,
		bucket:    bucket,
		logger:    logger.With().Str("service", "ContentStore").Logger(),
	}
}

var mimeExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"video/mp4":  "mp4",
}

func (s *contentStore) SaveAsset(ctx context.Context, userID string, op model.Operation, req GenerationRequest, result *GenerationResult) (*model.GeneratedAsset, error) {
	asset := &model.GeneratedAsset{
		ID:         uuid.NewString(),
		UserID:     userID,
		Operation:  op,
		Prompt:     req.Prompt,
		SourceRefs: sourceRefs(req.Images),
	}
	if result.URL != "" {
		asset.RemoteURL = aws.String(result.URL)
	}
	if result.Text != "" {
		asset.Caption = aws.String(result.Text)
	}

	if result.ImageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(stripDataURL(result.ImageBase64))
		if err != nil {
			return nil, fmt.Errorf("decode generated image: %w", err)
		}
		mime := result.MimeType
		if mime == "" {
			mime = "image/png"
		}
		ext, ok := mimeExtensions[mime]
		if !ok {
			ext = "bin"
		}
		key := fmt.Sprintf("assets/%s/%s.%s", userID, asset.ID, ext)
		_, err = s.uploader.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(mime),
		})
		if err != nil {
			return nil, fmt.Errorf("upload asset %s: %w", key, err)
		}
		asset.StoragePath = aws.String(key)
	}

	if err := s.repo.CreateAsset(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

func (s *contentStore) ListAssets(ctx context.Context, userID string, limit, offset int) ([]AssetView, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	assets, err := s.repo.ListAssetsByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	views := make([]AssetView, 0, len(assets))
	for _, a := range assets {
		v := AssetView{GeneratedAsset: a}
		switch {
		case a.StoragePath != nil:
			req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    a.StoragePath,
			}, s3.WithPresignExpires(presignTTL))
			if err != nil {
				s.logger.Warn().Err(err).Str("asset_id", a.ID).Msg("Failed to presign asset URL")
			} else {
				v.DownloadURL = req.URL
			}
		case a.RemoteURL != nil:
			v.DownloadURL = *a.RemoteURL
		}
		views = append(views, v)
	}
	return views, nil
}

// sourceRefs keeps URL inputs verbatim and replaces inline payloads with a
// marker, so the reference row never stores image bytes.
func sourceRefs(images map[string]string) map[string]string {
	if len(images) == 0 {
		return nil
	}
	refs := make(map[string]string, len(images))
	for role, v := range images {
		if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
			refs[role] = v
		} else {
			refs[role] = "inline"
		}
	}
	return refs
}

func stripDataURL(s string) string {
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		return s[i+len(";base64,"):]
	}
	return s
}
