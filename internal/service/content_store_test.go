package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/model"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/repository/memory"

	"github.com/rs/zerolog"
)

func TestSaveAssetUploadsAndRecords(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	fs3 := &fakeS3{}
	cs := NewContentStore(store, fs3, fs3, "assets", zerolog.Nop())

	asset, err := cs.SaveAsset(ctx, "u1", model.OperationEditing, GenerationRequest{
		Prompt: "remove background",
		Images: map[string]string{"source": "data:image/png;base64,aGk=", "ref": "https://cdn.example.com/r.png"},
	}, &GenerationResult{ImageBase64: "data:image/jpeg;base64,aGVsbG8=", MimeType: "image/jpeg"})
	if err != nil {
		t.Fatalf("SaveAsset: %v", err)
	}
	if asset.StoragePath == nil || !strings.HasPrefix(*asset.StoragePath, "assets/u1/") || !strings.HasSuffix(*asset.StoragePath, ".jpg") {
		t.Fatalf("unexpected storage path %v", asset.StoragePath)
	}
	if asset.SourceRefs["source"] != "inline" || asset.SourceRefs["ref"] != "https://cdn.example.com/r.png" {
		t.Fatalf("unexpected source refs %v", asset.SourceRefs)
	}

	views, err := cs.ListAssets(ctx, "u1", 0, 0)
	if err != nil {
		t.Fatalf("ListAssets: %v", err)
	}
	if len(views) != 1 || !strings.Contains(views[0].DownloadURL, *asset.StoragePath) {
		t.Fatalf("expected presigned url for stored asset, got %+v", views)
	}
}

func TestSaveAssetRemoteURLOnly(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	fs3 := &fakeS3{}
	cs := NewContentStore(store, fs3, fs3, "assets", zerolog.Nop())

	if _, err := cs.SaveAsset(ctx, "u1", model.OperationVideo, GenerationRequest{Prompt: "walk"}, &GenerationResult{URL: "https://cdn.example.com/v.mp4"}); err != nil {
		t.Fatalf("SaveAsset: %v", err)
	}
	if len(fs3.keys) != 0 {
		t.Fatalf("remote results must not be uploaded, got %v", fs3.keys)
	}
	views, _ := cs.ListAssets(ctx, "u1", 10, 0)
	if len(views) != 1 || views[0].DownloadURL != "https://cdn.example.com/v.mp4" {
		t.Fatalf("unexpected views %+v", views)
	}
}

func TestSaveAssetUploadFailureRecordsNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	fs3 := &fakeS3{err: errors.New("denied")}
	cs := NewContentStore(store, fs3, fs3, "assets", zerolog.Nop())

	if _, err := cs.SaveAsset(ctx, "u1", model.OperationDressing, GenerationRequest{}, &GenerationResult{ImageBase64: "aGk="}); err == nil {
		t.Fatal("expected upload error")
	}
	if views, _ := cs.ListAssets(ctx, "u1", 10, 0); len(views) != 0 {
		t.Fatalf("expected no asset rows, got %d", len(views))
	}
}
