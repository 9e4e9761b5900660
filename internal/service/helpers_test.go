package service

import (
	"context"
	"sync"
	"time"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/model"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/repository/memory"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

type fakeGateway struct {
	mu         sync.Mutex
	imageCalls int
	videoCalls int
	imageErr   error
	videoErr   error
	text       string
}

func (g *fakeGateway) GenerateImage(_ context.Context, op model.Operation, _ GenerationRequest) (*GenerationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.imageCalls++
	if g.imageErr != nil {
		return nil, g.imageErr
	}
	return &GenerationResult{ImageBase64: "aGVsbG8=", MimeType: "image/png"}, nil
}

func (g *fakeGateway) StartVideo(context.Context, GenerationRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.videoCalls++
	return "vid_1", nil
}

func (g *fakeGateway) GetVideoStatus(context.Context, string) (*VideoStatus, error) {
	return &VideoStatus{ID: "vid_1", Status: "succeeded", URL: "https://cdn.example.com/v.mp4"}, nil
}

func (g *fakeGateway) WaitForVideo(context.Context, string) (*GenerationResult, error) {
	if g.videoErr != nil {
		return nil, g.videoErr
	}
	return &GenerationResult{URL: "https://cdn.example.com/v.mp4", MimeType: "video/mp4"}, nil
}

func (g *fakeGateway) CompleteText(context.Context, string) (string, error) {
	return g.text, nil
}

func (g *fakeGateway) calls() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.imageCalls, g.videoCalls
}

type fakeS3 struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.keys = append(f.keys, *in.Key)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://storage.example.com/" + *in.Key + "?sig=1"}, nil
}

type fakeQueue struct {
	mu       sync.Mutex
	messages [][]byte
}

func (q *fakeQueue) Send(_ context.Context, _ string, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, payload)
	return nil
}

type recordingObserver struct {
	mu      sync.Mutex
	changes []BalanceChange
}

func (o *recordingObserver) BalanceChanged(_ context.Context, c BalanceChange) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.changes = append(o.changes, c)
}

type testEnv struct {
	store    *memory.Store
	ledger   LedgerService
	gateway  *fakeGateway
	s3       *fakeS3
	queue    *fakeQueue
	gen      GenerationService
	observer *recordingObserver
}

func newTestEnv() *testEnv {
	store := memory.New()
	obs := &recordingObserver{}
	ledger := NewLedgerService(store, zerolog.Nop(), obs)
	gw := &fakeGateway{}
	fs3 := &fakeS3{}
	q := &fakeQueue{}
	content := NewContentStore(store, fs3, fs3, "assets", zerolog.Nop())
	gen := NewGenerationService(ledger, gw, content, store, q, "video_queue", zerolog.Nop())
	return &testEnv{store: store, ledger: ledger, gateway: gw, s3: fs3, queue: q, gen: gen, observer: obs}
}

// fixedNow returns a clock stuck at t.
func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
