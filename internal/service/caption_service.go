package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// CaptionRequest describes the content to write captions for.
type CaptionRequest struct {
	Description string
	Platforms   []string
	Tone        string
}

// CaptionService writes social captions through the text model. It is not metered.
type CaptionService interface {
	Generate(ctx context.Context, userID string, req CaptionRequest) (*CaptionSet, error)
}

type captionService struct {
	gateway GenerationGateway
	parser  CaptionParser
	logger  zerolog.Logger
}

func NewCaptionService(gateway GenerationGateway, parser CaptionParser, logger zerolog.Logger) CaptionService {
	return &captionService{
		gateway: gateway,
		parser:  parser,
		logger:  logger.With().Str("service", "CaptionService").Logger(),
	}
}

func (s *captionService) Generate(ctx context.Context, userID string, req CaptionRequest) (*CaptionSet, error) {
	platforms := req.Platforms
	if len(platforms) == 0 {
		platforms = captionPlatforms
	}
	tone := req.Tone
	if tone == "" {
		tone = "friendly"
	}
	prompt := fmt.Sprintf(
		"Write social media captions for this fashion content: %s\n"+
			"Tone: %s. Platforms: %s.\n"+
			`Answer with JSON only: {"captions": {"<platform>": "<caption>"}, "hashtags": ["#tag"]}`,
		req.Description, tone, strings.Join(platforms, ", "),
	)

	output, err := s.gateway.CompleteText(ctx, prompt)
	if err != nil {
		return nil, err
	}
	set, err := s.parser.Parse(output)
	if err != nil {
		s.logger.Warn().Str("user_id", userID).Int("output_len", len(output)).Msg("Caption output could not be parsed")
		return nil, err
	}
	return set, nil
}
