package service

import (
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"strings"
)

// ErrCaptionParse is returned when model output holds no recognizable captions.
var ErrCaptionParse = errors.New("could not parse captions from model output")

// Platforms captions are generated for.
var captionPlatforms = []string{"instagram", "tiktok", "facebook", "twitter", "pinterest", "linkedin"}

// CaptionSet holds per-platform captions and the hashtags shared by them.
type CaptionSet struct {
	Captions map[string]string `json:"captions"`
	Hashtags []string          `json:"hashtags"`
}

// CaptionParser turns free-text model output into a CaptionSet.
type CaptionParser interface {
	Parse(output string) (*CaptionSet, error)
}

type captionParser struct{}

func NewCaptionParser() CaptionParser {
	return captionParser{}
}

var (
	fencePattern   = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	linePattern    = regexp.MustCompile(`(?im)^[\s>*_#-]*(instagram|tiktok|facebook|twitter|x|pinterest|linkedin)[\s*_]*[:\-–]\s*(.+)$`)
	hashtagPattern = regexp.MustCompile(`#[\p{L}\p{N}_]+`)
)

// Parse tries strict JSON first, including JSON wrapped in prose or code
// fences, then falls back to "Platform: caption" lines.
func (p captionParser) Parse(output string) (*CaptionSet, error) {
	if set, ok := parseCaptionJSON(output); ok {
		return set, nil
	}
	if set, ok := parseCaptionLines(output); ok {
		return set, nil
	}
	return nil, ErrCaptionParse
}

func parseCaptionJSON(output string) (*CaptionSet, bool) {
	candidates := []string{strings.TrimSpace(output)}
	for _, m := range fencePattern.FindAllStringSubmatch(output, -1) {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if start, end := strings.Index(output, "{"), strings.LastIndex(output, "}"); start >= 0 && end > start {
		candidates = append(candidates, output[start:end+1])
	}

	for _, c := range candidates {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal([]byte(c), &raw); err != nil {
			continue
		}
		set := &CaptionSet{Captions: map[string]string{}}
		if nested, ok := raw["captions"]; ok {
			var m map[string]string
			if err := json.Unmarshal(nested, &m); err == nil {
				for k, v := range m {
					addCaption(set, k, v)
				}
			}
		}
		for k, v := range raw {
			var s string
			if json.Unmarshal(v, &s) == nil {
				addCaption(set, k, s)
			}
		}
		if tags, ok := raw["hashtags"]; ok {
			var list []string
			if json.Unmarshal(tags, &list) == nil {
				set.Hashtags = normalizeHashtags(list)
			} else {
				var s string
				if json.Unmarshal(tags, &s) == nil {
					set.Hashtags = normalizeHashtags(hashtagPattern.FindAllString(s, -1))
				}
			}
		}
		if len(set.Captions) > 0 {
			if set.Hashtags == nil {
				set.Hashtags = collectHashtags(set.Captions)
			}
			return set, true
		}
	}
	return nil, false
}

func parseCaptionLines(output string) (*CaptionSet, bool) {
	set := &CaptionSet{Captions: map[string]string{}}
	for _, m := range linePattern.FindAllStringSubmatch(output, -1) {
		addCaption(set, m[1], strings.Trim(m[2], " \"*"))
	}
	if len(set.Captions) == 0 {
		return nil, false
	}
	set.Hashtags = normalizeHashtags(hashtagPattern.FindAllString(output, -1))
	return set, true
}

func addCaption(set *CaptionSet, platform, caption string) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "x" {
		platform = "twitter"
	}
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return
	}
	for _, known := range captionPlatforms {
		if platform == known {
			set.Captions[platform] = caption
			return
		}
	}
}

func collectHashtags(captions map[string]string) []string {
	var tags []string
	for _, c := range captions {
		tags = append(tags, hashtagPattern.FindAllString(c, -1)...)
	}
	return normalizeHashtags(tags)
}

// normalizeHashtags prefixes, lowercases, dedupes and sorts tags.
func normalizeHashtags(tags []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || t == "#" {
			continue
		}
		if !strings.HasPrefix(t, "#") {
			t = "#" + t
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
