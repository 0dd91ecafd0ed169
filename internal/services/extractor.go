package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/repstack/repstack-backend/internal/logger"
	"github.com/repstack/repstack-backend/internal/types"
)

// ExtractionResult is what the AI side hands back for one training video.
type ExtractionResult struct {
	VideoTitle    string              `json:"video_title"`
	Sport         *string             `json:"sport,omitempty"`
	TotalDuration float64             `json:"total_duration"`
	Exercises     []types.RawExercise `json:"exercises"`
}

// VideoExtractor is the opaque "candidate exercises from a video URL"
// boundary. The session lifecycle only sees this interface.
type VideoExtractor interface {
	Extract(ctx context.Context, videoURL string, sportHint string) (*ExtractionResult, error)
}

// llmExtractor drives an OpenAI-compatible chat-completions endpoint with a
// strict JSON schema. When a transcript provider is configured, the video is
// annotated first and the transcript plus shot boundaries are fed into the
// prompt; otherwise the model works from the URL and sport hint alone.
type llmExtractor struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int

	transcripts TranscriptProvider
}

func NewLLMVideoExtractor(log *logger.Logger, transcripts TranscriptProvider) (VideoExtractor, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-5.2"
	}

	timeoutSec := 180
	if v := os.Getenv("OPENAI_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	maxRetries := 4
	if v := os.Getenv("OPENAI_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	return &llmExtractor{
		log:         log.With("service", "LLMVideoExtractor"),
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		httpClient:  &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries:  maxRetries,
		transcripts: transcripts,
	}, nil
}

type extractorHTTPError struct {
	StatusCode int
	Body       string
}

func (e *extractorHTTPError) Error() string {
	return fmt.Sprintf("extractor http %d: %s", e.StatusCode, e.Body)
}

func isRetryableHTTP(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

func isRetryableErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var httpErr *extractorHTTPError
	if errors.As(err, &httpErr) {
		return isRetryableHTTP(httpErr.StatusCode)
	}
	return false
}

func jitterSleep(base time.Duration) time.Duration {
	// +/- 20%
	if base <= 0 {
		return 0
	}
	delta := base.Seconds() * 0.2
	low := base.Seconds() - delta
	high := base.Seconds() + delta
	if low < 0 {
		low = 0
	}
	v := low + rand.Float64()*(high-low)
	return time.Duration(v * float64(time.Second))
}

const extractorSystemPrompt = `You analyze strength and conditioning training videos.
Identify every distinct exercise demonstrated, with start/end timecodes in seconds,
step-by-step instructions, coaching cues, timestamps worth screenshotting,
a difficulty (beginner, intermediate or advanced) and the equipment involved.
Respond only with JSON matching the provided schema.`

var extractionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"video_title":    map[string]any{"type": "string"},
		"sport":          map[string]any{"type": []string{"string", "null"}},
		"total_duration": map[string]any{"type": "number"},
		"exercises": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":                  map[string]any{"type": "string"},
					"start_time":            map[string]any{"type": "number"},
					"end_time":              map[string]any{"type": "number"},
					"instructions":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"coaching_cues":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"screenshot_timestamps": map[string]any{"type": "array", "items": map[string]any{"type": "number"}},
					"difficulty":            map[string]any{"type": "string", "enum": []string{"beginner", "intermediate", "advanced"}},
					"equipment":             map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []string{"name", "start_time", "end_time", "difficulty"},
			},
		},
	},
	"required": []string{"video_title", "total_duration", "exercises"},
}

func (e *llmExtractor) Extract(ctx context.Context, videoURL string, sportHint string) (*ExtractionResult, error) {
	var userPrompt strings.Builder
	fmt.Fprintf(&userPrompt, "Video URL: %s\n", videoURL)
	if sportHint != "" {
		fmt.Fprintf(&userPrompt, "Sport hint: %s\n", sportHint)
	}

	if e.transcripts != nil {
		annotation, err := e.transcripts.Annotate(ctx, videoURL)
		if err != nil {
			e.log.Warn("transcript annotation failed, extracting from URL alone", "error", err)
		} else if annotation != nil {
			if annotation.Transcript != "" {
				fmt.Fprintf(&userPrompt, "\nTranscript:\n%s\n", annotation.Transcript)
			}
			if len(annotation.ShotBoundaries) > 0 {
				fmt.Fprintf(&userPrompt, "\nShot boundaries (seconds): %v\n", annotation.ShotBoundaries)
			}
			if annotation.Duration > 0 {
				fmt.Fprintf(&userPrompt, "Video duration: %.1f seconds\n", annotation.Duration)
			}
		}
	}

	raw, err := e.generateJSON(ctx, extractorSystemPrompt, userPrompt.String())
	if err != nil {
		return nil, err
	}

	var result ExtractionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("extractor returned malformed payload: %w", err)
	}
	if len(result.Exercises) == 0 {
		return nil, fmt.Errorf("extractor found no exercises in %s", videoURL)
	}
	for i := range result.Exercises {
		if result.Exercises[i].Difficulty == "" {
			result.Exercises[i].Difficulty = types.DifficultyIntermediate
		}
	}
	return &result, nil
}

func (e *llmExtractor) generateJSON(ctx context.Context, system, user string) ([]byte, error) {
	body := map[string]any{
		"model": e.model,
		"messages": []map[string]any{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "video_exercise_extraction",
				"schema": extractionSchema,
				"strict": true,
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	var lastErr error
	backoff := 2 * time.Second
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitterSleep(backoff)):
			}
			backoff *= 2
		}

		raw, err := e.doChatCompletion(ctx, payload)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isRetryableErr(err) {
			return nil, err
		}
		e.log.Warn("extractor call failed, retrying", "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

func (e *llmExtractor) doChatCompletion(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &extractorHTTPError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode completion envelope: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("completion had no content")
	}
	return []byte(parsed.Choices[0].Message.Content), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
