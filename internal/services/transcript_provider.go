package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	videointelligence "cloud.google.com/go/videointelligence/apiv1"
	vipb "cloud.google.com/go/videointelligence/apiv1/videointelligencepb"

	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/repstack/repstack-backend/internal/logger"
)

// VideoAnnotation is the transcript-stage output fed into the LLM prompt.
type VideoAnnotation struct {
	Transcript     string    `json:"transcript"`
	ShotBoundaries []float64 `json:"shot_boundaries,omitempty"`
	Duration       float64   `json:"duration"`
}

// TranscriptProvider annotates a video ahead of exercise extraction. Only
// gs:// URIs are supported; anything else fails and the extractor falls back
// to the bare URL prompt.
type TranscriptProvider interface {
	Annotate(ctx context.Context, uri string) (*VideoAnnotation, error)
	Close() error
}

type videoIntelligenceTranscripts struct {
	log        *logger.Logger
	client     *videointelligence.Client
	maxRetries int
}

func NewVideoIntelligenceTranscripts(log *logger.Logger) (TranscriptProvider, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("service", "VideoIntelligenceTranscripts")

	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	ctx := context.Background()

	opts := []option.ClientOption{}
	if creds != "" {
		if strings.HasPrefix(creds, "{") {
			opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
		} else {
			opts = append(opts, option.WithCredentialsFile(creds))
		}
	}

	c, err := videointelligence.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("videointelligence client: %w", err)
	}

	return &videoIntelligenceTranscripts{
		log:        slog,
		client:     c,
		maxRetries: 4,
	}, nil
}

func (s *videoIntelligenceTranscripts) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *videoIntelligenceTranscripts) Annotate(ctx context.Context, uri string) (*VideoAnnotation, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	if !strings.HasPrefix(uri, "gs://") {
		return nil, fmt.Errorf("uri must be gs://... got %q", uri)
	}

	req := &vipb.AnnotateVideoRequest{
		InputUri: uri,
		Features: []vipb.Feature{
			vipb.Feature_SPEECH_TRANSCRIPTION,
			vipb.Feature_SHOT_CHANGE_DETECTION,
		},
		VideoContext: &vipb.VideoContext{
			SpeechTranscriptionConfig: &vipb.SpeechTranscriptionConfig{
				LanguageCode:               "en-US",
				EnableAutomaticPunctuation: true,
			},
		},
	}

	resp, err := s.retryAnnotate(ctx, func() (*vipb.AnnotateVideoResponse, error) {
		op, err := s.client.AnnotateVideo(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("videointelligence AnnotateVideo: %w", err)
	}

	out := &VideoAnnotation{}
	if resp == nil || len(resp.AnnotationResults) == 0 || resp.AnnotationResults[0] == nil {
		return out, nil
	}
	ar := resp.AnnotationResults[0]

	var b strings.Builder
	for _, tr := range ar.SpeechTranscriptions {
		if tr == nil || len(tr.Alternatives) == 0 || tr.Alternatives[0] == nil {
			continue
		}
		txt := strings.TrimSpace(tr.Alternatives[0].Transcript)
		if txt == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(txt)
	}
	out.Transcript = b.String()

	for _, shot := range ar.ShotAnnotations {
		if shot == nil {
			continue
		}
		out.ShotBoundaries = append(out.ShotBoundaries, durToSec(shot.StartTimeOffset))
		end := durToSec(shot.EndTimeOffset)
		if end > out.Duration {
			out.Duration = end
		}
	}

	return out, nil
}

func (s *videoIntelligenceTranscripts) retryAnnotate(ctx context.Context, fn func() (*vipb.AnnotateVideoResponse, error)) (*vipb.AnnotateVideoResponse, error) {
	var lastErr error
	backoff := 5 * time.Second
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryableGRPC(err) || ctx.Err() != nil {
			return nil, err
		}
		s.log.Warn("AnnotateVideo failed, retrying", "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

func isRetryableGRPC(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}

func durToSec(d *durationpb.Duration) float64 {
	if d == nil {
		return 0
	}
	return float64(d.Seconds) + float64(d.Nanos)/1e9
}
