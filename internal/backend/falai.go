package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"soulmedia/internal/config"
	"soulmedia/internal/entity/common"
	"soulmedia/internal/utils"
)

const (
	falAPIBaseURL      = "https://fal.run"
	falPollInterval    = 2 * time.Second
	falMaxPollAttempts = 90
)

// FalClip generates short clips through the fal.ai queue API.
type FalClip struct {
	apiKey     string
	model      string
	httpClient *http.Client
	baseURL    string
}

// NewFalClip creates the clip backend from configuration.
func NewFalClip(cfg config.Config) (*FalClip, error) {
	apiKey := strings.TrimSpace(cfg.FalAPIKey)
	if apiKey == "" {
		return nil, errors.New("fal.ai api key is not configured")
	}
	return &FalClip{
		apiKey:     apiKey,
		model:      cfg.FalClipModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    falAPIBaseURL,
	}, nil
}

func (b *FalClip) Name() string {
	return "fal"
}

func (b *FalClip) Kind() common.AssetKind {
	return common.AssetClip
}

// Generate submits a clip job, polls it to completion, and downloads
// the resulting video.
func (b *FalClip) Generate(ctx context.Context, job Job) (*Result, error) {
	logrus.WithFields(logrus.Fields{
		"persona_id": job.PersonaID,
		"variant_id": job.VariantID,
		"model":      b.model,
		"seed":       job.Seed,
	}).Info("falai_generate_start")

	input := map[string]any{
		"prompt": job.PositivePrompt,
		"seed":   job.Seed,
	}
	if job.NegativePrompt != "" {
		input["negative_prompt"] = job.NegativePrompt
	}

	envelope, err := b.submitAndWait(ctx, map[string]any{"input": input})
	if err != nil {
		return nil, err
	}

	videoURL := envelope.videoURL()
	if videoURL == "" {
		return nil, errors.New("fal.ai response did not include a video")
	}

	var data []byte
	var ext string
	if strings.HasPrefix(videoURL, "data:") {
		// Some models answer with the asset inlined as a data URL.
		data, ext, err = utils.DecodeMediaPayload(videoURL)
		if err != nil {
			return nil, fmt.Errorf("fal.ai decode inline asset: %w", err)
		}
	} else {
		data, ext, err = utils.FetchMedia(ctx, videoURL)
		if err != nil {
			return nil, fmt.Errorf("fal.ai fetch asset: %w", err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"variant_id": job.VariantID,
		"bytes":      len(data),
		"ext":        ext,
	}).Info("falai_generate_done")
	return &Result{Data: data, Ext: ext}, nil
}

func (b *FalClip) submitAndWait(ctx context.Context, payload map[string]any) (*falEnvelope, error) {
	bs, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("fal.ai marshal request: %w", err)
	}

	endpoint := b.baseURL + "/" + strings.TrimPrefix(b.model, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("fal.ai create request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+b.apiKey)
	req.Header.Set("Content-Type", "application/json")

	envelope, err := b.doRequest(req)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(envelope.Status, "COMPLETED") && envelope.videoURL() != "" {
		return envelope, nil
	}
	if envelope.videoURL() != "" && envelope.Status == "" {
		// Synchronous endpoints answer with the result directly.
		return envelope, nil
	}

	pollURL := strings.TrimSpace(envelope.ResponseURL)
	if pollURL == "" {
		pollURL = strings.TrimSpace(envelope.StatusURL)
	}
	if pollURL == "" {
		return nil, errors.New("fal.ai response url missing")
	}
	return b.pollForCompletion(ctx, pollURL, envelope.RequestID)
}

func (b *FalClip) pollForCompletion(ctx context.Context, pollURL, requestID string) (*falEnvelope, error) {
	attempts := 0
	ticker := time.NewTicker(falPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("fal.ai poll cancelled: %w", ctx.Err())
		case <-ticker.C:
			attempts++
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
			if err != nil {
				return nil, fmt.Errorf("fal.ai create poll request: %w", err)
			}
			req.Header.Set("Authorization", "Key "+b.apiKey)

			envelope, err := b.doRequest(req)
			if err != nil {
				return nil, err
			}

			status := strings.ToUpper(strings.TrimSpace(envelope.Status))
			switch status {
			case "COMPLETED":
				return envelope, nil
			case "FAILED", "CANCELLED", "ERROR":
				if envelope.Error != nil {
					return nil, fmt.Errorf("fal.ai error: %s", envelope.Error.Message)
				}
				return nil, fmt.Errorf("fal.ai job %s", strings.ToLower(status))
			default:
				logrus.WithFields(logrus.Fields{
					"request_id": requestID,
					"status":     envelope.Status,
					"attempt":    attempts,
				}).Info("falai_poll_pending")
				if attempts >= falMaxPollAttempts {
					return nil, errors.New("fal.ai polling exceeded maximum attempts")
				}
			}
		}
	}
}

func (b *FalClip) doRequest(req *http.Request) (*falEnvelope, error) {
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fal.ai request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fal.ai read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fal.ai http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope falEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("fal.ai decode response: %w", err)
	}
	envelope.mergeInner()
	if envelope.Error != nil && envelope.videoURL() == "" {
		return nil, fmt.Errorf("fal.ai error: %s", envelope.Error.Message)
	}
	return &envelope, nil
}

type falVideoPayload struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

type falEnvelope struct {
	RequestID   string            `json:"request_id"`
	Status      string            `json:"status"`
	StatusURL   string            `json:"status_url"`
	ResponseURL string            `json:"response_url"`
	Video       *falVideoPayload  `json:"video"`
	Videos      []falVideoPayload `json:"videos"`
	Error       *falAPIError      `json:"error"`
	Response    *falEnvelope      `json:"response"`
}

func (e *falEnvelope) mergeInner() {
	if e == nil || e.Response == nil {
		return
	}
	inner := e.Response
	if inner.Status != "" {
		e.Status = inner.Status
	}
	if e.Video == nil {
		e.Video = inner.Video
	}
	if len(e.Videos) == 0 {
		e.Videos = inner.Videos
	}
	if e.Error == nil {
		e.Error = inner.Error
	}
}

func (e *falEnvelope) videoURL() string {
	if e == nil {
		return ""
	}
	if e.Video != nil && strings.TrimSpace(e.Video.URL) != "" {
		return e.Video.URL
	}
	for _, v := range e.Videos {
		if strings.TrimSpace(v.URL) != "" {
			return v.URL
		}
	}
	return ""
}

type falAPIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
