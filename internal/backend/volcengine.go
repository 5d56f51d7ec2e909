package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	volcModel "github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
	"github.com/volcengine/volcengine-go-sdk/volcengine"

	"soulmedia/internal/config"
	"soulmedia/internal/entity/common"
	"soulmedia/internal/utils"
)

// VolcengineImage generates still images through the Ark runtime.
type VolcengineImage struct {
	apiKey string
	model  string
}

// NewVolcengineImage creates the image backend from configuration.
func NewVolcengineImage(cfg config.Config) (*VolcengineImage, error) {
	if strings.TrimSpace(cfg.VolcengineAPIKey) == "" {
		return nil, errors.New("volcengine api key is not configured")
	}
	return &VolcengineImage{
		apiKey: cfg.VolcengineAPIKey,
		model:  cfg.VolcengineModelID,
	}, nil
}

func (b *VolcengineImage) Name() string {
	return "volcengine"
}

func (b *VolcengineImage) Kind() common.AssetKind {
	return common.AssetImage
}

// Generate runs one streaming image generation and downloads the
// resulting asset.
func (b *VolcengineImage) Generate(ctx context.Context, job Job) (*Result, error) {
	logrus.WithFields(logrus.Fields{
		"persona_id": job.PersonaID,
		"variant_id": job.VariantID,
		"model":      b.model,
		"seed":       job.Seed,
	}).Info("volcengine_generate_start")

	client := arkruntime.NewClientWithApiKey(b.apiKey)

	var sequentialImageGeneration volcModel.SequentialImageGeneration = "disabled"
	generateReq := volcModel.GenerateImagesRequest{
		Model:                     b.model,
		Prompt:                    job.PositivePrompt,
		Size:                      volcengine.String("2K"),
		ResponseFormat:            volcengine.String(volcModel.GenerateImagesResponseFormatURL),
		Watermark:                 volcengine.Bool(false),
		SequentialImageGeneration: &sequentialImageGeneration,
	}

	stream, err := client.GenerateImagesStreaming(ctx, generateReq)
	if err != nil {
		return nil, fmt.Errorf("volcengine generate: %w", err)
	}
	defer stream.Close()

	var imageURL string
	for {
		recv, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("volcengine stream: %w", err)
		}
		if recv.Type == "image_generation.partial_failed" && recv.Error != nil {
			return nil, fmt.Errorf("volcengine generation failed: %s", recv.Error.Message)
		}
		if recv.Type == "image_generation.partial_succeeded" && recv.Error == nil && recv.Url != nil {
			imageURL = *recv.Url
		}
	}
	if imageURL == "" {
		return nil, errors.New("volcengine returned no image")
	}

	data, ext, err := utils.FetchMedia(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("volcengine fetch asset: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"variant_id": job.VariantID,
		"bytes":      len(data),
		"ext":        ext,
	}).Info("volcengine_generate_done")
	return &Result{Data: data, Ext: ext}, nil
}
