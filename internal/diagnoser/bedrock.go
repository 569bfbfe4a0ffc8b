// AWS Bedrock backend for clusters keeping LLM traffic inside AWS.
package diagnoser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/aqrpole/kube-ai-sre-agent/internal/config"
	"github.com/aqrpole/kube-ai-sre-agent/internal/model"
)

const anthropicVersion = "bedrock-2023-05-31"

// Bedrock invokes an Anthropic model through AWS Bedrock.
type Bedrock struct {
	client      BedrockClient
	modelID     string
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

// BedrockClient is the interface for invoking Bedrock models, allowing test
// injection of a mock.
type BedrockClient interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// NewBedrock creates the Bedrock backend. AWS credentials come from the
// default credential chain (IRSA-compatible).
func NewBedrock(ctx context.Context, cfg config.BedrockConfig, logger *slog.Logger) (*Bedrock, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("bedrock: region must not be empty")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("bedrock: loading AWS config: %w", err)
	}

	return newBedrockWithClient(bedrockruntime.NewFromConfig(awsCfg), cfg, logger)
}

// newBedrockWithClient creates a Bedrock backend with an injected client
// (for testing).
func newBedrockWithClient(client BedrockClient, cfg config.BedrockConfig, logger *slog.Logger) (*Bedrock, error) {
	if client == nil {
		return nil, fmt.Errorf("bedrock: client must not be nil")
	}
	if cfg.ModelID == "" {
		return nil, fmt.Errorf("bedrock: modelId must not be empty")
	}
	if cfg.MaxTokens <= 0 {
		return nil, fmt.Errorf("bedrock: maxTokens must be > 0, got %d", cfg.MaxTokens)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bedrock{
		client:      client,
		modelID:     cfg.ModelID,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger,
	}, nil
}

func (b *Bedrock) Name() string { return "bedrock" }

// bedrockAnthropicRequest is the request body for Anthropic models via
// Bedrock InvokeModel.
type bedrockAnthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float64            `json:"temperature"`
	System           string             `json:"system"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// bedrockAnthropicResponse mirrors the Anthropic response format returned by
// Bedrock InvokeModel.
type bedrockAnthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Diagnose sends the incident context to Bedrock and returns the
// concatenated text blocks from the response.
func (b *Bedrock) Diagnose(ctx context.Context, cx model.IncidentContext) (string, error) {
	user, err := userPrompt(cx)
	if err != nil {
		return "", err
	}

	reqBody := bedrockAnthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        b.maxTokens,
		Temperature:      b.temperature,
		System:           systemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: user},
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("bedrock: marshaling request: %w", err)
	}

	b.logger.Info("sending diagnosis request to Bedrock",
		"model_id", b.modelID,
		"pod", cx.Pod,
		"namespace", cx.Namespace,
	)

	output, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        bodyBytes,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock: invoking model: %w", err)
	}

	var bedrockResp bedrockAnthropicResponse
	if err := json.Unmarshal(output.Body, &bedrockResp); err != nil {
		return "", fmt.Errorf("bedrock: parsing response JSON: %w", err)
	}

	var text string
	for _, block := range bedrockResp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// Healthy checks whether the Bedrock client is configured.
func (b *Bedrock) Healthy(ctx context.Context) bool {
	return b.client != nil
}

var _ Diagnoser = (*Bedrock)(nil)
