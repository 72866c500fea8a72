package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type OpenAIConfig struct {
	APIKey          string
	BaseURL         string // optional, for OpenAI-compatible proxies
	Model           string
	TranscribeModel string
	MaxRetries      int
}

// OpenAI implements Backend with the official SDK.
type OpenAI struct {
	client          openai.Client
	model           string
	transcribeModel string
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{
		client:          openai.NewClient(opts...),
		model:           cfg.Model,
		transcribeModel: cfg.TranscribeModel,
	}
}

func (o *OpenAI) Complete(ctx context.Context, prompt string, images [][]byte, maxTokens int64) (string, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(prompt),
	}
	for _, img := range images {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL(img),
		}))
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(o.model),
		Messages:  []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
		MaxTokens: openai.Int(maxTokens),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	resp, err := o.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:     openai.File(bytes.NewReader(audio), filename, "audio/ogg"),
		Model:    openai.AudioModel(o.transcribeModel),
		Language: openai.String("ru"),
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// dataURL inlines an image. Telegram serves photos as JPEG; anything else is
// sniffed so the model gets the right media type.
func dataURL(img []byte) string {
	mediaType := http.DetectContentType(img)
	if mediaType == "application/octet-stream" {
		mediaType = "image/jpeg"
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(img)
}
