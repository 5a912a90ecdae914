package oracle

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

const defaultOllamaModel = "llama3.2"

type OllamaClient struct {
	client *api.Client
	model  string
	logger *zap.Logger
}

// NewOllama connects to baseURL, or to OLLAMA_HOST when baseURL is empty.
func NewOllama(baseURL, model string, logger *zap.Logger) (*OllamaClient, error) {
	if model == "" {
		model = defaultOllamaModel
	}
	var client *api.Client
	if baseURL == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		client = c
	} else {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama base url %q: %w", baseURL, err)
		}
		client = api.NewClient(u, http.DefaultClient)
	}
	return &OllamaClient{client: client, model: model, logger: logger}, nil
}

func (o *OllamaClient) Name() string { return ProviderOllama + "/" + o.model }

func (o *OllamaClient) Suggest(ctx context.Context, p Prompt) (string, error) {
	o.logger.Debug("requesting suggestion from Ollama", zap.String("model", o.model))
	stream := false
	var sb strings.Builder
	err := o.client.Generate(ctx, &api.GenerateRequest{
		Model:  o.model,
		System: p.System,
		Prompt: p.User,
		Stream: &stream,
	}, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate failed: %w", err)
	}
	return sb.String(), nil
}
