package runtime

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/asynkron/aishell/internal/logging"
)

// DefaultBaseURL is used when no api_url is configured.
const DefaultBaseURL = "https://api.openai.com/v1"

// responseHeaderTimeout bounds the wait for the first response byte. Reading
// a streamed body is bounded only by the request context.
const responseHeaderTimeout = 120 * time.Second

// ClientOptions configures an OpenAIClient.
type ClientOptions struct {
	APIKey string
	Model  string
	// BaseURL is the API root of any OpenAI compatible provider, for example
	// "https://openrouter.ai/api/v1".
	BaseURL     string
	Temperature float64
	HTTPClient  *http.Client
	Logger      logging.Logger
}

// OpenAIClient calls the Chat Completions API of an OpenAI compatible
// endpoint, either waiting for the full reply or streaming it.
type OpenAIClient struct {
	apiKey      string
	model       string
	temperature float64
	endpoint    string
	httpClient  *http.Client
	logger      logging.Logger
}

// NewOpenAIClient validates options and builds the client.
func NewOpenAIClient(options ClientOptions) (*OpenAIClient, error) {
	if options.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if options.Model == "" {
		return nil, errors.New("openai: model is required")
	}
	baseURL := strings.TrimSpace(options.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = responseHeaderTimeout
		httpClient = &http.Client{Transport: transport}
	}
	return &OpenAIClient{
		apiKey:      options.APIKey,
		model:       options.Model,
		temperature: options.Temperature,
		endpoint:    strings.TrimRight(baseURL, "/") + "/chat/completions",
		httpClient:  httpClient,
		logger:      logging.OrNoOp(options.Logger),
	}, nil
}

// Model returns the configured model identifier.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete sends messages and waits for the whole reply.
func (c *OpenAIClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	resp, err := c.send(ctx, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", &APIError{Kind: KindAPI, StatusCode: resp.StatusCode, Message: "decode response", Err: err}
	}
	if completion.Error != nil {
		return "", &APIError{Kind: KindAPI, StatusCode: resp.StatusCode, Message: completion.Error.Message}
	}
	if len(completion.Choices) == 0 {
		return "", &APIError{Kind: KindAPI, StatusCode: resp.StatusCode, Message: "response contained no choices"}
	}
	return completion.Choices[0].Message.Content, nil
}

// Stream sends messages and returns the reply as a fragment stream. The
// caller must Close the stream.
func (c *OpenAIClient) Stream(ctx context.Context, messages []ChatMessage) (FragmentStream, error) {
	resp, err := c.send(ctx, messages, true)
	if err != nil {
		return nil, err
	}
	return &sseFragmentStream{
		ctx:    ctx,
		body:   resp.Body,
		parser: newStreamParser(bufio.NewReader(resp.Body), c.logger),
	}, nil
}

func (c *OpenAIClient) send(ctx context.Context, messages []ChatMessage, stream bool) (*http.Response, error) {
	payload, err := json.Marshal(chatCompletionRequest{
		Model:       c.model,
		Messages:    buildMessages(messages),
		Temperature: c.temperature,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	c.logger.Debug(ctx, "Sending chat completion request",
		logging.Field("model", c.model),
		logging.Field("messages", len(messages)),
		logging.Field("stream", stream),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Error(ctx, "Chat completion request failed", err, logging.Field("url", c.endpoint))
		return nil, &APIError{Kind: KindConnection, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		apiErr := errorFromResponse(resp)
		c.logger.Error(ctx, "Chat completion returned error status", apiErr,
			logging.Field("status_code", resp.StatusCode),
		)
		return nil, apiErr
	}
	return resp, nil
}

// errorFromResponse reads the provider's error body. OpenAI style payloads
// carry the message under error.message; anything else is used verbatim.
func errorFromResponse(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))

	message := strings.TrimSpace(string(raw))
	var envelope struct {
		Error *apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}
	if message == "" {
		message = resp.Status
	}
	return &APIError{Kind: kindForStatus(resp.StatusCode), StatusCode: resp.StatusCode, Message: message}
}

func buildMessages(history []ChatMessage) []chatMessage {
	messages := make([]chatMessage, 0, len(history))
	for _, entry := range history {
		messages = append(messages, chatMessage{Role: string(entry.Role), Content: entry.Content})
	}
	return messages
}

// sseFragmentStream adapts the SSE body to FragmentStream.
type sseFragmentStream struct {
	ctx    context.Context
	body   io.ReadCloser
	parser *streamParser
}

func (s *sseFragmentStream) Recv() (string, error) {
	fragment, err := s.parser.next()
	if err != nil && !errors.Is(err, io.EOF) {
		if ctxErr := s.ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
	}
	return fragment, err
}

func (s *sseFragmentStream) Close() error {
	return s.body.Close()
}

// chatCompletionRequest and related types are minimal mirrors of the Chat
// Completions payloads.
type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiErrorBody `json:"error,omitempty"`
}
