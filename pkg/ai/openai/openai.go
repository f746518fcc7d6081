package openai

import (
	"strings"
	"sync"
	"time"

	"github.com/OFFIS-RIT/graphrag/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// APITypeAzure selects Azure OpenAI routing (deployment based URLs and the
// api-version query parameter).
const APITypeAzure = "azure"

// GraphOpenAIClient talks to any OpenAI compatible endpoint: OpenAI itself,
// Azure OpenAI, Gemini's OpenAI endpoint or a text-embeddings-inference
// server. It keeps separate clients for embeddings and chat.
//
// A GraphOpenAIClient should be created using NewGraphOpenAIClient.
type GraphOpenAIClient struct {
	embeddingModel string
	chatModel      string
	dimensions     int

	chatURL string
	timeout time.Duration

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewGraphOpenAIClientParams defines the configuration parameters for creating
// a new GraphOpenAIClient.
//
// EmbeddingDimensions is sent as the dimensions request field when positive;
// only models that support shortening honour it.
// APIType "azure" routes both clients through Azure OpenAI using APIVersion;
// the model names are then deployment names.
type NewGraphOpenAIClientParams struct {
	EmbeddingModel      string
	ChatModel           string
	EmbeddingDimensions int

	EmbeddingURL string
	EmbeddingKey string
	ChatURL      string
	ChatKey      string

	APIType    string
	APIVersion string

	MaxConcurrentRequests int64
	Timeout               time.Duration
}

// NewGraphOpenAIClient creates a client configured with the provided
// parameters.
//
// Example:
//
//	client := openai.NewGraphOpenAIClient(openai.NewGraphOpenAIClientParams{
//		EmbeddingModel: "text-embedding-3-small",
//		ChatModel:      "gpt-4o-mini",
//		EmbeddingKey:   os.Getenv("OPENAI_API_KEY"),
//		ChatKey:        os.Getenv("OPENAI_API_KEY"),
//	})
func NewGraphOpenAIClient(
	params NewGraphOpenAIClientParams,
) *GraphOpenAIClient {
	azureMode := strings.EqualFold(params.APIType, APITypeAzure)
	chatClient := newOpenaiClient(params.ChatURL, params.ChatKey, azureMode, params.APIVersion)
	embedClient := newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey, azureMode, params.APIVersion)

	maxReq := params.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 4
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &GraphOpenAIClient{
		embeddingModel: params.EmbeddingModel,
		chatModel:      params.ChatModel,
		dimensions:     params.EmbeddingDimensions,

		chatURL: params.ChatURL,
		timeout: timeout,

		reqLock: semaphore.NewWeighted(maxReq),

		metricsLock: sync.Mutex{},
		metrics:     ai.ModelMetrics{},

		ChatClient:      chatClient,
		EmbeddingClient: embedClient,
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
	azureMode bool,
	apiVersion string,
) *openai.Client {
	if apiKey == "" && baseURL == "" {
		return nil
	}

	var options []option.RequestOption
	if azureMode {
		options = append(options,
			azure.WithEndpoint(baseURL, apiVersion),
			azure.WithAPIKey(apiKey),
		)
	} else {
		if apiKey != "" {
			options = append(options, option.WithAPIKey(apiKey))
		}
		if baseURL != "" {
			options = append(options, option.WithBaseURL(baseURL))
		}
	}

	client := openai.NewClient(options...)

	return &client
}
