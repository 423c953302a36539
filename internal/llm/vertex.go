package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/rotisserie/eris"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Vertex calls a Gemini model on Vertex AI with a JSON response MIME type.
type Vertex struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

// NewVertex connects to Vertex AI using application default credentials.
func NewVertex(ctx context.Context, project, region, model string, maxTokens int) (*Vertex, error) {
	if project == "" || region == "" {
		return nil, eris.New("vertex: project and region are required")
	}
	client, err := genai.NewClient(ctx, project, region)
	if err != nil {
		return nil, eris.Wrap(err, "vertex: new client")
	}
	if maxTokens <= 0 {
		maxTokens = 16000
	}
	return &Vertex{client: client, model: model, maxTokens: int32(maxTokens)}, nil
}

func (v *Vertex) Name() string { return ProviderVertex }

func (v *Vertex) Generate(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	model := v.client.GenerativeModel(v.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(req.System)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
		MaxOutputTokens:  genai.Ptr(v.maxTokens),
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		return Response{}, transient(err, grpcStatus(err), "vertex: generate content")
	}
	return Response{Text: vertexText(resp), Model: v.model, Duration: time.Since(start)}, nil
}

// Close releases the underlying gRPC connection.
func (v *Vertex) Close() error {
	return v.client.Close()
}

func vertexText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}

// grpcStatus maps the transient gRPC codes onto HTTP statuses.
func grpcStatus(err error) int {
	switch status.Code(err) {
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unavailable, codes.Internal:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	}
	return 0
}
