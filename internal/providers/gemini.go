package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/slotter-org/clinic-voice-scheduler/internal/errordata"
	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/tools"
)

// GeminiLLM is the language model stage. The client is created on first
// use so a missing key fails the stage rather than process startup.
type GeminiLLM struct {
	log       *logger.Logger
	apiKey    string
	modelName string

	mu     sync.Mutex
	client *genai.Client
}

func NewGeminiLLM(apiKey, modelName string, log *logger.Logger) *GeminiLLM {
	if modelName == "" {
		modelName = "gemini-2.0-flash-exp"
	}
	return &GeminiLLM{
		log:       log.With("provider", "Gemini", "model", modelName),
		apiKey:    apiKey,
		modelName: modelName,
	}
}

func (g *GeminiLLM) ensureClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	if err := requireKey("gemini", g.apiKey); err != nil {
		return nil, err
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	g.client = cl
	return cl, nil
}

// Model returns a model primed with instructions and the tool catalog.
func (g *GeminiLLM) Model(ctx context.Context, instructions string) (*genai.GenerativeModel, error) {
	cl, err := g.ensureClient(ctx)
	if err != nil {
		return nil, err
	}
	m := cl.GenerativeModel(g.modelName)
	if instructions != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(instructions)}}
	}
	m.Tools = []*genai.Tool{{FunctionDeclarations: FunctionDeclarations(tools.Catalog())}}
	return m, nil
}

// Initialize confirms the model answers a token count request.
func (g *GeminiLLM) Initialize(ctx context.Context) error {
	m, err := g.Model(ctx, "")
	if err != nil {
		return err
	}
	resp, err := m.CountTokens(ctx, genai.Text("ready"))
	if err != nil {
		return fmt.Errorf("gemini count tokens: %v: %w", err, errordata.ErrUpstreamUnavailable)
	}
	g.log.Debug("Gemini reachable", "tokens", resp.TotalTokens)
	return nil
}

func (g *GeminiLLM) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		err := g.client.Close()
		g.client = nil
		return err
	}
	return nil
}

// FunctionDeclarations converts tool specs to Gemini function schemas.
func FunctionDeclarations(specs []tools.Spec) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, s := range specs {
		decl := &genai.FunctionDeclaration{Name: s.Name, Description: s.Description}
		if len(s.Params) > 0 {
			schema := &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
			for _, p := range s.Params {
				t := genai.TypeString
				if p.Type == tools.Integer {
					t = genai.TypeInteger
				}
				schema.Properties[p.Name] = &genai.Schema{Type: t, Description: p.Description}
				if p.Required {
					schema.Required = append(schema.Required, p.Name)
				}
			}
			decl.Parameters = schema
		}
		out = append(out, decl)
	}
	return out
}
