package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/agent-api/core/pkg/agent"
	"github.com/agent-api/core/types"
	"github.com/agent-api/ollama"

	"github.com/bdougie/swingvision/internal/logging"
)

// CoachPrompt is the system prompt of the narrative agent
const CoachPrompt = "You are an encouraging golf coach. Answer in at most three short sentences of plain text, with no lists or headings."

// healthTimeout bounds the Ollama availability probe
const healthTimeout = 3 * time.Second

// ErrEmptyResponse is returned when the model answers with no content
var ErrEmptyResponse = errors.New("no response messages received from model")

// AgentConfig configures the Ollama narrative agent
type AgentConfig struct {
	BaseURL string // e.g. http://localhost
	Port    int
	Model   string
	Logger  *slog.Logger
	// Client performs the health check; http.DefaultClient when nil
	Client *http.Client
}

// AgentNarrator generates swing narratives with an Ollama hosted model
type AgentNarrator struct {
	run    func(ctx context.Context, prompt string) (string, error)
	logger *slog.Logger
}

// NewAgent checks that Ollama is reachable and returns a narrator backed by
// the configured model
func NewAgent(ctx context.Context, cfg AgentConfig) (*AgentNarrator, error) {
	logger := logging.OrDiscard(cfg.Logger)

	if err := CheckOllama(ctx, cfg.Client, cfg.BaseURL, cfg.Port); err != nil {
		return nil, err
	}

	provider := ollama.NewProvider(&ollama.ProviderOpts{
		Logger:  logger,
		BaseURL: cfg.BaseURL,
		Port:    cfg.Port,
	})
	provider.UseModel(ctx, &types.Model{
		ID: cfg.Model,
	})

	a := agent.NewAgent(&agent.NewAgentConfig{
		Provider:     provider,
		Logger:       logger,
		SystemPrompt: CoachPrompt,
	})

	return &AgentNarrator{
		run: func(ctx context.Context, prompt string) (string, error) {
			response := a.Run(ctx, agent.WithInput(prompt))
			if response.Err != nil {
				return "", response.Err
			}
			if len(response.Messages) == 0 {
				return "", ErrEmptyResponse
			}
			// the last message is the model's answer
			return response.Messages[len(response.Messages)-1].Content, nil
		},
		logger: logger,
	}, nil
}

// Generate implements feedback.Narrator
func (n *AgentNarrator) Generate(ctx context.Context, prompt string) (string, error) {
	content, err := n.run(ctx, prompt)
	if err != nil {
		return "", err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	n.logger.Debug("narrative generated", "chars", len(content))
	return content, nil
}

// CheckOllama probes the Ollama tags endpoint
func CheckOllama(ctx context.Context, client *http.Client, baseURL string, port int) error {
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	url := fmt.Sprintf("%s:%d/api/tags", strings.TrimRight(baseURL, "/"), port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("invalid ollama address: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama is not reachable at %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check returned %s", resp.Status)
	}
	return nil
}
