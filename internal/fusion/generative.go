package fusion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	openai "github.com/sashabaranov/go-openai"

	"murmur/arbiter/internal/types"
)

// GenerativeEngine asks a chat model whether the utterance is listener
// feedback. It is only ever selected for final transcripts with real lexical
// content; failures degrade to the rule engine upstream.
type GenerativeEngine struct {
	client  *openai.Client
	model   string
	scorer  *Scorer
	timeout time.Duration
}

func NewGenerativeEngine(apiKey, model string, scorer *Scorer) *GenerativeEngine {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &GenerativeEngine{
		client:  openai.NewClient(apiKey),
		model:   model,
		scorer:  scorer,
		timeout: 2 * time.Second,
	}
}

func (e *GenerativeEngine) Name() string { return "generative" }

const generativeSystemPrompt = `You classify a short fragment of user speech heard while a voice assistant was talking. Decide whether it is passive listener feedback (a backchannel like "yeah", "mm-hmm") or a genuine attempt to take the turn. Reply with JSON only: {"backchannel": <bool>, "confidence": <0..1>}`

type generativeVerdict struct {
	Backchannel bool    `json:"backchannel"`
	Confidence  float64 `json:"confidence"`
}

func (e *GenerativeEngine) Classify(ctx context.Context, ev types.SpeechEvent, in Inputs) (types.ConfidenceResult, error) {
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	user := fmt.Sprintf("Agent has been speaking for %dms. Agent's last utterance was a question: %v. User said: %q",
		in.Context.AgentSpeakingFor.Milliseconds(), in.Context.AgentAskedQuestion, ev.Text)

	resp, err := e.client.CreateChatCompletion(cctx, openai.ChatCompletionRequest{
		Model:       e.model,
		MaxTokens:   32,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: generativeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return types.ConfidenceResult{}, fmt.Errorf("generative classify: %w", err)
	}
	if len(resp.Choices) == 0 {
		return types.ConfidenceResult{}, fmt.Errorf("generative classify: empty response")
	}

	verdict, err := parseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		return types.ConfidenceResult{}, err
	}

	overall := verdict.Confidence
	if !verdict.Backchannel {
		overall = 1 - verdict.Confidence
	}
	return e.scorer.Finalize(in.signals(ev), overall, in.Threshold), nil
}

func parseVerdict(content string) (generativeVerdict, error) {
	content = strings.TrimSpace(content)
	// Models sometimes wrap JSON in a code fence.
	if i := strings.Index(content, "{"); i >= 0 {
		if j := strings.LastIndex(content, "}"); j > i {
			content = content[i : j+1]
		}
	}
	var v generativeVerdict
	if err := sonic.Unmarshal([]byte(content), &v); err != nil {
		return v, fmt.Errorf("generative verdict parse: %w", err)
	}
	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}
	return v, nil
}
