package agent

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/boristopalov/gymkit/pkg/core"
	"github.com/boristopalov/gymkit/pkg/memory"
	"github.com/boristopalov/gymkit/pkg/messaging"
	"github.com/boristopalov/gymkit/pkg/providers"
	"github.com/boristopalov/gymkit/pkg/wrappers"
)

const (
	SYSTEM_PROMPT = `You are controlling an agent in a reinforcement learning environment. At every step you receive the current observation as a list of numbers and must choose an action that maximizes the total reward of the episode.`

	ACTION_PROMPT_TEMPLATE = `Your name is %s.
The action is %s.

Recent steps (oldest first):
%s
Recent episodes:
%s
The current observation is: %s

Very briefly think step by step about which action to take and then provide your answer. Your answer should follow the string "ANSWER" like so: ANSWER: %s`

	RETRY_PROMPT_TEMPLATE = `Your previous response did not include the required format. Here was your response:

%s

Please answer again with exactly one line of the form ANSWER: %s`
)

const number = `[-+]?\d*\.?\d+(?:[eE][-+]?\d+)?`

var answerRe = regexp.MustCompile(`ANSWER:\s*\[?\s*(` + number + `(?:\s*,\s*` + number + `)*)`)

type ModelInfo struct {
	Id       string // e.g. "gpt-4o-mini"
	Provider string // "openai" or "gemini"
}

// LLMPolicy asks a chat model for each action
type LLMPolicy struct {
	id      string
	model   ModelInfo
	client  providers.Client
	space   core.Space
	history *memory.Memory[Transition]
	notes   *memory.Memory[string]

	messageChan   chan messaging.Message
	messageBroker messaging.Broker
}

type PolicyParams struct {
	Model         ModelInfo
	PolicyID      string
	Client        providers.Client
	HistorySize   int
	MessageBroker messaging.Broker
}

type PolicyOption func(*PolicyParams)

func WithModel(model ModelInfo) PolicyOption {
	return func(p *PolicyParams) {
		p.Model = model
	}
}

func WithPolicyID(id string) PolicyOption {
	return func(p *PolicyParams) {
		p.PolicyID = id
	}
}

// WithClient overrides the provider client, mostly for tests
func WithClient(c providers.Client) PolicyOption {
	return func(p *PolicyParams) {
		p.Client = c
	}
}

func WithHistorySize(n int) PolicyOption {
	return func(p *PolicyParams) {
		p.HistorySize = n
	}
}

// WithMessageBroker subscribes the policy to episode-end messages
func WithMessageBroker(b messaging.Broker) PolicyOption {
	return func(p *PolicyParams) {
		p.MessageBroker = b
	}
}

func defaultPolicyParams() *PolicyParams {
	return &PolicyParams{
		Model: ModelInfo{
			Id:       "gpt-4o-mini",
			Provider: "openai",
		},
		PolicyID:    "agent-" + uuid.New().String(),
		HistorySize: 10,
	}
}

// NewLLMPolicy creates a policy for the given action space. Only Box and
// Discrete action spaces are supported.
func NewLLMPolicy(ctx context.Context, space core.Space, opts ...PolicyOption) (*LLMPolicy, error) {
	switch space.(type) {
	case *core.Box, *core.Discrete:
	default:
		return nil, fmt.Errorf("%w: llm policy cannot act in %T", core.ErrMalformedConfiguration, space)
	}

	params := defaultPolicyParams()
	for _, opt := range opts {
		opt(params)
	}

	client := params.Client
	if client == nil {
		var err error
		client, err = providers.New(ctx, params.Model.Provider)
		if err != nil {
			return nil, err
		}
	}

	p := &LLMPolicy{
		id:            params.PolicyID,
		model:         params.Model,
		client:        client,
		space:         space,
		history:       memory.NewMemory[Transition](params.HistorySize),
		notes:         memory.NewMemory[string](params.HistorySize),
		messageBroker: params.MessageBroker,
	}

	if p.messageBroker != nil {
		p.messageChan = make(chan messaging.Message, 100)
		if err := p.messageBroker.Subscribe(p.id, p.messageChan, messaging.TopicEpisodeEnd); err != nil {
			return nil, fmt.Errorf("failed to subscribe %s: %w", p.id, err)
		}
	}
	return p, nil
}

func (p *LLMPolicy) GetID() string {
	return p.id
}

func (p *LLMPolicy) GetModel() ModelInfo {
	return p.model
}

// Notes returns the episode summaries the policy has received
func (p *LLMPolicy) Notes() []string {
	return p.notes.All()
}

// StartMessageHandler stores incoming episode summaries until ctx is done
func (p *LLMPolicy) StartMessageHandler(ctx context.Context) {
	if p.messageChan == nil {
		return
	}
	go func() {
		for {
			select {
			case msg := <-p.messageChan:
				p.notes.Store(describeMessage(msg))
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close unsubscribes from the broker
func (p *LLMPolicy) Close() error {
	if p.messageBroker == nil {
		return nil
	}
	return p.messageBroker.Unsubscribe(p.id)
}

func (p *LLMPolicy) Observe(t Transition) {
	p.history.Store(t)
}

func (p *LLMPolicy) Act(ctx context.Context, obs any) (any, error) {
	vec, err := observationVector(obs)
	if err != nil {
		return nil, fmt.Errorf("llm policy: %w", err)
	}

	prompt := fmt.Sprintf(ACTION_PROMPT_TEMPLATE,
		p.id,
		describeSpace(p.space),
		p.describeHistory(),
		p.describeNotes(),
		formatVector(vec),
		answerExample(p.space),
	)

	response, err := p.client.Complete(ctx, p.model.Id, SYSTEM_PROMPT, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate action: %v", err)
	}

	action, err := p.parseAction(response)
	if err != nil {
		retryPrompt := fmt.Sprintf(RETRY_PROMPT_TEMPLATE, response, answerExample(p.space))
		response, err = p.client.Complete(ctx, p.model.Id, SYSTEM_PROMPT, retryPrompt)
		if err != nil {
			return nil, fmt.Errorf("failed to generate action on retry: %v", err)
		}
		action, err = p.parseAction(response)
		if err != nil {
			return nil, fmt.Errorf("no action found in response even after retry: %w", err)
		}
	}
	log.Printf("Action for %s: %v", p.id, action)
	return action, nil
}

// parseAction extracts the ANSWER vector and fits it to the action space
func (p *LLMPolicy) parseAction(response string) (any, error) {
	matches := answerRe.FindStringSubmatch(response)
	if len(matches) < 2 {
		return nil, fmt.Errorf("could not find answer in response: %s", response)
	}

	var vals []float64
	for _, field := range strings.Split(matches[1], ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("could not parse action %q: %v", field, err)
		}
		vals = append(vals, v)
	}

	switch s := p.space.(type) {
	case *core.Box:
		if len(vals) != s.Size() {
			return nil, fmt.Errorf("got %d action values, want %d", len(vals), s.Size())
		}
		return s.Cast(s.Clip(vals)), nil
	case *core.Discrete:
		if len(vals) != 1 {
			return nil, fmt.Errorf("got %d action values, want 1", len(vals))
		}
		a := int(vals[0])
		if a < 0 || a >= s.N {
			return nil, fmt.Errorf("action %d outside [0, %d)", a, s.N)
		}
		return a, nil
	}
	return nil, fmt.Errorf("unsupported action space %T", p.space)
}

func (p *LLMPolicy) describeHistory() string {
	var sb strings.Builder
	for _, t := range p.history.All() {
		obs, err := observationVector(t.Observation)
		if err != nil {
			continue
		}
		act, err := observationVector(t.Action)
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "- observation %s, action %s, reward %.3f", formatVector(obs), formatVector(act), t.Reward)
		if t.Done {
			sb.WriteString(", episode ended")
		}
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return "none\n"
	}
	return sb.String()
}

func (p *LLMPolicy) describeNotes() string {
	notes := p.notes.All()
	if len(notes) == 0 {
		return "none"
	}
	return strings.Join(notes, "\n")
}

func describeMessage(msg messaging.Message) string {
	if stats, ok := msg.Content.(wrappers.EpisodeStats); ok {
		return fmt.Sprintf("episode %s: return %.2f over %d steps", stats.ID, stats.Return, stats.Length)
	}
	return fmt.Sprintf("message from %s at %s: %v", msg.From, msg.Timestamp.Format(time.Kitchen), msg.Content)
}

func describeSpace(space core.Space) string {
	switch s := space.(type) {
	case *core.Box:
		return fmt.Sprintf("a list of %d numbers, element i between low[i] = %s and high[i] = %s",
			s.Size(), formatVector(s.Low), formatVector(s.High))
	case *core.Discrete:
		return fmt.Sprintf("a single integer between 0 and %d", s.N-1)
	}
	return fmt.Sprint(space)
}

func answerExample(space core.Space) string {
	switch s := space.(type) {
	case *core.Box:
		zeros := make([]string, s.Size())
		for i := range zeros {
			zeros[i] = "0.0"
		}
		return "[" + strings.Join(zeros, ", ") + "]"
	default:
		return "0"
	}
}

// observationVector flattens an observation for the prompt. Stacked frames
// use the newest frame and dicts are concatenated in key order.
func observationVector(obs any) ([]float64, error) {
	switch v := obs.(type) {
	case core.Frames:
		if len(v) == 0 {
			return nil, fmt.Errorf("empty frame stack")
		}
		return observationVector(v[len(v)-1])
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []float64
		for _, k := range keys {
			sub, err := observationVector(v[k])
			if err != nil {
				return nil, fmt.Errorf("%q: %w", k, err)
			}
			out = append(out, sub...)
		}
		return out, nil
	default:
		return core.AsFloat64s(obs)
	}
}

func formatVector(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'f', 3, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
