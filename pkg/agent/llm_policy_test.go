package agent

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/boristopalov/gymkit/pkg/core"
	"github.com/boristopalov/gymkit/pkg/messaging"
	"github.com/boristopalov/gymkit/pkg/wrappers"
)

// MockLLMClient returns scripted responses in order and records prompts
type MockLLMClient struct {
	responses []string
	prompts   []string
	err       error
}

func (m *MockLLMClient) Complete(ctx context.Context, model, system, prompt string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.prompts = append(m.prompts, prompt)
	if len(m.responses) == 0 {
		return "mock response", nil
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func newTestPolicy(t *testing.T, space core.Space, client *MockLLMClient, opts ...PolicyOption) *LLMPolicy {
	t.Helper()
	opts = append([]PolicyOption{WithClient(client), WithPolicyID("test-agent")}, opts...)
	p, err := NewLLMPolicy(context.Background(), space, opts...)
	if err != nil {
		t.Fatalf("Failed to create policy: %v", err)
	}
	return p
}

func TestLLMPolicy(t *testing.T) {
	box := core.NewUniformBox(-1, 1, []int{2}, core.Float64)
	ctx := context.Background()

	t.Run("test basic properties", func(t *testing.T) {
		p := newTestPolicy(t, box, &MockLLMClient{}, WithModel(ModelInfo{Id: "mock-model"}))
		if got := p.GetID(); got != "test-agent" {
			t.Errorf("p.GetID() = %v, want %v", got, "test-agent")
		}
		if got := p.GetModel().Id; got != "mock-model" {
			t.Errorf("p.GetModel().Id = %v, want %v", got, "mock-model")
		}
	})

	t.Run("test answer is clipped to bounds", func(t *testing.T) {
		client := &MockLLMClient{responses: []string{"I will push right.\nANSWER: [0.5, 3]"}}
		p := newTestPolicy(t, box, client)

		action, err := p.Act(ctx, []float32{0.1, -0.2})
		if err != nil {
			t.Fatalf("Act failed: %v", err)
		}
		if !reflect.DeepEqual(action, []float64{0.5, 1}) {
			t.Errorf("action = %v, want [0.5 1]", action)
		}
		if !strings.Contains(client.prompts[0], "[0.100, -0.200]") {
			t.Errorf("prompt does not contain the observation:\n%s", client.prompts[0])
		}
	})

	t.Run("test retry after malformed answer", func(t *testing.T) {
		client := &MockLLMClient{responses: []string{"no idea", "ANSWER: -0.25, 1e-1"}}
		p := newTestPolicy(t, box, client)

		action, err := p.Act(ctx, []float64{0, 0})
		if err != nil {
			t.Fatalf("Act failed: %v", err)
		}
		if !reflect.DeepEqual(action, []float64{-0.25, 0.1}) {
			t.Errorf("action = %v, want [-0.25 0.1]", action)
		}
		if len(client.prompts) != 2 || !strings.Contains(client.prompts[1], "no idea") {
			t.Errorf("retry prompt should quote the first response, got %v", client.prompts)
		}
	})

	t.Run("test failure after retry", func(t *testing.T) {
		client := &MockLLMClient{responses: []string{"no idea", "ANSWER: [1]"}}
		p := newTestPolicy(t, box, client)
		if _, err := p.Act(ctx, []float64{0, 0}); err == nil {
			t.Error("expected an error for a wrong-sized answer, got nil")
		}
	})

	t.Run("test client error", func(t *testing.T) {
		boom := errors.New("rate limited")
		p := newTestPolicy(t, box, &MockLLMClient{err: boom})
		if _, err := p.Act(ctx, []float64{0, 0}); err == nil {
			t.Error("expected an error, got nil")
		}
	})

	t.Run("test discrete action", func(t *testing.T) {
		client := &MockLLMClient{responses: []string{"ANSWER: 2", "ANSWER: 7", "ANSWER: 7"}}
		p := newTestPolicy(t, core.NewDiscrete(3), client)

		action, err := p.Act(ctx, map[string]any{"b": []float64{2}, "a": []float64{1}})
		if err != nil {
			t.Fatalf("Act failed: %v", err)
		}
		if action != 2 {
			t.Errorf("action = %v, want 2", action)
		}
		if !strings.Contains(client.prompts[0], "[1.000, 2.000]") {
			t.Errorf("dict observation not flattened in key order:\n%s", client.prompts[0])
		}
		if _, err := p.Act(ctx, []float64{0}); err == nil {
			t.Error("expected an error for an out of range action, got nil")
		}
	})

	t.Run("test history appears in prompt", func(t *testing.T) {
		client := &MockLLMClient{responses: []string{"ANSWER: [0, 0]"}}
		p := newTestPolicy(t, box, client, WithHistorySize(2))
		p.Observe(Transition{Observation: []float64{9}, Action: []float64{0.5, 0.5}, Reward: 1.5, Done: true})

		if _, err := p.Act(ctx, core.Frames{[]float64{0, 0}, []float64{4, 4}}); err != nil {
			t.Fatalf("Act failed: %v", err)
		}
		prompt := client.prompts[0]
		if !strings.Contains(prompt, "reward 1.500, episode ended") {
			t.Errorf("history missing from prompt:\n%s", prompt)
		}
		if !strings.Contains(prompt, "The current observation is: [4.000, 4.000]") {
			t.Errorf("newest frame not used:\n%s", prompt)
		}
	})

	t.Run("test unsupported action space", func(t *testing.T) {
		dict := core.NewDict(map[string]core.Space{"a": box})
		if _, err := NewLLMPolicy(ctx, dict, WithClient(&MockLLMClient{})); !errors.Is(err, core.ErrMalformedConfiguration) {
			t.Errorf("expected ErrMalformedConfiguration, got %v", err)
		}
	})
}

func TestLLMPolicyMessaging(t *testing.T) {
	broker := messaging.NewBroker()
	p := newTestPolicy(t, core.NewDiscrete(2), &MockLLMClient{}, WithMessageBroker(broker))
	t.Cleanup(func() {
		p.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.StartMessageHandler(ctx)

	err := broker.Publish(messaging.Message{
		From:    "env-1",
		Topic:   messaging.TopicEpisodeEnd,
		Content: wrappers.EpisodeStats{ID: "ep-1", Return: 12.5, Length: 30},
	})
	if err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	deadline := time.After(time.Second)
	for len(p.Notes()) == 0 {
		select {
		case <-deadline:
			t.Fatal("Timeout waiting for episode note")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if got := p.Notes()[0]; got != "episode ep-1: return 12.50 over 30 steps" {
		t.Errorf("note = %q", got)
	}

	if err := p.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestRandomPolicy(t *testing.T) {
	a := NewRandomPolicy(core.NewUniformBox(-1, 1, []int{3}, core.Float64), 4)
	b := NewRandomPolicy(core.NewUniformBox(-1, 1, []int{3}, core.Float64), 4)
	for i := 0; i < 3; i++ {
		x, _ := a.Act(context.Background(), nil)
		y, _ := b.Act(context.Background(), nil)
		if !reflect.DeepEqual(x, y) {
			t.Fatalf("step %d: %v != %v", i, x, y)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Act(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
