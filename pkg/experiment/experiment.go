package experiment

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/boristopalov/gymkit/pkg/agent"
	"github.com/boristopalov/gymkit/pkg/core"
)

const statsHeader = "RunID,Episode,Return,Length,Terminated,Truncated\n"

// RolloutExperiment runs a policy in an environment for a number of episodes
type RolloutExperiment struct {
	name   string
	env    core.Env
	policy agent.Policy
	params RolloutParams
	mu     sync.RWMutex
	status core.ExperimentStatus
}

var _ core.Experiment = (*RolloutExperiment)(nil)

type RolloutParams struct {
	Episodes  int
	MaxSteps  int
	Seed      int64
	StatsFile string // CSV file, one row per episode; empty disables it
}

type RolloutOption func(*RolloutParams)

func WithEpisodes(n int) RolloutOption {
	return func(p *RolloutParams) {
		p.Episodes = n
	}
}

// WithMaxSteps truncates episodes that run longer than n steps
func WithMaxSteps(n int) RolloutOption {
	return func(p *RolloutParams) {
		p.MaxSteps = n
	}
}

// WithSeed seeds episode i with seed+i
func WithSeed(seed int64) RolloutOption {
	return func(p *RolloutParams) {
		p.Seed = seed
	}
}

func WithStatsFile(path string) RolloutOption {
	return func(p *RolloutParams) {
		p.StatsFile = path
	}
}

// EpisodeResult is the outcome of one episode
type EpisodeResult struct {
	RunID      string
	Episode    int
	Return     float64
	Length     int
	Terminated bool
	Truncated  bool
}

// Summary aggregates the episodes of a run
type Summary struct {
	RunID      string
	Episodes   []EpisodeResult
	MeanReturn float64
	StdReturn  float64
	MinReturn  float64
	MaxReturn  float64
	MeanLength float64
}

func NewRolloutExperiment(name string, env core.Env, policy agent.Policy, opts ...RolloutOption) *RolloutExperiment {
	params := RolloutParams{
		Episodes: 1,
		MaxSteps: 1000,
	}
	for _, opt := range opts {
		opt(&params)
	}
	return &RolloutExperiment{
		name:   name,
		env:    env,
		policy: policy,
		params: params,
	}
}

func (e *RolloutExperiment) GetStatus() core.ExperimentStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	status := e.status
	status.Errors = append([]error(nil), e.status.Errors...)
	return status
}

// Run plays every episode. A cancelled context stops the run after the
// current step and returns the episodes finished so far with the error.
func (e *RolloutExperiment) Run(ctx context.Context) (*Summary, error) {
	if e.params.Episodes < 1 || e.params.MaxSteps < 1 {
		return nil, fmt.Errorf("%w: episodes and max steps must be >= 1", core.ErrMalformedConfiguration)
	}

	e.mu.Lock()
	e.status = core.ExperimentStatus{
		Running:   true,
		StartTime: time.Now(),
	}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.status.Running = false
		e.status.EndTime = time.Now()
		e.mu.Unlock()
	}()

	var statsFile *os.File
	if e.params.StatsFile != "" {
		var err error
		statsFile, err = os.Create(e.params.StatsFile)
		if err != nil {
			log.Printf("Warning: Failed to create stats file: %v", err)
		} else {
			defer statsFile.Close()
			if _, err := statsFile.WriteString(statsHeader); err != nil {
				log.Printf("Warning: Failed to write stats header: %v", err)
			}
		}
	}

	summary := &Summary{RunID: uuid.New().String()}
	log.Printf("Starting rollout %s (%s) for %d episodes", e.name, summary.RunID, e.params.Episodes)

	for i := 0; i < e.params.Episodes; i++ {
		result, err := e.runEpisode(ctx, i)
		if err != nil {
			e.recordError(err)
			summarize(summary)
			return summary, fmt.Errorf("episode %d: %w", i, err)
		}
		result.RunID = summary.RunID
		summary.Episodes = append(summary.Episodes, result)

		e.mu.Lock()
		e.status.Episodes++
		e.mu.Unlock()

		log.Printf("Episode %d finished: return %.2f, length %d", i, result.Return, result.Length)
		if statsFile != nil {
			fmt.Fprintf(statsFile, "%s,%d,%.4f,%d,%t,%t\n",
				result.RunID, result.Episode, result.Return, result.Length, result.Terminated, result.Truncated)
		}
	}

	summarize(summary)
	printSummary(e.name, summary)
	return summary, nil
}

func (e *RolloutExperiment) runEpisode(ctx context.Context, episode int) (EpisodeResult, error) {
	result := EpisodeResult{Episode: episode}

	obs, _, err := e.env.Reset(core.Seed(e.params.Seed + int64(episode)))
	if err != nil {
		return result, fmt.Errorf("reset: %w", err)
	}

	observer, _ := e.policy.(agent.Observer)
	for step := 0; step < e.params.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		action, err := e.policy.Act(ctx, obs)
		if err != nil {
			return result, fmt.Errorf("act: %w", err)
		}
		res, err := e.env.Step(action)
		if err != nil {
			return result, fmt.Errorf("step: %w", err)
		}

		result.Return += res.Reward
		result.Length++
		if observer != nil {
			observer.Observe(agent.Transition{
				Observation: obs,
				Action:      action,
				Reward:      res.Reward,
				Done:        res.Done(),
			})
		}
		obs = res.Observation

		if res.Done() {
			result.Terminated = res.Terminated
			result.Truncated = res.Truncated
			return result, nil
		}
	}
	result.Truncated = true
	return result, nil
}

func (e *RolloutExperiment) recordError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.Errors = append(e.status.Errors, err)
}

func summarize(s *Summary) {
	if len(s.Episodes) == 0 {
		return
	}
	returns := make([]float64, len(s.Episodes))
	lengths := make([]float64, len(s.Episodes))
	for i, ep := range s.Episodes {
		returns[i] = ep.Return
		lengths[i] = float64(ep.Length)
	}
	s.MeanReturn, s.StdReturn = stat.PopMeanStdDev(returns, nil)
	s.MinReturn = floats.Min(returns)
	s.MaxReturn = floats.Max(returns)
	s.MeanLength = stat.Mean(lengths, nil)
}

func printSummary(name string, s *Summary) {
	log.Printf("\n=== Rollout %s Statistics ===", name)
	log.Printf("  Episodes: %d", len(s.Episodes))
	log.Printf("  Average Return: %.2f", s.MeanReturn)
	log.Printf("  Standard Deviation: %.2f", s.StdReturn)
	log.Printf("  Return Range (min-max): %.2f - %.2f", s.MinReturn, s.MaxReturn)
	log.Printf("  Average Length: %.1f", s.MeanLength)
	log.Printf("==========================\n")
}
