package wrappers

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/boristopalov/gymkit/pkg/core"
	"github.com/boristopalov/gymkit/pkg/messaging"
)

// EpisodeInfoKey is the Info key under which EpisodeMonitor reports stats
const EpisodeInfoKey = "episode"

// EpisodeStats summarises one finished episode
type EpisodeStats struct {
	ID       string
	Return   float64
	Length   int
	Duration time.Duration
}

// EpisodeMonitor tracks the return and length of each episode and reports
// them in the Info of the final step
type EpisodeMonitor struct {
	core.Env

	id        string
	publisher messaging.Publisher

	episodeID string
	ret       float64
	length    int
	start     time.Time
	episodes  int
}

type MonitorOption func(*EpisodeMonitor)

// WithPublisher publishes a TopicEpisodeEnd message for every finished episode
func WithPublisher(p messaging.Publisher) MonitorOption {
	return func(m *EpisodeMonitor) {
		m.publisher = p
	}
}

// WithMonitorID sets the id used as the sender of published messages
func WithMonitorID(id string) MonitorOption {
	return func(m *EpisodeMonitor) {
		m.id = id
	}
}

func NewEpisodeMonitor(env core.Env, opts ...MonitorOption) *EpisodeMonitor {
	m := &EpisodeMonitor{
		Env:       env,
		id:        "env-" + uuid.New().String(),
		episodeID: uuid.New().String(),
		start:     time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *EpisodeMonitor) Unwrap() core.Env {
	return m.Env
}

// ID identifies the monitored handle
func (m *EpisodeMonitor) ID() string {
	return m.id
}

// Episodes returns the number of finished episodes
func (m *EpisodeMonitor) Episodes() int {
	return m.episodes
}

func (m *EpisodeMonitor) Reset(seed *int64) (any, core.Info, error) {
	m.episodeID = uuid.New().String()
	m.ret = 0
	m.length = 0
	m.start = time.Now()
	return m.Env.Reset(seed)
}

func (m *EpisodeMonitor) Step(action any) (core.StepResult, error) {
	res, err := m.Env.Step(action)
	if err != nil {
		return res, err
	}
	m.ret += res.Reward
	m.length++

	if res.Done() {
		m.episodes++
		stats := EpisodeStats{
			ID:       m.episodeID,
			Return:   m.ret,
			Length:   m.length,
			Duration: time.Since(m.start),
		}
		if res.Info == nil {
			res.Info = core.Info{}
		}
		res.Info[EpisodeInfoKey] = stats

		if m.publisher != nil {
			err := m.publisher.Publish(messaging.Message{
				From:      m.id,
				Topic:     messaging.TopicEpisodeEnd,
				Content:   stats,
				Timestamp: time.Now(),
			})
			if err != nil {
				log.Printf("Warning: failed to publish episode stats for %s: %v", m.id, err)
			}
		}
	}
	return res, nil
}
