package wrappers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/boristopalov/gymkit/pkg/core"
)

// EpisodesFile is the name of the file EpisodeRecorder writes
const EpisodesFile = "episodes.csv"

var recorderHeader = []string{"Episode", "Return", "Length"}

// EpisodeRecorder appends one CSV row per finished episode to a file in a
// save folder
type EpisodeRecorder struct {
	core.Env

	file   *os.File
	w      *csv.Writer
	ret    float64
	length int
	index  int
}

func NewEpisodeRecorder(env core.Env, folder string) (*EpisodeRecorder, error) {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("episode recorder: %w", err)
	}
	path := filepath.Join(folder, EpisodesFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("episode recorder: %w", err)
	}

	w := csv.NewWriter(f)
	if st, err := f.Stat(); err == nil && st.Size() == 0 {
		if err := w.Write(recorderHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("episode recorder: %w", err)
		}
		w.Flush()
	}

	return &EpisodeRecorder{
		Env:  env,
		file: f,
		w:    w,
	}, nil
}

func (r *EpisodeRecorder) Unwrap() core.Env {
	return r.Env
}

func (r *EpisodeRecorder) Reset(seed *int64) (any, core.Info, error) {
	r.ret = 0
	r.length = 0
	return r.Env.Reset(seed)
}

func (r *EpisodeRecorder) Step(action any) (core.StepResult, error) {
	res, err := r.Env.Step(action)
	if err != nil {
		return res, err
	}
	r.ret += res.Reward
	r.length++

	if res.Done() {
		row := []string{
			strconv.Itoa(r.index),
			strconv.FormatFloat(r.ret, 'f', 4, 64),
			strconv.Itoa(r.length),
		}
		r.index++
		if err := r.w.Write(row); err != nil {
			return res, fmt.Errorf("episode recorder: %w", err)
		}
		r.w.Flush()
		if err := r.w.Error(); err != nil {
			return res, fmt.Errorf("episode recorder: %w", err)
		}
	}
	return res, nil
}

func (r *EpisodeRecorder) Close() error {
	r.w.Flush()
	return errors.Join(r.w.Error(), r.file.Close(), r.Env.Close())
}
