package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/boristopalov/gymkit/internal/sim"
	"github.com/boristopalov/gymkit/pkg/agent"
	"github.com/boristopalov/gymkit/pkg/config"
	"github.com/boristopalov/gymkit/pkg/core"
	"github.com/boristopalov/gymkit/pkg/environment"
	"github.com/boristopalov/gymkit/pkg/experiment"
	"github.com/boristopalov/gymkit/pkg/messaging"
	"github.com/boristopalov/gymkit/pkg/wrappers"
)

var (
	configPath string
	envID      string
	overrides  config.EnvConfig
	rollout    config.RolloutConfig
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gymkit",
		Short: "gymkit builds configured reinforcement learning environments and runs policies in them.",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "HCL file with environment and rollout blocks")
	rootCmd.PersistentFlags().StringVar(&envID, "env", "", "environment id, e.g. PointMass-v4 or particle-run")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the available environments",
		RunE:  listEnvironments,
	}

	makeCmd := &cobra.Command{
		Use:   "make",
		Short: "Build an environment and print its spaces",
		RunE:  makeEnvironment,
	}
	addEnvFlags(makeCmd)

	rolloutCmd := &cobra.Command{
		Use:   "rollout",
		Short: "Run a policy in an environment and print episode statistics",
		RunE:  runRollout,
	}
	addEnvFlags(rolloutCmd)
	defaults := config.DefaultRollout()
	rolloutCmd.Flags().IntVar(&rollout.Episodes, "episodes", defaults.Episodes, "number of episodes")
	rolloutCmd.Flags().IntVar(&rollout.MaxSteps, "max-steps", defaults.MaxSteps, "step limit per episode")
	rolloutCmd.Flags().StringVar(&rollout.Policy, "policy", defaults.Policy, "random or llm")
	rolloutCmd.Flags().StringVar(&rollout.Provider, "provider", defaults.Provider, "openai or gemini")
	rolloutCmd.Flags().StringVar(&rollout.Model, "model", defaults.Model, "model id used by the llm policy")
	rolloutCmd.Flags().StringVar(&rollout.StatsFile, "stats-file", defaults.StatsFile, "CSV file for per-episode results")

	for _, envFile := range []string{
		".env",
		"../../.env",
		"../../../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	rootCmd.AddCommand(listCmd, makeCmd, rolloutCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addEnvFlags(cmd *cobra.Command) {
	d := config.Default("")
	f := cmd.Flags()
	f.Int64Var(&overrides.Seed, "seed", d.Seed, "seed for reset and space sampling")
	f.StringVar(&overrides.SaveFolder, "save-folder", d.SaveFolder, "folder for episode records (domain/task environments only)")
	f.BoolVar(&overrides.AddEpisodeMonitor, "episode-monitor", d.AddEpisodeMonitor, "report episode return and length")
	f.IntVar(&overrides.ActionRepeat, "action-repeat", d.ActionRepeat, "repeat each action this many times")
	f.IntVar(&overrides.FrameStack, "frame-stack", d.FrameStack, "stack this many observations")
	f.BoolVar(&overrides.FromPixels, "from-pixels", d.FromPixels, "observe rendered frames")
	f.BoolVar(&overrides.PixelsOnly, "pixels-only", d.PixelsOnly, "drop the state observation in pixel mode")
	f.IntVar(&overrides.ImageSize, "image-size", d.ImageSize, "rendered frame height and width")
	f.BoolVar(&overrides.Sticky, "sticky", d.Sticky, "repeat the previous action at random")
	f.Float64Var(&overrides.StickyProbability, "sticky-probability", d.StickyProbability, "chance of repeating the previous action")
	f.BoolVar(&overrides.GrayScale, "gray-scale", d.GrayScale, "convert frames to one channel")
	f.BoolVar(&overrides.Flatten, "flatten", d.Flatten, "flatten dict observations")
	f.BoolVar(&overrides.TerminateWhenUnhealthy, "terminate-when-unhealthy", d.TerminateWhenUnhealthy, "end episodes in unhealthy states")
	f.BoolVar(&overrides.Continuous, "continuous", d.Continuous, "rescale actions to [-1, 1]")
}

// loadConfig merges, in increasing priority, defaults, the config file,
// GYMKIT_* variables and flags that were set explicitly
func loadConfig(cmd *cobra.Command) (config.EnvConfig, config.RolloutConfig, error) {
	var file *config.ExperimentConfig
	if configPath != "" {
		var err error
		file, err = config.LoadConfig(configPath)
		if err != nil {
			return config.EnvConfig{}, config.RolloutConfig{}, err
		}
	}

	name, err := config.ResolveName(envID, file)
	if err != nil {
		return config.EnvConfig{}, config.RolloutConfig{}, fmt.Errorf("%v, use --env, GYMKIT_ENV_NAME or --config", err)
	}

	cfg := config.Default(name)
	rc := config.DefaultRollout()
	if file != nil {
		if block, ok := file.Environment(name); ok {
			cfg = block
		}
		rc = file.Rollout
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return config.EnvConfig{}, config.RolloutConfig{}, err
	}
	cfg.Name = name

	flags := cmd.Flags()
	set := func(flag string, apply func()) {
		if flags.Changed(flag) {
			apply()
		}
	}
	set("seed", func() { cfg.Seed = overrides.Seed })
	set("save-folder", func() { cfg.SaveFolder = overrides.SaveFolder })
	set("episode-monitor", func() { cfg.AddEpisodeMonitor = overrides.AddEpisodeMonitor })
	set("action-repeat", func() { cfg.ActionRepeat = overrides.ActionRepeat })
	set("frame-stack", func() { cfg.FrameStack = overrides.FrameStack })
	set("from-pixels", func() { cfg.FromPixels = overrides.FromPixels })
	set("pixels-only", func() { cfg.PixelsOnly = overrides.PixelsOnly })
	set("image-size", func() { cfg.ImageSize = overrides.ImageSize })
	set("sticky", func() { cfg.Sticky = overrides.Sticky })
	set("sticky-probability", func() { cfg.StickyProbability = overrides.StickyProbability })
	set("gray-scale", func() { cfg.GrayScale = overrides.GrayScale })
	set("flatten", func() { cfg.Flatten = overrides.Flatten })
	set("terminate-when-unhealthy", func() { cfg.TerminateWhenUnhealthy = overrides.TerminateWhenUnhealthy })
	set("continuous", func() { cfg.Continuous = overrides.Continuous })

	set("episodes", func() { rc.Episodes = rollout.Episodes })
	set("max-steps", func() { rc.MaxSteps = rollout.MaxSteps })
	set("policy", func() { rc.Policy = rollout.Policy })
	set("provider", func() { rc.Provider = rollout.Provider })
	set("model", func() { rc.Model = rollout.Model })
	set("stats-file", func() { rc.StatsFile = rollout.StatsFile })

	return cfg, rc, nil
}

func listEnvironments(cmd *cobra.Command, args []string) error {
	fmt.Println("Registry environments:")
	for _, id := range sim.Registry().IDs() {
		fmt.Println("  " + id)
	}
	fmt.Println("Always routed to the registry:")
	fmt.Println("  " + strings.Join(environment.KnownRegistryIDs, ", "))
	fmt.Println("Domains (use domain-task, task defaults to " + environment.DefaultTask + "):")
	for _, d := range sim.Suite().Domains() {
		fmt.Println("  " + d)
	}
	return nil
}

func makeEnvironment(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	env, err := environment.Make(cfg, sim.Registry(), sim.Suite())
	if err != nil {
		return fmt.Errorf("failed to build %s: %v", cfg.Name, err)
	}
	defer env.Close()

	obs, _, err := env.Reset(core.Seed(cfg.Seed))
	if err != nil {
		return err
	}
	fmt.Printf("Environment: %s\n", cfg.Name)
	fmt.Printf("Observation space: %v\n", env.ObservationSpace())
	fmt.Printf("Action space: %v\n", env.ActionSpace())
	fmt.Printf("First observation: %s\n", describe(obs))
	fmt.Println("Stages (outermost first):")
	for _, stage := range environment.Stages(env) {
		fmt.Printf("  %T\n", stage)
	}
	return nil
}

func runRollout(cmd *cobra.Command, args []string) error {
	cfg, rc, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	broker := messaging.NewBroker()
	defer broker.Reset()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		cancel()
	}()

	episodes := make(chan messaging.Message, 100)
	if err := broker.Subscribe("cli", episodes, messaging.TopicEpisodeEnd); err != nil {
		return err
	}
	go func() {
		for {
			select {
			case msg := <-episodes:
				if stats, ok := msg.Content.(wrappers.EpisodeStats); ok {
					log.Printf("Episode %s from %s: return %.2f, length %d, took %s",
						stats.ID, msg.From, stats.Return, stats.Length, stats.Duration)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	builder := environment.NewBuilder(
		environment.WithRegistry(sim.Registry()),
		environment.WithSuite(sim.Suite()),
		environment.WithPublisher(broker),
	)
	env, err := builder.Make(cfg)
	if err != nil {
		return fmt.Errorf("failed to build %s: %v", cfg.Name, err)
	}
	defer env.Close()

	var policy agent.Policy
	switch rc.Policy {
	case "random":
		policy = agent.NewRandomPolicy(env.ActionSpace(), cfg.Seed)
	case "llm":
		p, err := agent.NewLLMPolicy(ctx, env.ActionSpace(),
			agent.WithModel(agent.ModelInfo{Id: rc.Model, Provider: rc.Provider}),
			agent.WithMessageBroker(broker),
		)
		if err != nil {
			return fmt.Errorf("failed to create policy: %v", err)
		}
		defer p.Close()
		p.StartMessageHandler(ctx)
		log.Printf("Created %s", p.GetID())
		policy = p
	default:
		return fmt.Errorf("unknown policy %q", rc.Policy)
	}

	exp := experiment.NewRolloutExperiment(cfg.Name, env, policy,
		experiment.WithEpisodes(rc.Episodes),
		experiment.WithMaxSteps(rc.MaxSteps),
		experiment.WithSeed(cfg.Seed),
		experiment.WithStatsFile(rc.StatsFile),
	)
	summary, err := exp.Run(ctx)
	if err != nil {
		return fmt.Errorf("experiment failed: %v", err)
	}

	fmt.Printf("Run %s: %d episodes, mean return %.2f (std %.2f)\n",
		summary.RunID, len(summary.Episodes), summary.MeanReturn, summary.StdReturn)
	return nil
}

// describe prints vectors in full and images by shape
func describe(obs any) string {
	switch v := obs.(type) {
	case core.Frames:
		if len(v) == 0 {
			return "0 frames"
		}
		return fmt.Sprintf("%d frames of %s", len(v), describe(v[0]))
	case []uint8:
		return fmt.Sprintf("%d pixel values", len(v))
	default:
		return fmt.Sprint(obs)
	}
}
