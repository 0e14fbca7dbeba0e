package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/joeycumines/go-fiber/config"
	"github.com/joeycumines/go-fiber/fiber"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	threadsVar   = config.MustLookup(config.Default, "bench.threads", 4, "scheduler worker threads, including the caller")
	fibersVar    = config.MustLookup(config.Default, "bench.fibers", 1000, "fibers to schedule")
	yieldsVar    = config.MustLookup(config.Default, "bench.yields", 10, "times each fiber yields ready before finishing")
	producersVar = config.MustLookup(config.Default, "bench.producers", 4, "goroutines scheduling fibers concurrently")
	useCallerVar = config.MustLookup(config.Default, "bench.use_caller", true, "run the calling goroutine as a worker")
	pinVar       = config.MustLookup(config.Default, "bench.pin", false, "pin fibers round-robin to worker threads")
	wakeVar      = config.MustLookup(config.Default, "bench.wake", false, "park idle workers instead of spinning")
	pollVar      = config.MustLookup(config.Default, "bench.poll", fiber.DefaultPollInterval, "idle poll interval with bench.wake")
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the workload and print scheduler metrics",
	Args:  cobra.NoArgs,
	RunE:  runBench,
}

func init() {
	f := runCmd.Flags()
	f.IntP("threads", "t", threadsVar.Get(), threadsVar.Description())
	f.IntP("fibers", "n", fibersVar.Get(), fibersVar.Description())
	f.Int("yields", yieldsVar.Get(), yieldsVar.Description())
	f.Int("producers", producersVar.Get(), producersVar.Description())
	f.Bool("use-caller", useCallerVar.Get(), useCallerVar.Description())
	f.Bool("pin", pinVar.Get(), pinVar.Description())
	f.Bool("wake", wakeVar.Get(), wakeVar.Description())
	f.Duration("poll", pollVar.Get(), pollVar.Description())
	f.Bool("watch", false, "reload the config file while running")

	for flag, key := range map[string]string{
		"threads":    threadsVar.Name(),
		"fibers":     fibersVar.Name(),
		"yields":     yieldsVar.Name(),
		"producers":  producersVar.Name(),
		"use-caller": useCallerVar.Name(),
		"pin":        pinVar.Name(),
		"wake":       wakeVar.Name(),
		"poll":       pollVar.Name(),
	} {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}
}

func runBench(cmd *cobra.Command, _ []string) error {
	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		if path := viper.ConfigFileUsed(); path != "" {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go func() {
				_ = config.Default.Watch(ctx, path, logger)
			}()
		}
	}

	opts := []fiber.Option{
		fiber.WithName("fiberbench"),
		fiber.WithUseCaller(useCallerVar.Get()),
		fiber.WithMetrics(true),
	}
	if wakeVar.Get() {
		opts = append(opts, fiber.WithHooks(fiber.NewWakeHooks(pollVar.Get())))
	}

	s, err := fiber.NewScheduler(threadsVar.Get(), opts...)
	if err != nil {
		return err
	}

	start := time.Now()
	s.Start()

	var threads []int64
	if pinVar.Get() {
		threads = s.ThreadIDs()
	}

	fibers, producers, yields := fibersVar.Get(), max(producersVar.Get(), 1), yieldsVar.Get()
	var wg conc.WaitGroup
	for p := range producers {
		wg.Go(func() {
			for i := p; i < fibers; i += producers {
				it := fiber.FiberItem(fiber.New(func() {
					for range yields {
						fiber.YieldToReady()
					}
				}))
				if len(threads) != 0 {
					it = it.On(threads[i%len(threads)])
				}
				s.Schedule(it)
			}
		})
	}
	wg.Wait()

	s.Stop()
	s.Close()

	report(cmd.OutOrStdout(), s.Metrics(), time.Since(start))
	return nil
}

func report(w io.Writer, m *fiber.Metrics, elapsed time.Duration) {
	_, _ = fmt.Fprintf(w, "elapsed:     %v\n", elapsed)
	_, _ = fmt.Fprintf(w, "dispatched:  %d\n", m.Dispatched)
	_, _ = fmt.Fprintf(w, "requeued:    %d\n", m.Requeued)
	_, _ = fmt.Fprintf(w, "held:        %d\n", m.Held)
	_, _ = fmt.Fprintf(w, "completed:   %d\n", m.Completed)
	_, _ = fmt.Fprintf(w, "failed:      %d\n", m.Failed)
	_, _ = fmt.Fprintf(w, "idled:       %d\n", m.Idled)
	_, _ = fmt.Fprintf(w, "tickles:     %d\n", m.Tickles)
	_, _ = fmt.Fprintf(w, "queue:       max=%d avg=%.1f\n", m.QueueMax, m.QueueAvg)
	_, _ = fmt.Fprintf(w, "slice:       p50=%v p90=%v p99=%v max=%v (n=%d)\n",
		m.Latency.P50, m.Latency.P90, m.Latency.P99, m.Latency.Max, m.Latency.Samples)
	if elapsed > 0 {
		_, _ = fmt.Fprintf(w, "throughput:  %.0f switches/s\n", float64(m.Dispatched)/elapsed.Seconds())
	}
}
