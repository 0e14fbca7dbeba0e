// Example: Basic Fiber Usage
//
// This example demonstrates:
// - Creating a fiber and resuming it by hand
// - Yielding back to the resumer
// - Running fibers and plain callables on a scheduler
//
// Run with: go run ./fiber/examples/01_basic_usage/
package main

import (
	"fmt"
	"os"

	"github.com/joeycumines/go-fiber/fiber"
	"github.com/joeycumines/logiface"
)

func main() {
	fiber.SetLogger(fiber.NewDefaultLogger(os.Stderr, logiface.LevelInformational))

	manualExample()
	schedulerExample()
}

func manualExample() {
	fmt.Println("=== Manual resume ===")

	f := fiber.New(func() {
		fmt.Println("fiber: step 1")
		fiber.YieldToHold()
		fmt.Println("fiber: step 2")
	})

	fmt.Println("main: state", f.State())
	fmt.Println("main: resume returned", f.SwapIn())
	fmt.Println("main: resume returned", f.SwapIn())
}

func schedulerExample() {
	fmt.Println("\n=== Scheduler ===")

	// 3 workers: the calling goroutine plus 2 spawned threads
	s, err := fiber.NewScheduler(3, fiber.WithName("basic"), fiber.WithMetrics(true))
	if err != nil {
		panic(err)
	}

	for i := range 3 {
		s.ScheduleFunc(func() {
			fmt.Printf("callable %d on thread %d\n", i, fiber.CurrentThreadID())
		})
	}

	// yields ready twice, the scheduler requeues it each time
	s.ScheduleFiber(fiber.New(func() {
		for i := range 3 {
			fmt.Printf("fiber slice %d on thread %d\n", i, fiber.CurrentThreadID())
			if i < 2 {
				fiber.YieldToReady()
			}
		}
	}))

	s.Start()
	// the caller's share of the work runs in here
	s.Stop()
	s.Close()

	m := s.Metrics()
	fmt.Printf("dispatched=%d requeued=%d completed=%d\n", m.Dispatched, m.Requeued, m.Completed)
}
