// Example: Shutdown Handling
//
// This example demonstrates:
// - Stop draining the queue before it returns
// - An item pinned to a thread that does not exist blocking Stop
// - Removing such items so Stop can finish
// - Closing a fiber left suspended in StateHold
//
// Run with: go run ./fiber/examples/03_shutdown/
package main

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-fiber/fiber"
)

func main() {
	drainExample()
	stuckExample()
	closeExample()
}

func drainExample() {
	fmt.Println("=== Drain ===")

	s, err := fiber.NewScheduler(2, fiber.WithUseCaller(false))
	if err != nil {
		panic(err)
	}
	s.Start()
	for i := range 5 {
		s.ScheduleFunc(func() {
			time.Sleep(10 * time.Millisecond)
			fmt.Println("task", i, "done")
		})
	}
	s.Stop()
	s.Close()
	fmt.Println("pending after stop:", s.Pending())
}

func stuckExample() {
	fmt.Println("\n=== Pinned to a missing thread ===")

	s, err := fiber.NewScheduler(1, fiber.WithUseCaller(false))
	if err != nil {
		panic(err)
	}
	s.Start()

	const missing = 1 << 40
	s.Schedule(fiber.FuncItem(func() {
		fmt.Println("never runs")
	}).On(missing))

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		s.Stop()
	}()

	select {
	case <-stopped:
		fmt.Println("unexpected: stop returned")
	case <-time.After(100 * time.Millisecond):
		fmt.Println("stop is blocked, pending:", s.Pending())
	}

	n := s.Remove(func(it fiber.Item) bool { return it.Thread() == missing })
	fmt.Println("removed", n)
	<-stopped
	s.Close()
	fmt.Println("stopped")
}

func closeExample() {
	fmt.Println("\n=== Closing a held fiber ===")

	f := fiber.New(func() {
		defer fmt.Println("fiber: deferred cleanup ran")
		fiber.YieldToHold()
		fmt.Println("never printed")
	})
	fmt.Println("state:", f.SwapIn())
	f.Close()
	fmt.Println("state:", f.State(), "err:", f.Err())
}
