// Example: Thread Affinity
//
// This example demonstrates:
// - Listing the thread ids a scheduler's items may be pinned to
// - Pinning callables and fibers to one thread
// - Work pinned to the caller's thread only running during Stop
//
// Run with: go run ./fiber/examples/02_affinity/
package main

import (
	"fmt"
	"sync"

	"github.com/joeycumines/go-fiber/fiber"
)

func main() {
	s, err := fiber.NewScheduler(3, fiber.WithName("affinity"))
	if err != nil {
		panic(err)
	}
	s.Start()

	ids := s.ThreadIDs()
	fmt.Println("threads:", ids, "root:", s.RootThreadID())

	var mu sync.Mutex
	counts := make(map[int64]int)
	for i := range 12 {
		want := ids[i%len(ids)]
		s.Schedule(fiber.FuncItem(func() {
			mu.Lock()
			counts[fiber.CurrentThreadID()]++
			mu.Unlock()
		}).On(want))
	}

	// a pinned fiber keeps its pin each time it is requeued
	target := ids[len(ids)-1]
	s.Schedule(fiber.FiberItem(fiber.New(func() {
		for range 3 {
			fmt.Printf("pinned fiber on thread %d\n", fiber.CurrentThreadID())
			fiber.YieldToReady()
		}
	})).On(target))

	s.Stop()
	s.Close()

	for _, id := range ids {
		fmt.Printf("thread %d ran %d callables\n", id, counts[id])
	}
}
