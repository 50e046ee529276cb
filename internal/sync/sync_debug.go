//go:build deadlock

// Package sync provides the mutex types used by grouppilot's session registry,
// workflow engine and event hub. Built with -tags deadlock they are backed by
// go-deadlock, which reports lock-order inversions and locks held too long.
package sync

import (
	"os"
	"sync"
	"time"

	"github.com/sasha-s/go-deadlock"
)

// Mutex is a go-deadlock mutex.
type Mutex = deadlock.Mutex

// RWMutex is a go-deadlock reader/writer mutex.
type RWMutex = deadlock.RWMutex

// Once is the standard sync.Once.
type Once = sync.Once

// WaitGroup is the standard sync.WaitGroup.
type WaitGroup = sync.WaitGroup

func init() {
	// Rename batches hold the per-user workflow lock for a few seconds per
	// item, so the timeout must outlast a long batch.
	deadlock.Opts.DeadlockTimeout = 2 * time.Minute
	if v := os.Getenv("GROUPPILOT_DEADLOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			deadlock.Opts.DeadlockTimeout = d
		}
	}

	if os.Getenv("GROUPPILOT_NO_DEADLOCK_DETECT") != "" {
		deadlock.Opts.Disable = true
		return
	}

	deadlock.Opts.PrintAllCurrentGoroutines = true

	println("[DEADLOCK DETECTION ENABLED] grouppilot mutexes use go-deadlock")
}
