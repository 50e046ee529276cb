//go:build !deadlock

// Package sync provides the mutex types used by grouppilot's session registry,
// workflow engine and event hub. Built with -tags deadlock they are backed by
// go-deadlock; by default they are the standard library types.
package sync

import "sync"

// Mutex is the standard sync.Mutex.
type Mutex = sync.Mutex

// RWMutex is the standard sync.RWMutex.
type RWMutex = sync.RWMutex

// Once is the standard sync.Once.
type Once = sync.Once

// WaitGroup is the standard sync.WaitGroup.
type WaitGroup = sync.WaitGroup
