// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/juju/errors"

	"tenant-backup/src/store"
)

// Memory keeps artifact sizes by name. Contents are read and discarded.
type Memory struct {
	mu sync.Mutex

	Files      map[string]int64
	UploadErr  map[string]error
	RemoveErr  map[string]error
	ListErr    error
	Removed    []string
	ListCalls  int
	DeleteHits int
}

var _ store.Store = (*Memory)(nil)

// NewMemory returns a store pre-populated with names.
func NewMemory(names ...string) *Memory {
	m := &Memory{Files: map[string]int64{}, UploadErr: map[string]error{}, RemoveErr: map[string]error{}}
	for _, n := range names {
		m.Files[n] = 0
	}
	return m
}

func (m *Memory) Upload(ctx context.Context, name string, r io.Reader) (int64, error) {
	m.mu.Lock()
	uerr := m.UploadErr[name]
	m.mu.Unlock()
	if uerr != nil {
		return 0, uerr
	}
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return n, errors.Trace(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Files[name] = n
	return n, nil
}

func (m *Memory) List(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]string, 0, len(m.Files))
	for n := range m.Files {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.RemoveErr[name]; err != nil {
		return err
	}
	if _, ok := m.Files[name]; ok {
		m.DeleteHits++
		delete(m.Files, name)
	}
	m.Removed = append(m.Removed, name)
	return nil
}

// Names returns the current artifact names, sorted. Unlike List it is not
// counted in ListCalls.
func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Files))
	for n := range m.Files {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (m *Memory) String() string { return "memory" }

func (m *Memory) Close() error { return nil }
