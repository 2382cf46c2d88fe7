// Package peertest provides in-memory stand-ins for the cross-service
// lookups so the integrity rules can be exercised without a network.
package peertest

import (
	"context"
	"sync"

	"github.com/ichigozero/taskmesh/backend/usersvc"
)

// Users is a tasksvc.UserLookup over a fixed set of user ids.
type Users struct {
	mu    sync.Mutex
	ids   map[uint64]bool
	err   error
	calls int
}

func NewUsers(ids ...uint64) *Users {
	u := &Users{ids: map[uint64]bool{}}
	for _, id := range ids {
		u.ids[id] = true
	}
	return u
}

func (u *Users) Add(id uint64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.ids[id] = true
}

func (u *Users) Remove(id uint64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.ids, id)
}

// Fail makes every lookup return err until called again with nil.
func (u *Users) Fail(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.err = err
}

// Calls reports how many lookups were made.
func (u *Users) Calls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

func (u *Users) UserExists(_ context.Context, userID uint64) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.calls++
	if u.err != nil {
		return u.err
	}
	if !u.ids[userID] {
		return usersvc.ErrUserNotFound
	}
	return nil
}

// Tasks is a usersvc.TaskCounter over fixed per-user counts.
type Tasks struct {
	mu     sync.Mutex
	counts map[uint64]int64
	err    error
	calls  int
}

func NewTasks() *Tasks {
	return &Tasks{counts: map[uint64]int64{}}
}

func (t *Tasks) Set(userID uint64, n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[userID] = n
}

// Fail makes every count return err until called again with nil.
func (t *Tasks) Fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

func (t *Tasks) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func (t *Tasks) CountByUser(_ context.Context, userID uint64) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls++
	if t.err != nil {
		return 0, t.err
	}
	return t.counts[userID], nil
}
