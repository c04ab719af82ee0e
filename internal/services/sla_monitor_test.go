package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"risk-review-system/internal/models"
)

type breachStub struct {
	mu     sync.Mutex
	calls  map[string]int
	result map[string][]*models.ReviewQueueItem
	fail   map[string]bool
}

func (b *breachStub) SLABreaches(_ context.Context, org string) ([]*models.ReviewQueueItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[org]++
	if b.fail[org] {
		return nil, errors.New("database is locked")
	}
	return b.result[org], nil
}

func (b *breachStub) count(org string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[org]
}

func TestSLAMonitor_CheckOnce(t *testing.T) {
	stub := &breachStub{
		calls: map[string]int{},
		result: map[string][]*models.ReviewQueueItem{
			"org-1": {{ID: "rev-1", DueDate: evalNow}, {ID: "rev-2", DueDate: evalNow}},
		},
		fail: map[string]bool{"org-2": true},
	}
	m := NewSLAMonitor(stub, []string{"org-1", "org-2"}, time.Minute, nil)

	assert.Equal(t, 2, m.CheckOnce(context.Background()))
	assert.Equal(t, 1, stub.count("org-1"))
	assert.Equal(t, 1, stub.count("org-2"))
}

func TestSLAMonitor_Run(t *testing.T) {
	stub := &breachStub{calls: map[string]int{}}
	m := NewSLAMonitor(stub, []string{"org-1"}, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return stub.count("org-1") >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestSLAMonitor_NoOrganizations(t *testing.T) {
	m := NewSLAMonitor(&breachStub{calls: map[string]int{}}, nil, 0, nil)
	assert.Equal(t, 15*time.Minute, m.interval)

	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor without organizations must return immediately")
	}
}
