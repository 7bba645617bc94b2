package netmon_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cadenzalabs/cadenza-playlist-backend/internal/infra/netmon"
)

type probeStub struct {
	mu     sync.Mutex
	online bool
}

func (p *probeStub) probe() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

func (p *probeStub) set(online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = online
}

func TestStartPushesInitialState(t *testing.T) {
	stub := &probeStub{online: true}
	monitor := netmon.NewMonitor(
		netmon.WithProbe(stub.probe),
		netmon.WithInterval(time.Hour),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []bool
	monitor.Start(ctx, func(online bool) {
		got = append(got, online)
	})

	// The initial push is synchronous
	if len(got) != 1 || got[0] != true {
		t.Errorf("expected synchronous initial push [true], got %v", got)
	}
	if !monitor.Online() {
		t.Error("Online() should report the probed state")
	}
}

func TestTransitionsArePushed(t *testing.T) {
	stub := &probeStub{online: true}
	monitor := netmon.NewMonitor(
		netmon.WithProbe(stub.probe),
		netmon.WithInterval(5*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan bool, 16)
	monitor.Start(ctx, func(online bool) {
		events <- online
	})

	// Drain the initial push
	select {
	case v := <-events:
		if v != true {
			t.Fatalf("initial push = %v, want true", v)
		}
	case <-time.After(time.Second):
		t.Fatal("no initial push")
	}

	stub.set(false)
	select {
	case v := <-events:
		if v != false {
			t.Fatalf("transition push = %v, want false", v)
		}
	case <-time.After(time.Second):
		t.Fatal("offline transition was not pushed")
	}

	stub.set(true)
	select {
	case v := <-events:
		if v != true {
			t.Fatalf("transition push = %v, want true", v)
		}
	case <-time.After(time.Second):
		t.Fatal("online transition was not pushed")
	}
}

func TestSteadyStateIsNotRepushed(t *testing.T) {
	stub := &probeStub{online: true}
	monitor := netmon.NewMonitor(
		netmon.WithProbe(stub.probe),
		netmon.WithInterval(2*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan bool, 16)
	monitor.Start(ctx, func(online bool) {
		events <- online
	})

	<-events // initial push

	select {
	case v := <-events:
		t.Errorf("unexpected push %v without a transition", v)
	case <-time.After(50 * time.Millisecond):
		// no further pushes while the state is steady
	}
}
