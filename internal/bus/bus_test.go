package bus

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBus_DeliversToSubscriber(t *testing.T) {
	b := New()
	defer b.Close()

	got := make(chan Event, 1)
	if err := b.Subscribe("test", func(ev Event) { got <- ev }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	b.Publish(Event{Kind: KindReminderFired, At: time.Now()})

	select {
	case ev := <-got:
		if ev.Kind != KindReminderFired {
			t.Errorf("expected kind %q, got %q", KindReminderFired, ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestBus_OrderPreservedWithinKind(t *testing.T) {
	b := New()
	defer b.Close()

	const n = 10
	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	err := b.Subscribe("test", func(ev Event) {
		mu.Lock()
		got = append(got, ev.Payload.(int))
		full := len(got) == n
		mu.Unlock()
		if full {
			close(done)
		}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	for i := 0; i < n; i++ {
		b.Publish(Event{Kind: KindDistanceVerdict, At: time.Now(), Payload: i})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	for i, v := range got {
		if v != i {
			t.Fatalf("order broken: got %v", got)
		}
	}
}

func TestBus_SlowSubscriberDropsOldest(t *testing.T) {
	b := New()
	defer b.Close()

	release := make(chan struct{})
	var mu sync.Mutex
	var got []int

	err := b.Subscribe("slow", func(ev Event) {
		<-release
		mu.Lock()
		got = append(got, ev.Payload.(int))
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// One event occupies the handler; queueCap more fill the queue; the
	// rest evict from the front.
	total := queueCap + 5
	for i := 0; i < total; i++ {
		b.Publish(Event{Kind: KindDistanceVerdict, At: time.Now(), Payload: i})
	}

	// Wait for the first event to be in the handler, then check drops.
	deadline := time.After(time.Second)
	for {
		dropped, err := b.Dropped("slow")
		if err != nil {
			t.Fatalf("dropped: %v", err)
		}
		if dropped >= 4 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected at least 4 drops, got %d", dropped)
		case <-time.After(10 * time.Millisecond):
		}
	}

	close(release)

	// The survivors drain in order and the newest event is among them.
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0 && got[len(got)-1] == total-1
	}, "newest event was not delivered")

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("order broken after drops: %v", got)
		}
	}
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	b := New()
	defer b.Close()

	// A handler that never returns must not stall publishers.
	if err := b.Subscribe("stuck", func(ev Event) { select {} }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	published := make(chan struct{})
	go func() {
		for i := 0; i < queueCap*3; i++ {
			b.Publish(Event{Kind: KindReminderFired, At: time.Now(), Payload: i})
		}
		close(published)
	}()

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a stuck subscriber")
	}
}

func TestBus_KindsDoNotStarveEachOther(t *testing.T) {
	b := New()
	defer b.Close()

	var mu sync.Mutex
	seen := make(map[Kind]int)
	done := make(chan struct{})
	var once sync.Once

	err := b.Subscribe("test", func(ev Event) {
		mu.Lock()
		seen[ev.Kind]++
		ok := seen[KindReminderFired] > 0 && seen[KindDistanceVerdict] > 0
		mu.Unlock()
		if ok {
			once.Do(func() { close(done) })
		}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// A flood of one kind followed by a single event of another.
	for i := 0; i < queueCap; i++ {
		b.Publish(Event{Kind: KindDistanceVerdict, At: time.Now()})
	}
	b.Publish(Event{Kind: KindReminderFired, At: time.Now()})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reminder starved behind verdict flood")
	}
}

func TestBus_SubscribeErrors(t *testing.T) {
	b := New()

	if err := b.Subscribe("a", nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("expected ErrNilHandler, got %v", err)
	}

	if err := b.Subscribe("a", func(Event) {}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := b.Subscribe("a", func(Event) {}); !errors.Is(err, ErrSubscriberExists) {
		t.Errorf("expected ErrSubscriberExists, got %v", err)
	}

	if err := b.Unsubscribe("missing"); !errors.Is(err, ErrNoSubscriber) {
		t.Errorf("expected ErrNoSubscriber, got %v", err)
	}

	b.Close()
	if err := b.Subscribe("b", func(Event) {}); !errors.Is(err, ErrBusClosed) {
		t.Errorf("expected ErrBusClosed, got %v", err)
	}
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	defer b.Close()

	var count int
	var mu sync.Mutex
	if err := b.Subscribe("test", func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := b.Unsubscribe("test"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}

	b.Publish(Event{Kind: KindReminderFired, At: time.Now()})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("events delivered after unsubscribe: %d", count)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
