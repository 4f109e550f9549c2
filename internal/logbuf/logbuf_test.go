package logbuf

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestAppendEvictsOldest(t *testing.T) {
	b := New(15)
	for i := 0; i < 20; i++ {
		b.Append(Line{Time: time.Now(), Text: fmt.Sprintf("line-%d", i)})
	}
	if b.Len() != 15 {
		t.Fatalf("len = %d, want 15", b.Len())
	}
	got := b.Tail(15)
	if len(got) != 15 {
		t.Fatalf("tail len = %d, want 15", len(got))
	}
	for i, l := range got {
		want := fmt.Sprintf("line-%d", i+5)
		if l.Text != want {
			t.Fatalf("tail[%d] = %q, want %q", i, l.Text, want)
		}
	}
}

func TestTailLargerThanSize(t *testing.T) {
	b := New(50)
	for i := 0; i < 10; i++ {
		b.Append(Line{Text: fmt.Sprintf("l%d", i)})
	}
	got := b.Tail(30)
	if len(got) != 10 {
		t.Fatalf("tail(30) on 10 lines returned %d entries", len(got))
	}
	if got[0].Text != "l0" || got[9].Text != "l9" {
		t.Fatalf("tail order wrong: first=%q last=%q", got[0].Text, got[9].Text)
	}
}

func TestTailEmptyAndZero(t *testing.T) {
	b := New(5)
	if got := b.Tail(3); got != nil {
		t.Fatalf("tail on empty buffer = %v, want nil", got)
	}
	b.Append(Line{Text: "x"})
	if got := b.Tail(0); got != nil {
		t.Fatalf("tail(0) = %v, want nil", got)
	}
}

func TestConcurrentReaders(t *testing.T) {
	b := New(100)
	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				b.Append(Line{Text: fmt.Sprintf("w%d", i)})
			}
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				_ = b.Tail(10)
				_ = b.Len()
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(stop)
	wg.Wait()
}

func TestSubscribeReceivesAppended(t *testing.T) {
	b := New(10)
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Append(Line{Text: "hello"})
	select {
	case l := <-ch:
		if l.Text != "hello" {
			t.Fatalf("subscriber got %q", l.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive line")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New(10)
	ch := b.Subscribe()
	b.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel not closed after unsubscribe")
	}
	// Double unsubscribe must not panic.
	b.Unsubscribe(ch)
}
