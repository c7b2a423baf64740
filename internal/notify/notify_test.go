package notify

import (
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"
)

type capturedSend struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestAlerter() (*SMTPAlerter, *[]capturedSend, *sync.WaitGroup) {
	var (
		mu    sync.Mutex
		sends []capturedSend
		wg    sync.WaitGroup
	)
	a := NewSMTPAlerter("smtp.example.com", 587, "user", "pass", "noreply@example.com", "admin@example.com")
	a.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		defer wg.Done()
		mu.Lock()
		defer mu.Unlock()
		sends = append(sends, capturedSend{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return a, &sends, &wg
}

func TestAlertDelivers(t *testing.T) {
	a, sends, wg := newTestAlerter()

	wg.Add(1)
	a.Alert("storage failure", "bucket unreachable")
	wg.Wait()

	if len(*sends) != 1 {
		t.Fatalf("got %d sends, want 1", len(*sends))
	}
	s := (*sends)[0]
	if s.addr != "smtp.example.com:587" {
		t.Errorf("addr = %q", s.addr)
	}
	if len(s.to) != 1 || s.to[0] != "admin@example.com" {
		t.Errorf("to = %v", s.to)
	}
	if !strings.Contains(s.msg, "Subject: storage failure") {
		t.Errorf("message missing subject: %q", s.msg)
	}
	if !strings.Contains(s.msg, "bucket unreachable") {
		t.Errorf("message missing body: %q", s.msg)
	}
}

func TestAlertThrottlesDuplicates(t *testing.T) {
	a, sends, wg := newTestAlerter()

	wg.Add(1)
	a.Alert("storage failure", "first")
	a.Alert("storage failure", "duplicate within window")
	wg.Wait()

	if len(*sends) != 1 {
		t.Errorf("got %d sends, want 1 (duplicate suppressed)", len(*sends))
	}

	// A different subject is not throttled.
	wg.Add(1)
	a.Alert("encoding failure", "other")
	wg.Wait()
	if len(*sends) != 2 {
		t.Errorf("got %d sends, want 2", len(*sends))
	}
}

func TestAlertThrottleExpires(t *testing.T) {
	a, sends, wg := newTestAlerter()
	a.throttle = 10 * time.Millisecond

	wg.Add(1)
	a.Alert("storage failure", "first")
	wg.Wait()

	time.Sleep(20 * time.Millisecond)

	wg.Add(1)
	a.Alert("storage failure", "after window")
	wg.Wait()

	if len(*sends) != 2 {
		t.Errorf("got %d sends, want 2", len(*sends))
	}
}

func TestNopAlerter(t *testing.T) {
	// Must not panic or block.
	Nop{}.Alert("anything", "at all")
}
