package detect

import (
	"errors"
	"testing"

	"github.com/sweeney/rover/internal/serialio"
	"github.com/sweeney/rover/internal/tick"
)

func TestPollSendsFirstRequest(t *testing.T) {
	c := NewClient(DefaultClientConfig)
	link := serialio.NewFakeLink()

	if got := c.Poll(5000, link); got != 0 {
		t.Errorf("sample: got %d, want 0", got)
	}
	if link.Count(RequestToken) != 1 {
		t.Fatalf("expected 1 request, got %v", link.Written)
	}
	if !c.Waiting() {
		t.Error("expected waiting after request")
	}
}

func TestPollNoRepeatWhileWaiting(t *testing.T) {
	c := NewClient(DefaultClientConfig)
	link := serialio.NewFakeLink()

	for ms := 5000; ms <= 5300; ms += 10 {
		c.Poll(tick.Millis(ms), link)
	}
	if link.Count(RequestToken) != 1 {
		t.Errorf("expected 1 request while waiting, got %d", link.Count(RequestToken))
	}
}

func TestPollTimeoutAllowsRetry(t *testing.T) {
	c := NewClient(DefaultClientConfig)
	link := serialio.NewFakeLink()

	c.Poll(5000, link)
	c.Poll(5300, link) // exactly 300: still waiting
	if !c.Waiting() {
		t.Fatal("expected still waiting at 300ms")
	}
	c.Poll(5301, link) // gives up
	if c.Waiting() {
		t.Fatal("expected timeout after 300ms")
	}
	c.Poll(5302, link) // more than 200ms since last request: ask again
	if link.Count(RequestToken) != 2 {
		t.Errorf("expected retry request, got %d", link.Count(RequestToken))
	}
	if c.Stats().Timeouts != 1 {
		t.Errorf("timeouts: got %d, want 1", c.Stats().Timeouts)
	}
}

func TestPollReplyPacing(t *testing.T) {
	c := NewClient(DefaultClientConfig)
	link := serialio.NewFakeLink()

	// Host answers every request immediately with "0".
	for ms := 5000; ms < 6000; ms += 10 {
		if link.Count(RequestToken) > link.Count("answered") {
			link.Push("0")
			link.Written = append(link.Written, "answered")
		}
		c.Poll(tick.Millis(ms), link)
	}
	// Requests need strictly more than 200ms between them: 5000, 5210, 5420, 5630, 5840.
	if got := link.Count(RequestToken); got != 5 {
		t.Errorf("requests in 1s: got %d, want 5", got)
	}
}

func TestPollParsesReply(t *testing.T) {
	c := NewClient(DefaultClientConfig)
	link := serialio.NewFakeLink()

	c.Poll(5000, link)
	link.Push("-200 px", "55")
	if got := c.Poll(5010, link); got != -200 {
		t.Errorf("sample: got %d, want -200", got)
	}
	if c.Waiting() {
		t.Error("reply should clear waiting")
	}
	if link.Drains != 1 {
		t.Errorf("expected remaining input drained, drains=%d", link.Drains)
	}
	if _, ok := link.ReadLine(); ok {
		t.Error("queued line after reply should be discarded")
	}
	// Sample holds until consumed.
	if got := c.Poll(5020, link); got != -200 {
		t.Errorf("sample after second poll: got %d, want -200", got)
	}
	c.Consume()
	if c.Sample() != 0 {
		t.Errorf("sample after consume: got %d", c.Sample())
	}
}

func TestPollZeroIsValidReply(t *testing.T) {
	c := NewClient(DefaultClientConfig)
	link := serialio.NewFakeLink()

	c.Poll(5000, link)
	link.Push("0")
	if got := c.Poll(5010, link); got != 0 {
		t.Errorf("sample: got %d, want 0", got)
	}
	if c.Waiting() {
		t.Error("zero reply should clear waiting")
	}
	if c.Stats().Replies != 1 {
		t.Errorf("replies: got %d, want 1", c.Stats().Replies)
	}
}

func TestPollGarbageIsNoReply(t *testing.T) {
	c := NewClient(DefaultClientConfig)
	link := serialio.NewFakeLink()

	c.Poll(5000, link)
	link.Push("hello")
	c.Poll(5010, link)
	if !c.Waiting() {
		t.Error("unparseable reply should leave the request outstanding")
	}
	if c.Stats().BadLines != 1 {
		t.Errorf("bad lines: got %d, want 1", c.Stats().BadLines)
	}
}

func TestPollWriteErrorStillPaces(t *testing.T) {
	c := NewClient(DefaultClientConfig)
	link := serialio.NewFakeLink()
	link.WriteError = errors.New("unplugged")

	c.Poll(5000, link)
	if !c.Waiting() {
		t.Error("expected waiting even though the write failed")
	}
	if c.Stats().Requests != 0 {
		t.Errorf("requests: got %d, want 0", c.Stats().Requests)
	}
}

func TestResetDropsStaleInput(t *testing.T) {
	c := NewClient(DefaultClientConfig)
	link := serialio.NewFakeLink()

	c.Poll(5000, link)
	link.Push("150")
	c.Poll(5010, link)

	link.Push("-90")
	c.Reset(link)
	if c.Sample() != 0 {
		t.Errorf("sample after reset: got %d", c.Sample())
	}
	if _, ok := link.ReadLine(); ok {
		t.Error("reset should drop queued lines")
	}
}
