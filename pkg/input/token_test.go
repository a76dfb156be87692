package input

import (
	"sync"
	"testing"
)

func TestToken_Exclusive(t *testing.T) {
	tok := &Token{}

	if !tok.TryAcquire() {
		t.Fatal("Expected a free token to be acquirable")
	}
	if !tok.Held() {
		t.Error("Expected Held after acquire")
	}
	if tok.TryAcquire() {
		t.Error("Expected a held token to refuse a second acquire")
	}

	tok.Release()
	if tok.Held() {
		t.Error("Expected Held to clear on release")
	}
	if !tok.TryAcquire() {
		t.Error("Expected the token to be acquirable again after release")
	}
	tok.Release()
}

func TestToken_SingleWinnerUnderContention(t *testing.T) {
	tok := &Token{}

	var wg sync.WaitGroup
	wins := make(chan struct{}, 100)
	start := make(chan struct{})
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if tok.TryAcquire() {
				wins <- struct{}{}
			}
		}()
	}
	close(start)
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	if won != 1 {
		t.Errorf("Expected exactly one winner, got %d", won)
	}
}
