package agent

import "testing"

func TestInputQueueOfferTake(t *testing.T) {
	var q InputQueue

	if _, ok := q.Take(); ok {
		t.Error("expected empty queue initially")
	}

	q.Offer("first")
	text, ok := q.Take()
	if !ok || text != "first" {
		t.Errorf("expected (first, true), got (%q, %v)", text, ok)
	}

	if _, ok := q.Take(); ok {
		t.Error("expected second take to return nothing")
	}
}

func TestInputQueueLastWriteWins(t *testing.T) {
	var q InputQueue
	q.Offer("stale")
	q.Offer("fresh")

	text, ok := q.Take()
	if !ok || text != "fresh" {
		t.Errorf("expected latest offer, got (%q, %v)", text, ok)
	}
	if _, ok := q.Take(); ok {
		t.Error("expected queue drained after take")
	}
}
