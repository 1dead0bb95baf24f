package sinkfake

import (
	"sync"

	"github.com/mnewlive/compliance-connector/callbacks"
)

var _ callbacks.Sink = (*FakeSink)(nil)

type SuccessCall struct {
	SessionSecret string
	Payload       callbacks.SessionSuccess
}

type FailCall struct {
	SessionSecret string
	Kind          callbacks.ErrorKind
}

type UpdateCall struct {
	SessionSecret string
	Payload       callbacks.SessionUpdate
}

// FakeSink records every delivery so tests can assert on exactly which
// callbacks were dispatched and how often.
type FakeSink struct {
	Successes []SuccessCall
	Fails     []FailCall
	Updates   []UpdateCall
	Revokes   []string
	lock      sync.Mutex
}

func NewFakeSink() *FakeSink {
	return &FakeSink{}
}

func (s *FakeSink) SendSuccess(sessionSecret string, payload callbacks.SessionSuccess) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.Successes = append(s.Successes, SuccessCall{SessionSecret: sessionSecret, Payload: payload})
}

func (s *FakeSink) SendFail(sessionSecret string, kind callbacks.ErrorKind) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.Fails = append(s.Fails, FailCall{SessionSecret: sessionSecret, Kind: kind})
}

func (s *FakeSink) SendUpdate(sessionSecret string, payload callbacks.SessionUpdate) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.Updates = append(s.Updates, UpdateCall{SessionSecret: sessionSecret, Payload: payload})
}

func (s *FakeSink) SendRevoke(accessToken string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.Revokes = append(s.Revokes, accessToken)
}

// CallCount returns the total number of recorded deliveries.
func (s *FakeSink) CallCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.Successes) + len(s.Fails) + len(s.Updates) + len(s.Revokes)
}
