package backend

import (
	"sync"
)

const streamBuffer = 64

// stream is the Subscription shared by all transports
type stream struct {
	events   chan Event
	done     chan struct{}
	once     sync.Once
	err      error
	channels map[string]struct{}
	onClose  func()
}

func newStream(channels []string, onClose func()) *stream {
	s := &stream{
		events:   make(chan Event, streamBuffer),
		done:     make(chan struct{}),
		channels: make(map[string]struct{}, len(channels)),
		onClose:  onClose,
	}
	for _, c := range channels {
		s.channels[c] = struct{}{}
	}
	return s
}

func (s *stream) Events() <-chan Event  { return s.events }
func (s *stream) Done() <-chan struct{} { return s.done }

func (s *stream) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *stream) Close() error {
	s.finish(nil)
	return nil
}

// wants reports whether the subscriber asked for channel; no filter means all
func (s *stream) wants(channel string) bool {
	if len(s.channels) == 0 {
		return true
	}
	_, ok := s.channels[channel]
	return ok
}

// deliver blocks until the event is queued or the stream ends
func (s *stream) deliver(ev Event) bool {
	if !s.wants(ev.Channel) {
		return true
	}
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *stream) finish(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
		if s.onClose != nil {
			s.onClose()
		}
	})
}
