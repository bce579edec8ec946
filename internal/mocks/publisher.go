package mocks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/stretchr/testify/mock"

	"messenger-core/internal/bus"
)

// PublisherMock stands in for the broker publisher.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	args := m.Called(ctx, routingKey, event, headers)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Published is one frame handed to a FramePublisher.
type Published struct {
	Topic   bus.Topic
	Frame   any
	Exclude string
	Evict   string
}

// FramePublisher records frames published to the fan-out bus.
type FramePublisher struct {
	mu     sync.Mutex
	frames []Published
	Err    error
}

func (p *FramePublisher) Publish(_ context.Context, topic bus.Topic, frame any, opts ...bus.PublishOption) error {
	ev := bus.Event{Topic: topic}
	for _, opt := range opts {
		opt(&ev)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, Published{Topic: topic, Frame: frame, Exclude: ev.ExcludeConn, Evict: ev.EvictUser})
	return p.Err
}

// Frames returns everything published so far.
func (p *FramePublisher) Frames() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Published(nil), p.frames...)
}

// On returns the frames published to topic.
func (p *FramePublisher) On(topic bus.Topic) []Published {
	var out []Published
	for _, f := range p.Frames() {
		if f.Topic == topic {
			out = append(out, f)
		}
	}
	return out
}

// JSON renders a recorded frame the way it would go over the wire.
func (f Published) JSON() map[string]any {
	raw, _ := json.Marshal(f.Frame)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return out
}
