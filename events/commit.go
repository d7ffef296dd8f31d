// Package events publishes unit of work commit outcomes on a watermill
// publisher.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/hnhuaxi/xdal"
)

const TopicCommitted = "xdal.unit_of_work.committed"

// Commit is the payload of a commit message.
type Commit struct {
	UnitOfWork string         `json:"unit_of_work"`
	Successful bool           `json:"successful"`
	Error      string         `json:"error,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	At         time.Time      `json:"at"`
}

// CommitPublisher is a post-commit observer publishing one message per
// commit. Publishing failures are logged, never returned.
type CommitPublisher struct {
	publisher message.Publisher
	topic     string
	logger    watermill.LoggerAdapter
	now       func() time.Time
}

type Option func(*CommitPublisher)

func WithTopic(topic string) Option {
	return func(p *CommitPublisher) {
		p.topic = topic
	}
}

func WithLogger(logger watermill.LoggerAdapter) Option {
	return func(p *CommitPublisher) {
		p.logger = logger
	}
}

func NewCommitPublisher(publisher message.Publisher, opts ...Option) *CommitPublisher {
	p := &CommitPublisher{
		publisher: publisher,
		topic:     TopicCommitted,
		logger:    xdal.Logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Attach subscribes p to the commits of u.
func (p *CommitPublisher) Attach(u xdal.UnitOfWork) (detach func()) {
	return u.OnCommitted(p.Handle)
}

func (p *CommitPublisher) Handle(ctx context.Context, event *xdal.CommittedEvent) {
	commit := Commit{
		UnitOfWork: event.UnitOfWork.ID(),
		Successful: event.Successful,
		Context:    event.UnitOfWork.ContextData(),
		At:         p.now().UTC(),
	}
	if event.Err != nil {
		commit.Error = event.Err.Error()
	}

	fields := watermill.LogFields{"unit_of_work": commit.UnitOfWork, "topic": p.topic}

	payload, err := json.Marshal(commit)
	if err != nil {
		p.logger.Error("encode commit", err, fields)
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := p.publisher.Publish(p.topic, msg); err != nil {
		p.logger.Error("publish commit", err, fields)
		return
	}
	p.logger.Trace("commit published", fields)
}

// DecodeCommit reads the payload of a message published by CommitPublisher.
func DecodeCommit(msg *message.Message) (*Commit, error) {
	var commit Commit
	if err := json.Unmarshal(msg.Payload, &commit); err != nil {
		return nil, fmt.Errorf("decode commit %s: %w", msg.UUID, err)
	}
	return &commit, nil
}
