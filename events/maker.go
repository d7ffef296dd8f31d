package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type (
	PublisherMaker  func() (message.Publisher, error)
	SubscriberMaker func() (message.Subscriber, error)
)

// GoPubsublisherMaker returns makers sharing one in-process channel pub/sub.
func GoPubsublisherMaker(config gochannel.Config, logger watermill.LoggerAdapter) (PublisherMaker, SubscriberMaker) {
	pubSub := gochannel.NewGoChannel(
		config,
		logger,
	)

	return func() (message.Publisher, error) {
			return pubSub, nil
		}, func() (message.Subscriber, error) {
			return pubSub, nil
		}
}
