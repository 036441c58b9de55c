package event_publisher

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
)

// NewRedisPublisher publishes to redis streams. Outgoing messages carry the
// correlation id and trace context of the context they were created with.
func NewRedisPublisher(
	wlogger watermill.LoggerAdapter,
	redisClient redis.UniversalClient,
) (message.Publisher, error) {
	publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: redisClient,
	}, wlogger)
	if err != nil {
		return nil, err
	}

	return Decorate(publisher), nil
}

func Decorate(publisher message.Publisher) message.Publisher {
	return CorrelationPublisherDecorator{
		Publisher: TracingPublisherDecorator{
			Publisher: publisher,
		},
	}
}
