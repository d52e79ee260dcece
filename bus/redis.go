package bus

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const channelPrefix = "coinquoter:channel:"

type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func DialRedis(ctx context.Context, url string) (*RedisBus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to reach redis")
	}
	return NewRedisBus(client), nil
}

func channelKey(channel string) string {
	return channelPrefix + channel
}

func (b *RedisBus) Publish(ctx context.Context, message Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}
	if err := b.client.Publish(ctx, channelKey(message.Channel), data).Err(); err != nil {
		return errors.Wrap(err, "failed to publish message")
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, channel string, events ...string) (<-chan Message, error) {
	pubsub := b.client.Subscribe(ctx, channelKey(channel))

	//wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, errors.Wrap(err, "failed to subscribe")
	}

	ch := pubsub.Channel()
	resultCh := make(chan Message)

	go func() {
		defer close(resultCh)
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var message Message
				if err := json.Unmarshal([]byte(msg.Payload), &message); err != nil {
					log.Warn().Err(err).Str("channel", channel).Msg("dropping malformed bus message")
					continue
				}
				if !message.Matches(events) {
					continue
				}
				select {
				case resultCh <- message:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return resultCh, nil
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
