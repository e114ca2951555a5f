// Package transporttest provides configuration and pub/sub stubs for
// transport tests.
package transporttest

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Config is a settable transport.Config.
type Config struct {
	BusSystem          string
	SharedGroup        string
	KafkaBrokers       []string
	RabbitMQURL        string
	NATSURL            string
	AWSRegion          string
	AWSAccountID       string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSEndpoint        string
}

func (c *Config) GetBusSystem() string          { return c.BusSystem }
func (c *Config) GetSharedGroup() string        { return c.SharedGroup }
func (c *Config) GetKafkaBrokers() []string     { return c.KafkaBrokers }
func (c *Config) GetRabbitMQURL() string        { return c.RabbitMQURL }
func (c *Config) GetNATSURL() string            { return c.NATSURL }
func (c *Config) GetAWSRegion() string          { return c.AWSRegion }
func (c *Config) GetAWSAccountID() string       { return c.AWSAccountID }
func (c *Config) GetAWSAccessKeyID() string     { return c.AWSAccessKeyID }
func (c *Config) GetAWSSecretAccessKey() string { return c.AWSSecretAccessKey }
func (c *Config) GetAWSEndpoint() string        { return c.AWSEndpoint }

// Publisher records the topics it is asked to publish on.
type Publisher struct {
	Topics []string
}

func (p *Publisher) Publish(topic string, _ ...*message.Message) error {
	p.Topics = append(p.Topics, topic)
	return nil
}

func (p *Publisher) Close() error { return nil }

// Subscriber records the topics it is asked to subscribe to.
type Subscriber struct {
	Topics []string
}

func (s *Subscriber) Subscribe(_ context.Context, topic string) (<-chan *message.Message, error) {
	s.Topics = append(s.Topics, topic)
	return make(chan *message.Message), nil
}

func (s *Subscriber) Close() error { return nil }
