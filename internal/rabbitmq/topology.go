package rabbitmq

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange kinds used by the marketplace topology.
const (
	ExchangeDirect = "direct"
	ExchangeFanout = "fanout"
)

// declareExchange declares a durable exchange. Declaration is idempotent:
// re-declaring with the same kind is a no-op on the broker.
func declareExchange(ch *amqp.Channel, name, kind string) error {
	return ch.ExchangeDeclare(
		name,
		kind,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
}

// declareQueue declares a durable, non-auto-delete queue so messages
// survive broker restarts and await redelivery when the last consumer
// disconnects.
func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
}

// bindQueue binds queue to exchange under key. Fanout exchanges ignore the
// key; callers pass "" for them.
func bindQueue(ch *amqp.Channel, queue, key, exchange string) error {
	return ch.QueueBind(queue, key, exchange, false, nil)
}
