package producers

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/seckrv/synapse/internal/eventutil"
	"github.com/seckrv/synapse/setup/jetstream"
)

type JetStreamPublisher interface {
	PublishMsg(*nats.Msg, ...nats.PubOpt) (*nats.PubAck, error)
}

// AccountEvent produces messages about account changes for other components
// to consume.
type AccountEvent struct {
	producer JetStreamPublisher
	topic    string
}

func NewAccountEvent(js JetStreamPublisher, topic string) *AccountEvent {
	return &AccountEvent{
		producer: js,
		topic:    topic,
	}
}

// SendAccountUpdate publishes a notification that the given user's account
// changed. Publication is best effort; the caller decides whether a failure
// matters.
func (p *AccountEvent) SendAccountUpdate(userID string, update eventutil.AccountUpdate) error {
	m := &nats.Msg{
		Subject: p.topic,
		Header:  nats.Header{},
	}
	m.Header.Set(jetstream.UserID, userID)

	var err error
	m.Data, err = json.Marshal(update)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"type":    update.Type,
	}).Tracef("Producing to topic '%s'", p.topic)

	_, err = p.producer.PublishMsg(m)
	return err
}
