package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"water-billing/internal/eventing"
)

type paymentCreated struct {
	ApartmentID string
	Amount      string
	OccurredAt  time.Time
}

func TestRelay_SendsEnvelopeKeyedByApartment(t *testing.T) {
	producer := mocks.NewSyncProducer(t, producerConfig())
	var sent []byte
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "apt-7" {
			return errors.New("unexpected key " + string(key))
		}
		sent, err = msg.Value.Encode()
		return err
	})

	relay, err := NewRelay(producer, "billing.events", nil)
	if err != nil {
		t.Fatalf("new relay: %v", err)
	}
	event := paymentCreated{ApartmentID: "apt-7", Amount: "2625", OccurredAt: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)}
	env, err := eventing.BuildEnvelope(event, eventing.Meta{})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if err := relay.Handle(eventing.WithEnvelope(context.Background(), env), event); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := producer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var got eventing.Envelope
	if err := json.Unmarshal(sent, &got); err != nil {
		t.Fatalf("decode sent value: %v", err)
	}
	if got.EventID != env.EventID || got.ApartmentID != "apt-7" {
		t.Fatalf("unexpected envelope: %+v", got)
	}
}

func TestRelay_PropagatesSendError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, producerConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	relay, err := NewRelay(producer, "billing.events", nil)
	if err != nil {
		t.Fatalf("new relay: %v", err)
	}
	err = relay.Handle(context.Background(), paymentCreated{ApartmentID: "apt-1"})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected ErrOutOfBrokers, got %v", err)
	}
	_ = producer.Close()
}

func TestParseRequiredAcks(t *testing.T) {
	if acks, err := parseRequiredAcks(""); err != nil || acks != sarama.WaitForAll {
		t.Fatalf("expected default WaitForAll, got %v %v", acks, err)
	}
	if acks, err := parseRequiredAcks("leader"); err != nil || acks != sarama.WaitForLocal {
		t.Fatalf("expected WaitForLocal, got %v %v", acks, err)
	}
	if _, err := parseRequiredAcks("bogus"); err == nil {
		t.Fatalf("expected error for invalid acks")
	}
}

func producerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	return cfg
}
