package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestEncodeEvent(t *testing.T) {
	at := time.Date(2024, time.March, 3, 12, 0, 0, 0, time.UTC)
	body, err := encodeEvent(ReviewEvent{
		Type:          TypeReviewCreated,
		ReviewID:      "r1",
		MovieID:       "m1",
		UserID:        "u1",
		Rating:        8,
		RatingCount:   1,
		AverageRating: 8,
		OccurredAt:    at,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["type"] != TypeReviewCreated || decoded["movie_id"] != "m1" {
		t.Fatalf("unexpected payload: %s", body)
	}
	if decoded["average_rating"].(float64) != 8 || decoded["rating_count"].(float64) != 1 {
		t.Fatalf("unexpected stats: %s", body)
	}
	if decoded["occurred_at"] != "2024-03-03T12:00:00Z" {
		t.Fatalf("occurred_at = %v", decoded["occurred_at"])
	}
}

func TestEncodeEventStampsTime(t *testing.T) {
	body, err := encodeEvent(ReviewEvent{Type: TypeReviewDeleted, ReviewID: "r1"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Contains(string(body), `"occurred_at":"0001-01-01T00:00:00Z"`) {
		t.Fatalf("expected occurred_at to be stamped, got %s", body)
	}
	if strings.Contains(string(body), `"rating":`) {
		t.Fatalf("zero rating should be omitted: %s", body)
	}
}

func TestNewPublishing(t *testing.T) {
	pub := newPublishing(ReviewEvent{Type: TypeReviewUpdated, ReviewID: "r9"}, []byte(`{}`))
	if pub.DeliveryMode != amqp.Persistent {
		t.Fatalf("delivery mode = %d, want persistent", pub.DeliveryMode)
	}
	if pub.ContentType != "application/json" || pub.Type != TypeReviewUpdated || pub.MessageId != "r9" {
		t.Fatalf("unexpected publishing: %+v", pub)
	}
}

func TestAMQPPublisher_DialFailure(t *testing.T) {
	p := NewAMQPPublisher("amqp://unused", "", log.New(io.Discard, "", 0))
	if p.Queue() != DefaultQueue {
		t.Fatalf("queue = %q, want %q", p.Queue(), DefaultQueue)
	}

	dialErr := errors.New("connection refused")
	p.dial = func(string) (*amqp.Connection, error) { return nil, dialErr }

	err := p.PublishReview(context.Background(), ReviewEvent{Type: TypeReviewCreated})
	if !errors.Is(err, dialErr) {
		t.Fatalf("expected dial error, got %v", err)
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	if err := p.PublishReview(context.Background(), ReviewEvent{}); err != nil {
		t.Fatalf("nop publish: %v", err)
	}
}
