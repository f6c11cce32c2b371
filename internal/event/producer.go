package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/utafrali/petcare-user/internal/domain"
	pkgkafka "github.com/utafrali/petcare-user/pkg/kafka"
	"github.com/utafrali/petcare-user/pkg/logger"
)

// Kafka topics for user account events.
var (
	TopicUserRegistered             = pkgkafka.Topic("user", "registered")
	TopicUserActivated              = pkgkafka.Topic("user", "activated")
	TopicUserPasswordResetRequested = pkgkafka.Topic("user", "password_reset_requested")
	TopicUserPasswordChanged        = pkgkafka.Topic("user", "password_changed")
	TopicUserProfileUpdated         = pkgkafka.Topic("user", "profile_updated")
)

const (
	AggregateTypeUser = "user"
	SourceUserService = "user-service"
)

// UserData is the payload shared by user account events. Secrets such as
// activation codes and reset tokens are never published.
type UserData struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	Roles      []string  `json:"roles,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher writes an event to a topic. *pkgkafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// NopPublisher drops events. It is used when no brokers are configured.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, string, *pkgkafka.Event) error { return nil }

// Producer publishes user domain events.
type Producer struct {
	pub    Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the user service.
func NewProducer(pub Publisher, logger *slog.Logger) *Producer {
	return &Producer{pub: pub, logger: logger}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, u *domain.User) error {
	return p.publish(ctx, TopicUserRegistered, u)
}

// PublishUserActivated publishes a user.activated event.
func (p *Producer) PublishUserActivated(ctx context.Context, u *domain.User) error {
	return p.publish(ctx, TopicUserActivated, u)
}

// PublishPasswordResetRequested publishes a user.password_reset_requested event.
func (p *Producer) PublishPasswordResetRequested(ctx context.Context, u *domain.User) error {
	return p.publish(ctx, TopicUserPasswordResetRequested, u)
}

// PublishPasswordChanged publishes a user.password_changed event.
func (p *Producer) PublishPasswordChanged(ctx context.Context, u *domain.User) error {
	return p.publish(ctx, TopicUserPasswordChanged, u)
}

// PublishProfileUpdated publishes a user.profile_updated event.
func (p *Producer) PublishProfileUpdated(ctx context.Context, u *domain.User) error {
	return p.publish(ctx, TopicUserProfileUpdated, u)
}

func (p *Producer) publish(ctx context.Context, topic string, u *domain.User) error {
	roles := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = string(r)
	}
	data := UserData{
		ID:         u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Roles:      roles,
		OccurredAt: time.Now().UTC(),
	}

	id := strconv.FormatInt(u.ID, 10)
	ev, err := pkgkafka.NewEvent(topic, id, AggregateTypeUser, SourceUserService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	ev.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.pub.Publish(ctx, topic, ev); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published user event",
		slog.String("topic", topic),
		slog.String("user_id", id),
	)
	return nil
}
