package identity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// Event kinds delivered by the identity provider.
const (
	EventCreated = "identity.created"
	EventUpdated = "identity.updated"
	EventDeleted = "identity.deleted"
)

// ErrUnprocessableEvent marks payloads no amount of redelivery can fix:
// an unknown event kind or a payload with no subject.
var ErrUnprocessableEvent = errors.New("unprocessable identity event")

// Event is the provider's upsert/delete payload.
type Event struct {
	Subject   string    `json:"subject"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Syncer applies identity provider events to the directory. A returned
// error means "not processed": the caller must signal the provider so its
// redelivery policy engages.
type Syncer struct {
	users    repositories.UserRepository
	presence repositories.PresenceRepository
}

// NewSyncer constructs a Syncer.
func NewSyncer(users repositories.UserRepository, presence repositories.PresenceRepository) *Syncer {
	return &Syncer{users: users, presence: presence}
}

// Apply dispatches one provider event.
func (s *Syncer) Apply(ctx context.Context, kind string, event Event) error {
	if event.Subject == "" {
		return fmt.Errorf("%w: no subject", ErrUnprocessableEvent)
	}
	switch kind {
	case EventCreated, EventUpdated:
		return s.upsert(ctx, event)
	case EventDeleted:
		return s.delete(ctx, event)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrUnprocessableEvent, kind)
	}
}

// upsert diffs the provider payload against the stored row and writes only
// when something changed, keeping subscription fan-out minimal. First-ever
// sync also bootstraps an offline presence row stamped with the provider's
// creation time.
func (s *Syncer) upsert(ctx context.Context, event Event) error {
	user, err := s.users.GetBySubject(ctx, event.Subject)
	if errors.Is(err, repositories.ErrUserNotFound) {
		user, err = s.users.Create(ctx, models.User{
			Subject:   event.Subject,
			Name:      event.Name,
			Email:     event.Email,
			AvatarURL: event.AvatarURL,
			CreatedAt: event.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		lastSeen := event.CreatedAt
		if lastSeen.IsZero() {
			lastSeen = time.Now()
		}
		if err := s.presence.Bootstrap(ctx, user.ID, lastSeen); err != nil {
			return fmt.Errorf("bootstrap presence: %w", err)
		}
		log.Printf("identity sync: created user id=%d subject=%s", user.ID, event.Subject)
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup subject: %w", err)
	}

	if user.Name == event.Name && user.Email == event.Email && user.AvatarURL == event.AvatarURL {
		return nil
	}
	if err := s.users.UpdateProviderFields(ctx, user.ID, event.Name, event.Email, event.AvatarURL); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// delete never removes the directory row; the user only goes dark through
// presence.
func (s *Syncer) delete(ctx context.Context, event Event) error {
	user, err := s.users.GetBySubject(ctx, event.Subject)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup subject: %w", err)
	}
	if err := s.presence.ForceOffline(ctx, user.ID, time.Now()); err != nil {
		return fmt.Errorf("force offline: %w", err)
	}
	log.Printf("identity sync: subject deleted, forced offline user id=%d", user.ID)
	return nil
}
