package admin

import (
	"context"

	"github.com/labtasker/labtasker/internal/apperr"
	"github.com/labtasker/labtasker/internal/domain"
	"github.com/labtasker/labtasker/internal/security"
)

// CreateQueue creates a new queue.
func (a *Admin) CreateQueue(ctx context.Context, name, password string, metadata map[string]domain.Value) (*domain.Queue, error) {
	if name == "" {
		return nil, apperr.New(apperr.InvalidArgument, "queue_name is required")
	}
	if password == "" {
		return nil, apperr.New(apperr.InvalidArgument, "password is required")
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidArgument, err, "hash password")
	}
	now := a.clock.Now()
	q := &domain.Queue{
		ID:           newID(),
		Name:         name,
		PasswordHash: hash,
		Metadata:     metadata,
		CreatedAt:    now,
		LastModified: now,
	}
	if err := a.store.CreateQueue(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// GetQueueByName looks up a queue by its unique name.
func (a *Admin) GetQueueByName(ctx context.Context, name string) (*domain.Queue, error) {
	return a.store.GetQueueByName(ctx, name)
}

// GetQueueByID looks up a queue by its opaque id.
func (a *Admin) GetQueueByID(ctx context.Context, id string) (*domain.Queue, error) {
	return a.store.GetQueueByID(ctx, id)
}

// Authenticate verifies a queue's shared secret.
func (a *Admin) Authenticate(ctx context.Context, queueName, password string) (*domain.Queue, error) {
	q, err := a.store.GetQueueByName(ctx, queueName)
	if err != nil {
		return nil, err
	}
	if !security.VerifyPassword(q.PasswordHash, password) {
		return nil, apperr.New(apperr.Unauthorized, "invalid password for queue %q", queueName)
	}
	return q, nil
}

// QueueUpdate names the optional mutations update-queue may apply.
type QueueUpdate struct {
	NewName         *string
	NewPassword     *string
	MetadataUpdate  map[string]domain.Value
}

// UpdateQueue applies a partial update to a queue.
func (a *Admin) UpdateQueue(ctx context.Context, queueName string, update QueueUpdate) (*domain.Queue, error) {
	q, err := a.store.GetQueueByName(ctx, queueName)
	if err != nil {
		return nil, err
	}

	var hash string
	if update.NewPassword != nil {
		hash, err = security.HashPassword(*update.NewPassword)
		if err != nil {
			return nil, apperr.Wrap(apperr.InvalidArgument, err, "hash password")
		}
	}

	now := a.clock.Now()
	return a.store.UpdateQueueCAS(ctx, q.ID, q.ETag, func(cur *domain.Queue) {
		if update.NewName != nil {
			cur.Name = *update.NewName
		}
		if update.NewPassword != nil {
			cur.PasswordHash = hash
		}
		if update.MetadataUpdate != nil {
			if cur.Metadata == nil {
				cur.Metadata = map[string]domain.Value{}
			}
			for k, v := range update.MetadataUpdate {
				cur.Metadata[k] = v
			}
		}
		cur.LastModified = now
	})
}

// DeleteQueue deletes a queue, cascading to its tasks and workers by
// default.
func (a *Admin) DeleteQueue(ctx context.Context, queueName string, cascade bool) error {
	q, err := a.store.GetQueueByName(ctx, queueName)
	if err != nil {
		return err
	}
	return a.store.DeleteQueue(ctx, q.ID, cascade)
}
