package taskstore

import (
	"context"

	"github.com/ldi/dayplan/internal/session"
	"github.com/ldi/dayplan/pkg/models"
)

// SessionClient runs Client operations as whoever is signed in to a
// Session at the time of each call.
type SessionClient struct {
	client  *Client
	session *session.Session
}

func ForSession(client *Client, s *session.Session) *SessionClient {
	return &SessionClient{client: client, session: s}
}

func (c *SessionClient) userID() (string, error) {
	id, ok := c.session.Current()
	if !ok {
		return "", ErrNotAuthenticated
	}
	return id.UserID, nil
}

// List follows the signed-in user's tasks. The subscription closes when
// that user signs out or another user signs in.
func (c *SessionClient) List(ctx context.Context) (*SnapshotSubscription, error) {
	userID, err := c.userID()
	if err != nil {
		return nil, err
	}

	sub, err := c.client.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	identities := c.session.CurrentIdentity()
	sub.OnClose(identities.Close)
	go func() {
		for ev := range identities.C() {
			if ev.Identity.UserID != userID {
				sub.Close()
				return
			}
		}
	}()

	return sub, nil
}

func (c *SessionClient) Add(ctx context.Context, task models.Task) (models.Task, error) {
	userID, err := c.userID()
	if err != nil {
		return models.Task{}, err
	}
	return c.client.Add(ctx, userID, task)
}

func (c *SessionClient) Update(ctx context.Context, task models.Task) error {
	userID, err := c.userID()
	if err != nil {
		return err
	}
	return c.client.Update(ctx, userID, task)
}

func (c *SessionClient) SetCompleted(ctx context.Context, task models.Task, done bool) error {
	userID, err := c.userID()
	if err != nil {
		return err
	}
	return c.client.SetCompleted(ctx, userID, task, done)
}

func (c *SessionClient) Delete(ctx context.Context, taskID string) error {
	userID, err := c.userID()
	if err != nil {
		return err
	}
	return c.client.Delete(ctx, userID, taskID)
}
