// Package subscription carries board update notifications over Redis
// pub/sub between the audit updater and board sessions.
package subscription

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/domain"
)

const reconnectDelay = time.Second

// Reloader refreshes the board sessions showing a project, skipping the
// session whose id is origin.
type Reloader interface {
	ReloadProject(ctx context.Context, projectID int, origin string) int
}

// Publish announces that a project's board changed.
func Publish(ctx context.Context, rc *redis.Client, channel string, update domain.BoardUpdate) error {
	data, err := sonic.Marshal(update)
	if err != nil {
		return err
	}
	return rc.Publish(ctx, channel, data).Err()
}

// SubscribeUpdates listens for board updates and reloads the affected
// sessions until ctx is done. A closed subscription is reopened.
func SubscribeUpdates(ctx context.Context, logger *log.Entry, rc *redis.Client, channel string, sessions Reloader) {
	for {
		sub := rc.Subscribe(ctx, channel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var update domain.BoardUpdate
				if err := sonic.UnmarshalString(msg.Payload, &update); err != nil || update.ProjectID == 0 {
					logger.WithField("payload", msg.Payload).Warn("unable to parse board update")
					continue
				}
				n := sessions.ReloadProject(ctx, update.ProjectID, update.Origin)
				logger.WithFields(log.Fields{"project": update.ProjectID, "origin": update.Origin, "reloaded": n}).Debug("board update applied")
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Error("pubsub channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}
