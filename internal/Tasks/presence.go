package tasks

import (
	"context"
	"log"
	"time"

	"github.com/ErfanBagheri404/panello-lib-sub000/internal/chat"
	"github.com/ErfanBagheri404/panello-lib-sub000/internal/repository"

	"github.com/robfig/cron/v3"
)

// PresenceFlusher periodically mirrors live room occupancy into the
// directory's is_online column, so the member list the dashboard shows
// reflects who actually holds a push connection.
type PresenceFlusher struct {
	registry *chat.Registry
	users    repository.UserRepository
}

func NewPresenceFlusher(registry *chat.Registry, users repository.UserRepository) *PresenceFlusher {
	return &PresenceFlusher{
		registry: registry,
		users:    users,
	}
}

func (p *PresenceFlusher) Start() *cron.Cron {
	c := cron.New()

	_, err := c.AddFunc("* * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		online := p.registry.OnlineRooms()
		if err := p.users.SetOnlineUsers(ctx, online); err != nil {
			log.Printf("[WORKER] Presence flush failed: %v", err)
			return
		}
	})
	if err != nil {
		log.Printf("[WORKER] Error scheduling presence flush: %v", err)
		return c
	}

	c.Start()
	return c
}
