package subscribers

import (
	"context"
	"time"

	"github.com/svdberg/atwood-monitor/app/database"
)

type Stats struct {
	Users   int `json:"users"`
	WebPush int `json:"web_push"`
}

func CollectStats(ctx context.Context, emails database.EmailRepository, pushes database.PushRepository) (Stats, error) {
	users, err := emails.CountEmails(ctx)
	if err != nil {
		return Stats{}, err
	}

	webPush, err := pushes.CountSubscriptions(ctx, time.Now())
	if err != nil {
		return Stats{}, err
	}

	return Stats{Users: users, WebPush: webPush}, nil
}
