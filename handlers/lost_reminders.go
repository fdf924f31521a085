package handlers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"furbook.app/petpals/models"
	"furbook.app/petpals/services"
)

// ReminderEvery is the minimum gap between two reminders for one post.
const ReminderEvery = 24 * time.Hour

type ReminderSource interface {
	DueReminders(ctx context.Context, now time.Time, after, every time.Duration) ([]models.Post, error)
	MarkReminded(ctx context.Context, id string, at time.Time) error
}

type ReminderStats struct {
	Processed int
	Sent      int
	Failed    int
}

// SendLostPetReminders nudges the owners of lost posts still unresolved
// after the given age. A post is marked reminded only once its
// notification was accepted, so a failed run is retried by the next one.
func SendLostPetReminders(ctx context.Context, posts ReminderSource, noti Notifier, now time.Time, after time.Duration) (ReminderStats, error) {
	var stats ReminderStats
	log.Info().Time("now", now).Dur("after", after).Msg("lost reminder job started")

	due, err := posts.DueReminders(ctx, now, after, ReminderEvery)
	if err != nil {
		return stats, err
	}

	for _, p := range due {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Processed++

		_, err := noti.CreateNoti(ctx, services.NotiRequest{
			Username: p.Username,
			Icon:     "post",
			Desc:     "post:reminder:" + p.Username,
			Link:     p.ID,
		})
		if err != nil {
			stats.Failed++
			log.Warn().Err(err).Str("post", p.ID).Str("user", p.Username).Msg("reminder notification failed")
			continue
		}
		if err := posts.MarkReminded(ctx, p.ID, now); err != nil {
			stats.Failed++
			log.Error().Err(err).Str("post", p.ID).Msg("mark reminded failed")
			continue
		}
		stats.Sent++
	}

	log.Info().
		Int("processed", stats.Processed).
		Int("sent", stats.Sent).
		Int("failed", stats.Failed).
		Msg("lost reminder job finished")
	return stats, nil
}
