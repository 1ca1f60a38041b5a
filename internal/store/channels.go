package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"growth-dashboard/internal/models"
)

const channelAggregateColumns = `channel,
    COALESCE(SUM(sessions), 0) AS total_sessions,
    COALESCE(SUM(signups), 0) AS total_signups,
    COALESCE(AVG(conversion_rate), 0) AS avg_conversion,
    COALESCE(AVG(bounce_rate), 0) AS avg_bounce_rate,
    COALESCE(AVG(avg_session_duration_sec), 0) AS avg_session_duration`

// ChannelTotals groups channel_metrics by channel, restricted to the named
// channels (exact match). An empty list means every channel.
func (s *Store) ChannelTotals(ctx context.Context, channels []string) ([]models.ChannelAggregate, error) {
	query := `SELECT ` + channelAggregateColumns + ` FROM channel_metrics`
	var args []any

	if len(channels) > 0 {
		var err error
		query, args, err = sqlx.In(query+` WHERE channel IN (?)`, channels)
		if err != nil {
			return nil, fmt.Errorf("expanding channels: %w", err)
		}
		query = s.db.Rebind(query)
	}
	query += ` GROUP BY channel ORDER BY channel ASC`

	var totals []models.ChannelAggregate
	if err := s.db.SelectContext(ctx, &totals, query, args...); err != nil {
		return nil, fmt.Errorf("channel totals: %w", err)
	}
	return totals, nil
}

// LowPerformingChannels keeps channels whose average conversion rate is
// below maxAvgConversion.
func (s *Store) LowPerformingChannels(ctx context.Context, maxAvgConversion float64) ([]models.ChannelAggregate, error) {
	query := `SELECT ` + channelAggregateColumns + `
FROM channel_metrics
GROUP BY channel
HAVING AVG(conversion_rate) < ?
ORDER BY avg_conversion ASC, channel ASC`

	var channels []models.ChannelAggregate
	if err := s.db.SelectContext(ctx, &channels, query, maxAvgConversion); err != nil {
		return nil, fmt.Errorf("low performing channels: %w", err)
	}
	return channels, nil
}

// ChannelQuery filters channel_metrics rows by exact match.
type ChannelQuery struct {
	Channel string
	Month   string
}

// FindChannels returns matching rows, newest month first and best converting
// channel first within a month.
func (s *Store) FindChannels(ctx context.Context, q ChannelQuery) ([]models.ChannelMetric, error) {
	var c conditions
	c.eq("channel", q.Channel)
	c.eq("month", q.Month)
	where, args := c.where()

	var rows []models.ChannelMetric
	query := "SELECT * FROM channel_metrics" + where + " ORDER BY month DESC, conversion_rate DESC, channel ASC"
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("find channels: %w", err)
	}
	return rows, nil
}

func (s *Store) Channels(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "channel_metrics", "channel", conditions{})
}

// ChannelTrend returns the monthly series of one channel, oldest first.
func (s *Store) ChannelTrend(ctx context.Context, channel string) ([]models.ChannelTrendPoint, error) {
	var points []models.ChannelTrendPoint
	err := s.db.SelectContext(ctx, &points, `SELECT month, sessions, signups, conversion_rate
FROM channel_metrics
WHERE channel = ?
ORDER BY month ASC`, channel)
	if err != nil {
		return nil, fmt.Errorf("channel trend: %w", err)
	}
	return points, nil
}

const insertChannel = `INSERT INTO channel_metrics (
    month, channel, sessions, signups, conversion_rate,
    avg_session_duration_sec, bounce_rate, pages_per_session
) VALUES (
    :month, :channel, :sessions, :signups, :conversion_rate,
    :avg_session_duration_sec, :bounce_rate, :pages_per_session
)`

func (s *Store) ReplaceChannels(ctx context.Context, rows []models.ChannelMetric) (int, error) {
	return replaceAll(ctx, s, "channel_metrics", insertChannel, rows)
}
