package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tvheim/epgdb/internal/domain"
)

// DiscordService sends run summaries to a Discord webhook.
type DiscordService struct {
	log        zerolog.Logger
	webhookURL string
	httpClient *http.Client
}

// NewDiscordService creates a new Discord notification service
func NewDiscordService(log zerolog.Logger, webhookURL string) *DiscordService {
	return &DiscordService{
		log:        log.With().Str("module", "notification").Str("type", "discord").Logger(),
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SendSuccess sends a success notification with per-stage counts
func (s *DiscordService) SendSuccess(ctx context.Context, summary *domain.RunSummary) error {
	if s.webhookURL == "" {
		return nil // No webhook configured, skip silently
	}

	embed := discordEmbed{
		Title:       "EPG Update Completed",
		Description: "Guide data reconciled with the provider",
		Color:       0x00ff00, // Green
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields: []discordField{
			{
				Name:   "Lineups",
				Value:  formatCounts(summary.Lineups),
				Inline: true,
			},
			{
				Name:   "Schedule Days",
				Value:  formatCounts(summary.ScheduleDays),
				Inline: true,
			},
			{
				Name:   "Programs",
				Value:  formatCounts(summary.Programs),
				Inline: true,
			},
		},
	}

	if len(summary.DanglingStations) > 0 {
		names := make([]string, 0, len(summary.DanglingStations))
		for _, st := range summary.DanglingStations {
			names = append(names, st.Name)
		}
		embed.Fields = append(embed.Fields, discordField{
			Name:  "Stations No Longer Available",
			Value: strings.Join(names, ", "),
		})
	}

	if len(summary.Failures) > 0 {
		embed.Color = 0xffa500 // Orange
		embed.Fields = append(embed.Fields, discordField{
			Name:  "Failed Units",
			Value: formatFailures(summary.Failures),
		})
	}

	payload := discordWebhook{
		Embeds: []discordEmbed{embed},
	}

	return s.sendWebhook(ctx, payload)
}

// SendError sends an error notification with error details
func (s *DiscordService) SendError(ctx context.Context, err error) error {
	if s.webhookURL == "" {
		return nil // No webhook configured, skip silently
	}

	embed := discordEmbed{
		Title:       "EPG Update Failed",
		Description: fmt.Sprintf("Reconciliation aborted with error:\n```%s```", err.Error()),
		Color:       0xff0000, // Red
		Timestamp:   time.Now().Format(time.RFC3339),
	}

	payload := discordWebhook{
		Embeds: []discordEmbed{embed},
	}

	return s.sendWebhook(ctx, payload)
}

func formatCounts(c domain.StageCounts) string {
	return fmt.Sprintf("%d updated, %d unchanged, %d failed", c.Updated, c.Skipped, c.Failed)
}

// formatFailures keeps the field comfortably under Discord's 1024
// character value limit.
func formatFailures(failures []domain.UnitFailure) string {
	const maxListed = 10

	var b strings.Builder
	for i, f := range failures {
		if i == maxListed {
			fmt.Fprintf(&b, "… and %d more", len(failures)-maxListed)
			break
		}
		fmt.Fprintf(&b, "%s %s: %s\n", f.Stage, f.Unit, f.Err)
	}
	return b.String()
}

// sendWebhook sends a webhook payload to Discord
func (s *DiscordService) sendWebhook(ctx context.Context, payload discordWebhook) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return errors.Wrap(err, "failed to create webhook request")
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send webhook request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	s.log.Debug().Msg("Discord notification sent successfully")
	return nil
}

// discordWebhook represents a Discord webhook payload
type discordWebhook struct {
	Embeds []discordEmbed `json:"embeds"`
}

// discordEmbed represents a Discord embed
type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Fields      []discordField `json:"fields,omitempty"`
}

// discordField represents a Discord embed field
type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}
