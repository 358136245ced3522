// Package mail delivers password recovery links.
package mail

import (
	"context"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/rlrepresentacoes/sigem/internal/core/ports"
)

// LogMailer writes recovery links to the structured log instead of
// sending mail. The token itself is never logged outside development.
type LogMailer struct {
	log         zerolog.Logger
	revealLinks bool
}

var _ ports.Mailer = (*LogMailer)(nil)

func NewLogMailer(log zerolog.Logger, revealLinks bool) *LogMailer {
	return &LogMailer{
		log:         log.With().Str("component", "mailer").Logger(),
		revealLinks: revealLinks,
	}
}

func (m *LogMailer) SendRecovery(_ context.Context, email, link string) error {
	ev := m.log.Info().Str("to", email)
	if m.revealLinks {
		ev = ev.Str("link", link)
	} else {
		ev = ev.Str("link", redact(link))
	}
	ev.Msg("password recovery link issued")
	return nil
}

func redact(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return "[unparseable link]"
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String() + "#[redacted]"
}
