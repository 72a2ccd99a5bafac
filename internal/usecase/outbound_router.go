package usecase

import (
	"context"
	"fmt"
	"strings"

	"moltis/internal/domain"
)

// OutboundChannel is a channel that can be addressed by account_id and sends
// through the fine-grained ChannelOutbound surface.
type OutboundChannel interface {
	domain.AccountAware
	domain.ChannelOutbound
}

// StreamOutboundChannel is the streaming counterpart of OutboundChannel.
type StreamOutboundChannel interface {
	domain.AccountAware
	domain.ChannelStreamOutbound
}

// MultiChannelOutbound routes an outbound send to the channel plugin that
// owns the given account_id, trying Telegram, then Teams, then Discord,
// then WhatsApp in that fixed order. The order is part of the contract: two
// channels should never claim the same account_id, but if configuration
// ever lets that happen, Telegram wins.
type MultiChannelOutbound struct {
	plain  [4]OutboundChannel
	stream [4]StreamOutboundChannel
}

// NewMultiChannelOutbound builds a router over the four channel kinds.
// whatsapp and whatsappStream may be nil when the whatsapp build feature is
// off; a nil entry is simply skipped during resolution.
func NewMultiChannelOutbound(
	telegram, teams, discord, whatsapp OutboundChannel,
	telegramStream, teamsStream, discordStream, whatsappStream StreamOutboundChannel,
) *MultiChannelOutbound {
	return &MultiChannelOutbound{
		plain:  [4]OutboundChannel{telegram, teams, discord, whatsapp},
		stream: [4]StreamOutboundChannel{telegramStream, teamsStream, discordStream, whatsappStream},
	}
}

func (m *MultiChannelOutbound) resolve(accountID string) (OutboundChannel, error) {
	for _, ch := range m.plain {
		if ch != nil && ch.HasAccount(accountID) {
			return ch, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAccount, accountID)
}

func (m *MultiChannelOutbound) resolveStream(accountID string) (StreamOutboundChannel, error) {
	for _, ch := range m.stream {
		if ch != nil && ch.HasAccount(accountID) {
			return ch, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAccount, accountID)
}

// SendText implements domain.ChannelOutbound.
func (m *MultiChannelOutbound) SendText(ctx context.Context, accountID, to, text, replyTo string) error {
	ch, err := m.resolve(accountID)
	if err != nil {
		return err
	}
	return ch.SendText(ctx, accountID, to, text, replyTo)
}

// SendMedia implements domain.ChannelOutbound.
func (m *MultiChannelOutbound) SendMedia(ctx context.Context, accountID, to string, media domain.Media, replyTo string) error {
	ch, err := m.resolve(accountID)
	if err != nil {
		return err
	}
	return ch.SendMedia(ctx, accountID, to, media, replyTo)
}

// SendTyping implements domain.ChannelOutbound.
func (m *MultiChannelOutbound) SendTyping(ctx context.Context, accountID, to string) error {
	ch, err := m.resolve(accountID)
	if err != nil {
		return err
	}
	return ch.SendTyping(ctx, accountID, to)
}

// SendTextWithSuffix implements domain.ChannelOutbound.
func (m *MultiChannelOutbound) SendTextWithSuffix(ctx context.Context, accountID, to, text, suffixHTML, replyTo string) error {
	ch, err := m.resolve(accountID)
	if err != nil {
		return err
	}
	return ch.SendTextWithSuffix(ctx, accountID, to, text, suffixHTML, replyTo)
}

// SendHTML implements domain.ChannelOutbound.
func (m *MultiChannelOutbound) SendHTML(ctx context.Context, accountID, to, html, replyTo string) error {
	ch, err := m.resolve(accountID)
	if err != nil {
		return err
	}
	return ch.SendHTML(ctx, accountID, to, html, replyTo)
}

// SendTextSilent implements domain.ChannelOutbound.
func (m *MultiChannelOutbound) SendTextSilent(ctx context.Context, accountID, to, text, replyTo string) error {
	ch, err := m.resolve(accountID)
	if err != nil {
		return err
	}
	return ch.SendTextSilent(ctx, accountID, to, text, replyTo)
}

// SendLocation implements domain.ChannelOutbound.
func (m *MultiChannelOutbound) SendLocation(ctx context.Context, accountID, to string, latitude, longitude float64, title, replyTo string) error {
	ch, err := m.resolve(accountID)
	if err != nil {
		return err
	}
	return ch.SendLocation(ctx, accountID, to, latitude, longitude, title, replyTo)
}

// SendStream implements domain.ChannelStreamOutbound.
func (m *MultiChannelOutbound) SendStream(ctx context.Context, accountID, to, replyTo string, chunks <-chan string) error {
	ch, err := m.resolveStream(accountID)
	if err != nil {
		return err
	}
	return ch.SendStream(ctx, accountID, to, replyTo, chunks)
}

// IsStreamEnabled implements domain.ChannelStreamOutbound. A resolve failure
// is treated as "not enabled" rather than propagated, matching the plain
// send path's error for an unknown account.
func (m *MultiChannelOutbound) IsStreamEnabled(ctx context.Context, accountID string) bool {
	ch, err := m.resolveStream(accountID)
	if err != nil {
		return false
	}
	return ch.IsStreamEnabled(ctx, accountID)
}

// SingleAccountOutbound adapts a plain domain.Channel (Send + Name, one
// account per instance) to OutboundChannel/StreamOutboundChannel, so
// channels that don't yet track multiple accounts can still participate in
// a MultiChannelOutbound: the channel's Name() is its one account_id.
type SingleAccountOutbound struct {
	channel   domain.Channel
	accountID string
}

// NewSingleAccountOutbound wraps channel, serving exactly accountID.
func NewSingleAccountOutbound(channel domain.Channel, accountID string) *SingleAccountOutbound {
	return &SingleAccountOutbound{channel: channel, accountID: accountID}
}

// HasAccount implements domain.AccountAware.
func (s *SingleAccountOutbound) HasAccount(accountID string) bool {
	return accountID == s.accountID
}

// SendText implements domain.ChannelOutbound.
func (s *SingleAccountOutbound) SendText(ctx context.Context, _, _, text, replyTo string) error {
	return s.channel.Send(ctx, domain.OutboundMessage{Content: text, ReplyToID: replyTo})
}

// SendMedia implements domain.ChannelOutbound.
func (s *SingleAccountOutbound) SendMedia(ctx context.Context, _, _ string, media domain.Media, replyTo string) error {
	return s.channel.Send(ctx, domain.OutboundMessage{Media: []domain.Media{media}, ReplyToID: replyTo})
}

// SendTyping implements domain.ChannelOutbound. Typing indicators are best
// effort; a channel with no concept of one simply no-ops.
func (s *SingleAccountOutbound) SendTyping(context.Context, string, string) error {
	return nil
}

// SendTextWithSuffix implements domain.ChannelOutbound.
func (s *SingleAccountOutbound) SendTextWithSuffix(ctx context.Context, _, _, text, suffixHTML, replyTo string) error {
	var b strings.Builder
	b.WriteString(text)
	if suffixHTML != "" {
		b.WriteString("\n")
		b.WriteString(suffixHTML)
	}
	return s.channel.Send(ctx, domain.OutboundMessage{Content: b.String(), ReplyToID: replyTo})
}

// SendHTML implements domain.ChannelOutbound.
func (s *SingleAccountOutbound) SendHTML(ctx context.Context, _, _, html, replyTo string) error {
	return s.channel.Send(ctx, domain.OutboundMessage{Content: html, ReplyToID: replyTo})
}

// SendTextSilent implements domain.ChannelOutbound.
func (s *SingleAccountOutbound) SendTextSilent(ctx context.Context, _, _, text, replyTo string) error {
	return s.channel.Send(ctx, domain.OutboundMessage{
		Content:   text,
		ReplyToID: replyTo,
		Metadata:  map[string]string{"silent": "true"},
	})
}

// SendLocation implements domain.ChannelOutbound.
func (s *SingleAccountOutbound) SendLocation(ctx context.Context, _, _ string, latitude, longitude float64, title, replyTo string) error {
	return s.channel.Send(ctx, domain.OutboundMessage{
		Content:   title,
		ReplyToID: replyTo,
		Media: []domain.Media{{
			Type:    domain.MediaTypeLocation,
			Caption: fmt.Sprintf("%f,%f", latitude, longitude),
		}},
	})
}

// SendStream implements domain.ChannelStreamOutbound by draining chunks and
// sending the assembled text as a single message; a channel with no native
// chunk-by-chunk send still gets a correct, if unstreamed, reply.
func (s *SingleAccountOutbound) SendStream(ctx context.Context, accountID, to, replyTo string, chunks <-chan string) error {
	var b strings.Builder
	for chunk := range chunks {
		b.WriteString(chunk)
	}
	return s.SendText(ctx, accountID, to, b.String(), replyTo)
}

// IsStreamEnabled implements domain.ChannelStreamOutbound. SingleAccountOutbound
// never streams natively.
func (s *SingleAccountOutbound) IsStreamEnabled(context.Context, string) bool {
	return false
}
