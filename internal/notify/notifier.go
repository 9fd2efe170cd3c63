package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	slacklib "github.com/slack-go/slack"
)

// SlackAPI abstracts the subset of the Slack client used by the Notifier.
// This allows testing without real HTTP calls.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error)
}

// Notifier posts operational events to a Slack ops channel. All methods are
// best-effort: a Slack outage must never fail a provisioning or billing run,
// so send failures are logged and swallowed.
type Notifier struct {
	api     SlackAPI
	channel string
}

// New creates a Notifier posting to the given channel. If token or channel
// is empty, a disabled notifier is returned whose methods are no-ops.
func New(token, channel string) *Notifier {
	if token == "" || channel == "" {
		return &Notifier{}
	}

	return &Notifier{
		api:     slacklib.New(token),
		channel: channel,
	}
}

// NewWithAPI creates a Notifier with a preconfigured API client (for tests).
func NewWithAPI(api SlackAPI, channel string) *Notifier {
	return &Notifier{api: api, channel: channel}
}

// Enabled reports whether the notifier will actually post.
func (n *Notifier) Enabled() bool {
	return n.api != nil
}

// ProvisioningFailed reports a failed tenant provisioning run.
func (n *Notifier) ProvisioningFailed(ctx context.Context, slug, reason string) {
	n.post(ctx, fmt.Sprintf(":rotating_light: Provisioning failed for tenant `%s`: %s", slug, reason))
}

// TenantSuspended reports an automatic billing suspension.
func (n *Notifier) TenantSuspended(ctx context.Context, slug, reason string) {
	n.post(ctx, fmt.Sprintf(":no_entry: Tenant `%s` suspended (%s)", slug, reason))
}

// TenantReinstated reports an automatic reinstatement after payment.
func (n *Notifier) TenantReinstated(ctx context.Context, slug string) {
	n.post(ctx, fmt.Sprintf(":white_check_mark: Tenant `%s` reinstated after payment", slug))
}

// QuotaWarning reports a tenant exceeding its tier quota.
func (n *Notifier) QuotaWarning(ctx context.Context, slug, detail string) {
	n.post(ctx, fmt.Sprintf(":warning: Tenant `%s` over quota: %s", slug, detail))
}

func (n *Notifier) post(ctx context.Context, text string) {
	if n.api == nil {
		return
	}

	_, _, err := n.api.PostMessageContext(ctx, n.channel, slacklib.MsgOptionText(text, false))
	if err != nil {
		log.Warn().Err(err).Str("channel", n.channel).Msg("notify: slack post failed")
	}
}
