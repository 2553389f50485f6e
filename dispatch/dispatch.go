// Package dispatch turns engine verdicts into platform side effects.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/safedep/dry/log"
	"github.com/safedep/gatekeeper/core/audit"
	"github.com/safedep/gatekeeper/core/gatekeeper"
	"github.com/safedep/gatekeeper/core/member"
	"github.com/safedep/gatekeeper/metrics"
)

// ErrPlatformUnavailable is returned by a Platform that cannot reach the
// host platform at all. It is the only dispatch failure that propagates.
var ErrPlatformUnavailable = errors.New("platform unavailable")

// Platform performs moderation actions on the host platform.
type Platform interface {
	// Kick removes a member from a guild.
	Kick(ctx context.Context, guildID, memberID, reason string) error
	// Post sends a message to a channel.
	Post(ctx context.Context, channelID, text string) error
}

// AuditRecorder persists dispatch outcomes.
type AuditRecorder interface {
	SaveAudit(ctx context.Context, record *audit.Record) error
}

// Options configures a Dispatcher.
type Options struct {
	// AnnounceBlocks posts a notice to the moderation channel for every
	// successful kick.
	AnnounceBlocks bool
	// Metrics receives action counters. Optional.
	Metrics *metrics.Metrics
}

// Result describes what the dispatcher did.
type Result struct {
	Verdict gatekeeper.VerdictKind
	Action  audit.Action
	Kicked  bool
	Posts   int
	Record  *audit.Record
}

// Dispatcher acts on verdicts. Actions are attempted once and never retried.
type Dispatcher struct {
	platform Platform
	channels ChannelDirectory
	recorder AuditRecorder
	opts     Options
}

// New creates a Dispatcher. channels and recorder may be nil.
func New(platform Platform, channels ChannelDirectory, recorder AuditRecorder, opts Options) *Dispatcher {
	if channels == nil {
		channels = StaticChannels{}
	}

	return &Dispatcher{
		platform: platform,
		channels: channels,
		recorder: recorder,
		opts:     opts,
	}
}

// Dispatch performs the side effects for a verdict.
//
// Block kicks the member. A failed kick is reported to the moderation
// channel. ReportOnly posts the collected diagnostics. Allow does nothing.
// Every non-allow verdict leaves an audit record.
func (d *Dispatcher) Dispatch(ctx context.Context, verdict *gatekeeper.Verdict, event *member.JoinEvent) (*Result, error) {
	if verdict == nil || event == nil {
		return nil, errors.New("dispatch requires a verdict and an event")
	}

	result := &Result{Verdict: verdict.Kind, Action: audit.ActionNone}

	var err error
	switch verdict.Kind {
	case gatekeeper.VerdictAllow:
		return result, nil
	case gatekeeper.VerdictBlock:
		err = d.block(ctx, verdict, event, result)
	case gatekeeper.VerdictReportOnly:
		err = d.report(ctx, verdict, event, result)
	default:
		return nil, fmt.Errorf("unknown verdict kind %q", verdict.Kind)
	}

	d.save(ctx, result.Record)
	return result, err
}

func (d *Dispatcher) block(ctx context.Context, verdict *gatekeeper.Verdict, event *member.JoinEvent, result *Result) error {
	record := audit.NewRecord(verdict, event)
	result.Record = record

	reason := KickReason(verdict)
	err := d.platform.Kick(ctx, event.GuildID, event.MemberID, reason)
	if err != nil {
		record.Action = audit.ActionKick
		record.WithError(err)
		d.opts.Metrics.IncrementDispatch(string(audit.ActionKick), string(audit.ResultError))

		log.Warnf("failed to kick member %s from guild %s (blocked by %s): %v",
			event.MemberID, event.GuildID, verdict.CheckKey, err)

		if errors.Is(err, ErrPlatformUnavailable) {
			return fmt.Errorf("kick member %s: %w", event.MemberID, err)
		}

		_, err = d.postModeration(ctx, event.GuildID, KickFailedMessage(verdict, event, err), result)
		return unavailable(err)
	}

	record.WithAction(audit.ActionKick)
	result.Action = audit.ActionKick
	result.Kicked = true
	d.opts.Metrics.IncrementDispatch(string(audit.ActionKick), string(audit.ResultSuccess))
	log.Infof("kicked member %s from guild %s: %s", event.MemberID, event.GuildID, verdict.Summary())

	if d.opts.AnnounceBlocks {
		_, err := d.postModeration(ctx, event.GuildID, BounceMessage(verdict, event), result)
		return unavailable(err)
	}

	return nil
}

func (d *Dispatcher) report(ctx context.Context, verdict *gatekeeper.Verdict, event *member.JoinEvent, result *Result) error {
	record := audit.NewRecord(verdict, event)
	result.Record = record

	posted, err := d.postModeration(ctx, event.GuildID, ReportMessage(verdict, event), result)
	switch {
	case posted:
		record.WithAction(audit.ActionReport)
		result.Action = audit.ActionReport
	case err != nil:
		record.Action = audit.ActionReport
		record.WithError(err)
	}

	return unavailable(err)
}

// postModeration posts to the guild's moderation channel. A guild without
// one is logged and skipped.
func (d *Dispatcher) postModeration(ctx context.Context, guildID, text string, result *Result) (bool, error) {
	channelID, ok := d.channels.ModerationChannel(guildID)
	if !ok {
		log.Warnf("no moderation channel for guild %s, dropping message: %s", guildID, firstLine(text))
		return false, nil
	}

	if err := d.platform.Post(ctx, channelID, text); err != nil {
		d.opts.Metrics.IncrementDispatch(string(audit.ActionReport), string(audit.ResultError))
		log.Warnf("failed to post to moderation channel %s in guild %s: %v", channelID, guildID, err)
		return false, fmt.Errorf("post to channel %s: %w", channelID, err)
	}

	d.opts.Metrics.IncrementDispatch(string(audit.ActionReport), string(audit.ResultSuccess))
	result.Posts++
	return true, nil
}

// unavailable keeps only errors that mean the platform is unreachable.
func unavailable(err error) error {
	if errors.Is(err, ErrPlatformUnavailable) {
		return err
	}
	return nil
}

func (d *Dispatcher) save(ctx context.Context, record *audit.Record) {
	if d.recorder == nil || record == nil {
		return
	}

	// The audit trail outlives a cancelled dispatch.
	if err := d.recorder.SaveAudit(context.WithoutCancel(ctx), record); err != nil {
		log.Errorf("failed to save audit record for member %s in guild %s: %v",
			record.MemberID, record.GuildID, err)
	}
}

// KickReason is the reason attached to the platform kick.
func KickReason(verdict *gatekeeper.Verdict) string {
	return fmt.Sprintf("Gatekeeper check %s failed: %s", verdict.CheckKey, verdict.Reason)
}

// BounceMessage announces a successful kick.
func BounceMessage(verdict *gatekeeper.Verdict, event *member.JoinEvent) string {
	return fmt.Sprintf("Gatekeeper: bounced %s (`%s`) by `%s`: %s",
		event.Tag(), event.MemberID, verdict.CheckKey, verdict.Reason)
}

// KickFailedMessage reports a kick that could not be carried out.
func KickFailedMessage(verdict *gatekeeper.Verdict, event *member.JoinEvent, err error) string {
	return fmt.Sprintf("Gatekeeper: failed to kick %s (`%s`) after `%s` blocked them (%s): %v",
		event.Tag(), event.MemberID, verdict.CheckKey, verdict.Reason, err)
}

// ReportMessage lists each diagnostic raised while evaluating a join.
func ReportMessage(verdict *gatekeeper.Verdict, event *member.JoinEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Gatekeeper reports for %s (`%s`):", event.Tag(), event.MemberID)
	for _, r := range verdict.Reports {
		fmt.Fprintf(&b, "\n- `%s`: %s", r.CheckKey, r.Message)
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
