package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BusinessEvents traces domain operations that span several queries
type BusinessEvents struct {
	tracer trace.Tracer
}

var businessEvents = &BusinessEvents{tracer: otel.Tracer("business-events")}

// GetBusinessEvents returns the shared tracer helper
func GetBusinessEvents() *BusinessEvents {
	return businessEvents
}

// FeedEventAttrs describes a feed build
type FeedEventAttrs struct {
	Mode   string
	Limit  int
	Offset int
}

// TraceGetFeed creates a span for feed assembly
func (be *BusinessEvents) TraceGetFeed(ctx context.Context, attrs FeedEventAttrs) (context.Context, trace.Span) {
	return be.tracer.Start(ctx, "feed.get",
		trace.WithAttributes(
			attribute.String("feed.mode", attrs.Mode),
			attribute.Int("feed.limit", attrs.Limit),
			attribute.Int("feed.offset", attrs.Offset),
		),
	)
}

// TraceSearch creates a span for a search request
func (be *BusinessEvents) TraceSearch(ctx context.Context, kind, backend string) (context.Context, trace.Span) {
	return be.tracer.Start(ctx, "search.query",
		trace.WithAttributes(
			attribute.String("search.type", kind),
			attribute.String("search.backend", backend),
		),
	)
}

// TraceChatSend creates a span for accepting a chat message
func (be *BusinessEvents) TraceChatSend(ctx context.Context, roomID, userID string) (context.Context, trace.Span) {
	return be.tracer.Start(ctx, "chat.send",
		trace.WithAttributes(
			attribute.String("chat.room_id", roomID),
			attribute.String("user.id", userID),
		),
	)
}

// TracePollVote creates a span for casting a poll vote
func (be *BusinessEvents) TracePollVote(ctx context.Context, pollID string, options int) (context.Context, trace.Span) {
	return be.tracer.Start(ctx, "poll.vote",
		trace.WithAttributes(
			attribute.String("poll.id", pollID),
			attribute.Int("poll.option_count", options),
		),
	)
}

// TraceChatFlush creates a span for publishing one round of room batches
func (be *BusinessEvents) TraceChatFlush(ctx context.Context, reason string, batches int) (context.Context, trace.Span) {
	return be.tracer.Start(ctx, "chat.flush",
		trace.WithAttributes(
			attribute.String("chat.flush_reason", reason),
			attribute.Int("chat.batch_count", batches),
		),
	)
}

// TracePollSweep creates a span for one pass of the expired-poll closer
func (be *BusinessEvents) TracePollSweep(ctx context.Context) (context.Context, trace.Span) {
	return be.tracer.Start(ctx, "poll.close_expired")
}

// TraceDashboardRefresh creates a span for one collector pass
func (be *BusinessEvents) TraceDashboardRefresh(ctx context.Context) (context.Context, trace.Span) {
	return be.tracer.Start(ctx, "admin.dashboard_refresh")
}

// EndSpan records err on span (if any) and ends it
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	span.End()
}
