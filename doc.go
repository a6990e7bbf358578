// Package paddock is the backend of Paddock, a social network for Formula 1
// fans.
//
// Binaries:
//
//   - cmd/server: the HTTP and WebSocket API
//   - cmd/cli: operator commands (migrations, admins, bans, chat toggle, reindex)
//   - cmd/seed: reference data and development fixtures
//
// The API is organized into subpackages:
//
//   - internal/kernel: service graph, backend connections and lifecycle
//   - internal/handlers: HTTP request handlers for all API endpoints
//   - internal/auth: accounts, JWT sessions, Google sign-in and 2FA
//   - internal/timeline: feed and trending
//   - internal/ranking: hot and trending scores
//   - internal/polls, internal/grids: fan polls and ranked grids
//   - internal/chat: live race chat, persisted per message and broadcast in batches
//   - internal/websocket: realtime delivery and presence
//   - internal/notifications: inbox, preferences and realtime push
//   - internal/search: Elasticsearch with a database fallback
//   - internal/jobs, internal/alerts: admin dashboard, poll closing and alerting
//   - internal/storage, internal/email: S3 images and SES mail
//   - internal/database, internal/models: schema and migrations
//   - internal/middleware: auth, rate limiting, caching, tracing
//
// See the individual package documentation for detailed API reference.
package paddock
