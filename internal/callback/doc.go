// Package callback delivers finished jobs to an external webhook.
//
// The body is a JSON object with sorted keys:
//
//	{"conversation_id":"web:1","error_text":null,"job_id":"job_...","message_id":"m1","response_text":"...","status":"succeeded"}
//
// Headers:
//
//   - X-Callback-Timestamp: unix seconds at send time
//   - X-Callback-Signature: sha256=<hex HMAC-SHA256(secret, timestamp + "." + body)>, only when a secret is set
//   - X-Request-Id, X-Project-Id: copied from the job's context when present
//
// Delivery is retried on 5xx responses, timeouts and network errors with
// exponential backoff, then dropped with a log line. Notify never returns
// an error.
package callback
