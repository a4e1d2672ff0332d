// Package api is the thin HTTP layer over the turn orchestrator and the
// job scheduler.
//
// # Endpoints
//
//	GET    /health                          liveness, no auth
//	POST   /v1/turns                        run a turn inline
//	POST   /v1/jobs                         schedule a turn, 202 + job_id
//	GET    /v1/jobs/{id}                    poll a job, 404 when unknown
//	GET    /v1/conversations/{id}           stored conversation state
//	GET    /v1/conversations/{id}/events    server-sent events, one "turn" event per completed turn
//	DELETE /v1/memory/{customer_id}         forget a customer
//
// # Correlation
//
// X-Request-Id is reused or generated and echoed on every response.
// The project id comes from the token's project_id claim when auth is
// enabled, otherwise from X-Project-Id; it scopes customer memory.
//
// # Errors
//
// Errors are JSON objects {"error": "..."}: 400 for invalid input, 404
// for unknown records, 503 when jobs are disabled or shutting down, 500
// for store failures.
package api
