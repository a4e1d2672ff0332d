// Package jobs runs conversation turns asynchronously.
//
// A Scheduler owns a fixed number of workers reading a bounded queue.
// Schedule records a pending JobRecord and queues it; a worker moves it to
// running, calls the turn runner and records succeeded (with the reply) or
// failed (with the error text). Every finished job is handed to the
// optional Notifier, on both paths.
//
//	sched, _ := jobs.New(jobs.Config{Jobs: st, Runner: svc, Notifier: sender})
//	id, err := sched.Schedule(ctx, jobs.Request{ConversationID: "web:1", Text: "mis compras"})
//	job, err := sched.Get(ctx, id)
//
// Jobs run on a context detached from the scheduling request that keeps
// its request and project ids. Failed jobs are never retried; callers may
// schedule again with the same MessageID to reuse the orchestrator's
// idempotency.
package jobs
