package digest

import "context"

// Job is one named background task. An empty Schedule registers the job for
// on-demand runs only.
type Job interface {
	Name() string
	Schedule() string
	Execute(ctx context.Context) error
}

// Poster delivers a rendered card to the admin log topics.
type Poster interface {
	Announce(ctx context.Context, category, text string)
}
