// Package conversation holds the per-user flow state machine. Each user has
// a single flow slot; starting a flow replaces whatever was there.
package conversation

type State string

const (
	Idle          State = ""
	WaitingText   State = "review:waiting_text"
	WaitingRating State = "review:waiting_rating"
	WaitingReason State = "admin_score:waiting_reason"
	WaitingPhoto  State = "admin_photo:waiting_photo"
	WaitingQuery  State = "search:waiting_query"
)

// Flow is the state plus whatever the flow has collected so far.
type Flow struct {
	State       State  `json:"state"`
	ProjectID   uint   `json:"project_id,omitempty"`
	ProjectName string `json:"project_name,omitempty"`
	Category    string `json:"category,omitempty"`
	ReviewText  string `json:"review_text,omitempty"`
	Delta       int    `json:"delta,omitempty"`
}

func (f Flow) Active() bool {
	return f.State != Idle
}

// transitions lists the moves allowed besides the universal reset to Idle.
var transitions = map[State][]State{
	WaitingText:   {WaitingRating},
	WaitingRating: {WaitingText},
}

func canMove(from, to State) bool {
	if to == Idle {
		return from != Idle
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
