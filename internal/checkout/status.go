package checkout

type Status string

const (
	StatusCreated   Status = "created"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
	StatusExpired   Status = "expired"
)

// IsTerminal reports whether the session can never change again. A canceled
// session is not terminal: the provider page may still take the payment after
// the customer left it, and a later reconcile must be able to complete it.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusExpired
}

// IsClosed reports whether the customer is done with the session locally.
func (s Status) IsClosed() bool {
	return s == StatusCanceled || s.IsTerminal()
}

func (s Status) String() string {
	return string(s)
}

var transitions = map[Status][]Status{
	StatusCreated:  {StatusPending},
	StatusPending:  {StatusCompleted, StatusCanceled, StatusExpired},
	StatusCanceled: {StatusCompleted, StatusExpired},
}

// CanTransitionTo reports whether a session in status from may move to to.
// Terminal states have no way out.
func CanTransitionTo(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
