package entity

type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
	RoleAdmin Role = "admin"
)

// Caller is the authenticated account behind a request.
type Caller struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

type Feature string

const (
	FeatureAttendees  Feature = "attendees"
	FeaturePaidEvents Feature = "paid_events"
	FeatureWaitlist   Feature = "waitlist"
)

var AllFeatures = []Feature{FeatureAttendees, FeaturePaidEvents, FeatureWaitlist}

type Entitlement struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

type Contact struct {
	HostID           string     `db:"host_id"`
	Email            string     `db:"email"`
	Name             string     `db:"name"`
	Phone            string     `db:"phone"`
	EventIDs         StringList `db:"event_ids"`
	RegistrationsCnt int        `db:"registrations_count"`
}
