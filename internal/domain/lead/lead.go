package lead

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Lead is a CRM prospect belonging to one tenant. The reminder fields drive
// the periodic sweep that places follow-up calls.
type Lead struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`
	Name     string    `json:"name"`
	Phone    string    `json:"phone"`
	Status   Status    `json:"status"`

	ReminderDueAt    *time.Time `json:"reminder_due_at,omitempty"`
	ReminderAttempts int        `json:"reminder_attempts"`
	LastRemindedAt   *time.Time `json:"last_reminded_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Status int

const (
	StatusNew Status = iota
	StatusContacted
	StatusQualified
	StatusConverted
	StatusLost
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusContacted:
		return "contacted"
	case StatusQualified:
		return "qualified"
	case StatusConverted:
		return "converted"
	case StatusLost:
		return "lost"
	default:
		return "unknown"
	}
}

// ParseStatus converts the stored string form back to a Status. Unknown
// values map to StatusNew so a bad row cannot wedge the sweep.
func ParseStatus(s string) Status {
	switch s {
	case "contacted":
		return StatusContacted
	case "qualified":
		return StatusQualified
	case "converted":
		return StatusConverted
	case "lost":
		return StatusLost
	default:
		return StatusNew
	}
}

var phoneRe = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)

// NewLead creates a lead in the new state.
func NewLead(tenantID uuid.UUID, name, phone string) (*Lead, error) {
	if tenantID == uuid.Nil {
		return nil, fmt.Errorf("tenant ID cannot be nil")
	}
	if !phoneRe.MatchString(phone) {
		return nil, fmt.Errorf("invalid phone number: %q", phone)
	}

	now := time.Now()
	return &Lead{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      name,
		Phone:     phone,
		Status:    StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// DueForReminder reports whether the sweep should dial this lead at the
// given instant. Converted and lost leads are never dialed.
func (l *Lead) DueForReminder(now time.Time) bool {
	if l.Status == StatusConverted || l.Status == StatusLost {
		return false
	}
	return l.ReminderDueAt != nil && !l.ReminderDueAt.After(now)
}

// MarkReminded records a dial attempt and clears the due marker so an
// overlapping sweep cannot pick the lead up again.
func (l *Lead) MarkReminded(at time.Time) {
	l.ReminderAttempts++
	l.LastRemindedAt = &at
	l.ReminderDueAt = nil
	l.UpdatedAt = at
}
