package team

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/task-tracker/pkg/apperr"
)

// localDateTimeLayout is the team service's zoneless timestamp, e.g. 2024-05-01T10:00:00.
// The fractional part is optional when parsing.
const localDateTimeLayout = "2006-01-02T15:04:05.999999999"

// LocalDateTime is a wall-clock timestamp without a zone, read as UTC.
type LocalDateTime struct {
	time.Time
}

func (t LocalDateTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(localDateTimeLayout))
}

func (t *LocalDateTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = LocalDateTime{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("modifiedAt must be a string: %w", err)
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed.UTC()
		return nil
	}
	parsed, err := time.ParseInLocation(localDateTimeLayout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid modifiedAt %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// Member is a membership record from the team service.
type Member struct {
	TeamID     int64         `json:"teamId"`
	MemberID   int64         `json:"memberId"`
	ModifiedAt LocalDateTime `json:"modifiedAt"`
}

// MembersOfRequest asks for the members of a team.
type MembersOfRequest struct {
	TeamID int64 `json:"teamId"`
}

// MembersOfResponse lists the team's members.
type MembersOfResponse struct {
	Members []Member      `json:"members"`
	Failure *apperr.Error `json:"failure,omitempty"`
}

// MemberIDs returns the distinct member ids in first-seen order.
func MemberIDs(members []Member) []int64 {
	seen := make(map[int64]struct{}, len(members))
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m.MemberID]; ok {
			continue
		}
		seen[m.MemberID] = struct{}{}
		ids = append(ids, m.MemberID)
	}
	return ids
}
