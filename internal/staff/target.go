package staff

import (
	"strconv"
	"strings"

	"casino-miniapp/internal/models"
)

// Target addresses the account a direct balance adjustment applies to. The
// ledger resolves it; the client only chooses the addressing mode.
type Target interface {
	fill(req *models.StaffRequest) error
	String() string
}

type ByID int64

func (t ByID) fill(req *models.StaffRequest) error {
	if t <= 0 {
		return &models.ValidationError{Field: "user_id", Reason: "must be a positive id"}
	}
	req.UserID = int64(t)
	return nil
}

func (t ByID) String() string {
	return "#" + strconv.FormatInt(int64(t), 10)
}

type ByName string

func (t ByName) fill(req *models.StaffRequest) error {
	name := strings.TrimSpace(string(t))
	if name == "" {
		return &models.ValidationError{Field: "full_name", Reason: "required"}
	}
	req.FullName = name
	return nil
}

func (t ByName) String() string {
	return strings.TrimSpace(string(t))
}
