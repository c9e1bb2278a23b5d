package issuance

import (
	"regexp"
	"strings"
)

// Category is the classification of a failed write.
type Category string

const (
	CategoryCancelled    Category = "cancelled"
	CategoryUnauthorized Category = "unauthorized"
	CategoryDuplicate    Category = "duplicate"
	CategoryInvalid      Category = "invalid"
	CategoryRevert       Category = "revert"
	CategoryOther        Category = "other"
)

// Retryable reports whether a second attempt with different gas may help.
func (c Category) Retryable() bool {
	return c == CategoryRevert
}

var signatures = []struct {
	category Category
	needles  []string
}{
	{CategoryCancelled, []string{"user rejected", "user denied", "rejected the request"}},
	{CategoryUnauthorized, []string{
		"accesscontrol", "unauthorized", "not authorized", "missing role",
		"caller is not", "not approved", "onlyuniversity", "onlyadmin",
	}},
	{CategoryDuplicate, []string{"already exists", "already issued", "already registered", "already minted", "duplicate"}},
	{CategoryInvalid, []string{"invalid", "zero address", "empty", "length mismatch", "too large", "exceeds"}},
}

// Classify buckets err by case-insensitive substring match on its text.
// Checks run in order, so an unauthorized revert that also says "invalid"
// stays unauthorized.
func Classify(err error) Category {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())

	for _, sig := range signatures {
		for _, needle := range sig.needles {
			if strings.Contains(msg, needle) {
				return sig.category
			}
		}
	}

	if strings.Contains(msg, "execution reverted") {
		return CategoryRevert
	}
	return CategoryOther
}

var revertReason = regexp.MustCompile(`execution reverted: (.*?)(?:$|")`)

// ExtractReason returns the revert reason embedded in err, if any.
func ExtractReason(err error) string {
	if err == nil {
		return ""
	}
	m := revertReason.FindStringSubmatch(err.Error())
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// SubmitError is returned when a write could not be submitted.
type SubmitError struct {
	Category Category `json:"category"`
	Message  string   `json:"message"`
	Reason   string   `json:"reason,omitempty"`
	Attempts int      `json:"attempts"`
	Err      error    `json:"-"`
}

func (e *SubmitError) Error() string {
	if e.Reason != "" {
		return e.Message + " (" + e.Reason + ")"
	}
	return e.Message
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// Messages holds the user-facing text for each category of a write kind.
type Messages struct {
	Unauthorized string
	Duplicate    string
	Invalid      string
	Generic      string
}

func (m Messages) For(c Category) string {
	switch c {
	case CategoryUnauthorized:
		return m.Unauthorized
	case CategoryDuplicate:
		return m.Duplicate
	case CategoryInvalid:
		return m.Invalid
	default:
		return m.Generic
	}
}

var (
	DiplomaMessages = Messages{
		Unauthorized: "You are not authorized to issue diplomas. Make sure your university is approved and holds the university role.",
		Duplicate:    "A diploma with this hash already exists for this student.",
		Invalid:      "The contract rejected the diploma data as invalid.",
		Generic:      "Failed to issue diploma. The transaction reverted after retrying with adjusted gas settings.",
	}
	BatchMessages = Messages{
		Unauthorized: DiplomaMessages.Unauthorized,
		Duplicate:    "One or more diplomas in this batch already exist.",
		Invalid:      "The contract rejected the batch data as invalid.",
		Generic:      "Failed to issue diplomas. The batch transaction reverted after retrying with adjusted gas settings.",
	}
	RegisterMessages = Messages{
		Unauthorized: "This wallet is not allowed to register a university.",
		Duplicate:    "This university is already registered.",
		Invalid:      "The contract rejected the registration data as invalid.",
		Generic:      "Failed to register university.",
	}
	ApproveMessages = Messages{
		Unauthorized: "Only an admin can approve universities.",
		Duplicate:    "This university is already approved.",
		Invalid:      "The contract rejected the university address.",
		Generic:      "Failed to approve university.",
	}
	GrantRoleMessages = Messages{
		Unauthorized: "Only an admin can grant the university role.",
		Duplicate:    "This university already holds the university role.",
		Invalid:      "The contract rejected the university address.",
		Generic:      "Failed to grant university role.",
	}
	MintMessages = Messages{
		Unauthorized: "Only the diploma's student can mint it.",
		Duplicate:    "This diploma has already been minted.",
		Invalid:      "The contract rejected the mint request as invalid.",
		Generic:      "Failed to mint diploma NFT.",
	}
)
