package issuance

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const MaxBatchSize = 100

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Validation failures. All of them are detected before any network call.
var (
	ErrInvalidAddress   = errors.New("invalid Ethereum address")
	ErrEmptyHash        = errors.New("diploma hash is required")
	ErrEmptyBatch       = errors.New("please add at least one student with both address and diploma hash")
	ErrBatchTooLarge    = fmt.Errorf("maximum batch size is %d diplomas", MaxBatchSize)
	ErrLengthMismatch   = errors.New("students and diploma hashes must have the same length")
	ErrDuplicateAddress = errors.New("duplicate student addresses found, each student should be unique")
	ErrDuplicateHash    = errors.New("duplicate diploma hashes found, each diploma hash should be unique")
	ErrNoCSVEntries     = errors.New("no valid entries found in CSV input")
	ErrEmptyField       = errors.New("name and country are required")
)

// ValidateAddress reports whether s is a 0x-prefixed 20-byte hex string.
// Checksum casing is not enforced.
func ValidateAddress(s string) bool {
	return addressPattern.MatchString(s)
}

func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !ValidateAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

// ValidateSingle checks a single issuance request.
func ValidateSingle(student, diplomaHash string) (common.Address, string, error) {
	addr, err := ParseAddress(student)
	if err != nil {
		return common.Address{}, "", err
	}
	diplomaHash = strings.TrimSpace(diplomaHash)
	if diplomaHash == "" {
		return common.Address{}, "", ErrEmptyHash
	}
	return addr, diplomaHash, nil
}

// ValidateBatch checks a batch and returns the parsed addresses and trimmed
// hashes in input order.
func ValidateBatch(students, hashes []string) ([]common.Address, []string, error) {
	if len(students) != len(hashes) {
		return nil, nil, ErrLengthMismatch
	}
	if len(students) == 0 {
		return nil, nil, ErrEmptyBatch
	}
	if len(students) > MaxBatchSize {
		return nil, nil, ErrBatchTooLarge
	}

	addrs := make([]common.Address, len(students))
	trimmed := make([]string, len(hashes))
	seenAddr := make(map[string]struct{}, len(students))
	seenHash := make(map[string]struct{}, len(hashes))

	for i, s := range students {
		addr, err := ParseAddress(s)
		if err != nil {
			return nil, nil, err
		}
		key := strings.ToLower(strings.TrimSpace(s))
		if _, dup := seenAddr[key]; dup {
			return nil, nil, ErrDuplicateAddress
		}
		seenAddr[key] = struct{}{}
		addrs[i] = addr
	}

	for i, h := range hashes {
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, nil, fmt.Errorf("%w (entry %d)", ErrEmptyHash, i+1)
		}
		if _, dup := seenHash[h]; dup {
			return nil, nil, ErrDuplicateHash
		}
		seenHash[h] = struct{}{}
		trimmed[i] = h
	}

	return addrs, trimmed, nil
}

// ValidateRegistration checks the registerUniversity inputs.
func ValidateRegistration(name, country string) (string, string, error) {
	name, country = strings.TrimSpace(name), strings.TrimSpace(country)
	if name == "" || country == "" {
		return "", "", ErrEmptyField
	}
	return name, country, nil
}

type Entry struct {
	Student     string `json:"student"`
	DiplomaHash string `json:"diploma_hash"`
}

// Split returns the entries as the two parallel slices the contract takes.
func Split(entries []Entry) ([]string, []string) {
	students := make([]string, len(entries))
	hashes := make([]string, len(entries))
	for i, e := range entries {
		students[i] = e.Student
		hashes[i] = e.DiplomaHash
	}
	return students, hashes
}

// ParseBatchCSV reads "address,hash" or "address" lines. Missing hashes are
// generated, blank lines and lines with more than two fields are skipped and
// a leading header row is ignored. The result is not validated.
func ParseBatchCSV(r io.Reader, now func() time.Time) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var entries []Entry
	first := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV input: %w", err)
		}

		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		if len(record) == 0 || (len(record) == 1 && record[0] == "") {
			continue
		}

		if first {
			first = false
			if isHeader(record[0]) {
				continue
			}
		}

		switch len(record) {
		case 1:
			entries = append(entries, Entry{Student: record[0], DiplomaHash: GenerateHash(now())})
		case 2:
			hash := record[1]
			if hash == "" {
				hash = GenerateHash(now())
			}
			entries = append(entries, Entry{Student: record[0], DiplomaHash: hash})
		}
	}

	if len(entries) == 0 {
		return nil, ErrNoCSVEntries
	}
	return entries, nil
}

func isHeader(field string) bool {
	switch strings.ToLower(field) {
	case "student", "address", "student_address", "wallet":
		return true
	}
	return false
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateHash returns a placeholder diploma hash of the form
// diploma-<unix ms>-<13 random base36 chars>.
func GenerateHash(now time.Time) string {
	suffix := make([]byte, 13)
	for i := range suffix {
		suffix[i] = base36[rand.IntN(len(base36))]
	}
	return "diploma-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + string(suffix)
}
