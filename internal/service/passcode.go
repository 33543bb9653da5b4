package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"smartdoor"
	"smartdoor/internal/repository"
	"smartdoor/internal/vault"
)

const (
	codeLength            = 4  // keypad-style: exactly 4 digits
	defaultValidityMinute = 60 // guest codes default to one hour
)

// ErrInvalidCode rejects anything that is not exactly codeLength digits.
var ErrInvalidCode = errors.New("passcode must be exactly 4 digits")

// PasscodeService stores codes as SHA-256 hashes plus an optional vault blob
// for reveal. The masked form is kept equal to the plain code so the UI can
// display guest codes as-is.
type PasscodeService struct {
	repo  repository.PasscodeRepo
	vault *vault.Vault
}

func NewPasscodeService(repo repository.PasscodeRepo, v *vault.Vault) *PasscodeService {
	return &PasscodeService{repo: repo, vault: v}
}

func validateCode(code string) error {
	if len(code) != codeLength {
		return ErrInvalidCode
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return ErrInvalidCode
		}
	}
	return nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func maskCode(code string) string { return code }

// SetMain replaces the main passcode; any previous main is demoted.
func (s *PasscodeService) SetMain(code string) error {
	if err := validateCode(code); err != nil {
		return err
	}
	_, err := s.repo.InsertMain(hashCode(code), maskCode(code), s.vault.Encrypt(code))
	return err
}

// CreateGuest adds a temp or one-time guest code valid for minutesValid
// minutes (default one hour).
func (s *PasscodeService) CreateGuest(code string, minutesValid int, oneTime bool) (int64, error) {
	if err := validateCode(code); err != nil {
		return 0, err
	}
	if minutesValid <= 0 {
		minutesValid = defaultValidityMinute
	}
	validUntil := time.Now().UTC().Add(time.Duration(minutesValid) * time.Minute)
	return s.repo.InsertGuest(hashCode(code), maskCode(code), s.vault.Encrypt(code), oneTime, validUntil)
}

func (s *PasscodeService) HasMain() (bool, error) {
	return s.repo.HasMain()
}

func (s *PasscodeService) ListActiveGuests() ([]smartdoor.GuestCode, error) {
	return s.repo.ListActiveGuests(time.Now().UTC())
}

// VerifyMain hashes the entered code and checks it against the main row.
// A malformed entry simply does not match.
func (s *PasscodeService) VerifyMain(code string) (bool, error) {
	if validateCode(code) != nil {
		return false, nil
	}
	return s.repo.MainHashExists(hashCode(code))
}

// RevealMain decrypts the stored main passcode, empty when no vault or no
// blob.
func (s *PasscodeService) RevealMain() (string, error) {
	blob, err := s.repo.RevealMain()
	if err != nil {
		return "", err
	}
	return s.vault.Decrypt(blob), nil
}

func (s *PasscodeService) RevealGuest(id int64) (string, error) {
	blob, err := s.repo.RevealGuest(id)
	if err != nil {
		return "", err
	}
	return s.vault.Decrypt(blob), nil
}

func (s *PasscodeService) MarkUsed(id int64) error {
	return s.repo.MarkUsed(id)
}

func (s *PasscodeService) DeleteGuest(id int64) error {
	return s.repo.DeleteGuest(id)
}
