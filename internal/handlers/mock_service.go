package handlers

import (
	"net/http"
	"time"

	"smartdoor"
	"smartdoor/internal/door"
	"smartdoor/internal/fingerprint"
	"smartdoor/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockPasscodes struct {
	setMainErr     error
	createGuestID  int64
	createGuestErr error
	guests         []smartdoor.GuestCode
	guestsErr      error
	revealMain     string
	revealMainErr  error
	deleteErr      error

	lastSetMain     string
	lastGuestCode   string
	lastGuestMin    int
	lastGuestOnce   bool
	deletedGuestIDs []int64
}

func (m *mockPasscodes) SetMain(code string) error {
	m.lastSetMain = code
	return m.setMainErr
}
func (m *mockPasscodes) CreateGuest(code string, minutesValid int, oneTime bool) (int64, error) {
	m.lastGuestCode = code
	m.lastGuestMin = minutesValid
	m.lastGuestOnce = oneTime
	return m.createGuestID, m.createGuestErr
}
func (m *mockPasscodes) HasMain() (bool, error) { return m.revealMain != "", nil }
func (m *mockPasscodes) ListActiveGuests() ([]smartdoor.GuestCode, error) {
	return m.guests, m.guestsErr
}
func (m *mockPasscodes) VerifyMain(code string) (bool, error) { return false, nil }
func (m *mockPasscodes) RevealMain() (string, error)          { return m.revealMain, m.revealMainErr }
func (m *mockPasscodes) RevealGuest(id int64) (string, error) { return "", nil }
func (m *mockPasscodes) MarkUsed(id int64) error              { return nil }
func (m *mockPasscodes) DeleteGuest(id int64) error {
	m.deletedGuestIDs = append(m.deletedGuestIDs, id)
	return m.deleteErr
}

type mockAccessLog struct {
	entries   []smartdoor.AccessEntry
	listErr   error
	clearErr  error
	deleteErr error

	lastLimit  int
	lastYear   int
	lastMonth  time.Month
	deletedIDs []string
	cleared    int
}

func (m *mockAccessLog) Record(e smartdoor.AccessEntry) error {
	m.entries = append(m.entries, e)
	return nil
}
func (m *mockAccessLog) RecentOpenings(limit int) ([]smartdoor.AccessEntry, error) {
	m.lastLimit = limit
	return m.entries, m.listErr
}
func (m *mockAccessLog) ListMonth(year int, month time.Month) ([]smartdoor.AccessEntry, error) {
	m.lastYear, m.lastMonth = year, month
	return m.entries, m.listErr
}
func (m *mockAccessLog) ClearMonth(year int, month time.Month) error {
	m.lastYear, m.lastMonth = year, month
	m.cleared++
	return m.clearErr
}
func (m *mockAccessLog) Delete(id string) error {
	m.deletedIDs = append(m.deletedIDs, id)
	return m.deleteErr
}

type mockSettings struct {
	settings smartdoor.Settings
	err      error

	lastHoldTime   int
	lastToggle     string
	lastToggleOn   bool
	lastDoorState  string
	setToggleErr   error
	setHoldTimeErr error
}

func (m *mockSettings) Get() (smartdoor.Settings, error) { return m.settings, m.err }
func (m *mockSettings) SetHoldTime(seconds int) error {
	m.lastHoldTime = seconds
	return m.setHoldTimeErr
}
func (m *mockSettings) SetToggle(name string, enabled bool) error {
	m.lastToggle, m.lastToggleOn = name, enabled
	return m.setToggleErr
}
func (m *mockSettings) SetDoorState(state string) error {
	m.lastDoorState = state
	return nil
}

// ---- Door / Fingerprint Mocks ----

type mockDoor struct {
	state     door.State
	connected bool
	holdTime  int

	openCalled  int
	closeCalled int
}

func (m *mockDoor) OpenDoor()  { m.openCalled++ }
func (m *mockDoor) CloseDoor() { m.closeCalled++ }
func (m *mockDoor) State() door.State {
	return m.state
}
func (m *mockDoor) IsConnected() bool       { return m.connected }
func (m *mockDoor) HoldTime() int           { return m.holdTime }
func (m *mockDoor) SetHoldTime(seconds int) { m.holdTime = seconds }

type mockProvisioner struct {
	enrollRes    fingerprint.Result
	deleteRes    fingerprint.Result
	deleteAllRes fingerprint.Result
	libraryRes   fingerprint.Result

	lastDeleteID int
}

func (m *mockProvisioner) Enroll() fingerprint.Result { return m.enrollRes }
func (m *mockProvisioner) Delete(id int) fingerprint.Result {
	m.lastDeleteID = id
	return m.deleteRes
}
func (m *mockProvisioner) DeleteAll() fingerprint.Result      { return m.deleteAllRes }
func (m *mockProvisioner) FirstEmptySlot() fingerprint.Result { return m.libraryRes }

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service, d DoorControl, fp Provisioner) *gin.Engine {
	h := NewHandler(s, d, fp, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
