package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/akeren/event-referrals/config"
	"github.com/akeren/event-referrals/config/router"
	"github.com/akeren/event-referrals/domain"
	"github.com/akeren/event-referrals/internal/log"
	"github.com/akeren/event-referrals/internal/models"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type RegistrationAPITestSuite struct {
	suite.Suite
	db        *gorm.DB
	server    *httptest.Server
	baseURL   string
	logger    *log.Logger
	appConfig *config.ApplicationConfig
}

func (suite *RegistrationAPITestSuite) SetupSuite() {
	var err error
	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.Require().NoError(err)

	// every pooled connection to :memory: would otherwise get its own database
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	err = suite.db.AutoMigrate(models.ModelRegistry...)
	suite.Require().NoError(err)

	suite.logger = log.NewLoggerWithJSONOutput()

	suite.appConfig = &config.ApplicationConfig{
		DB:     suite.db,
		Logger: suite.logger,
		Config: &config.AppConfig{PublicOrigin: "https://natale.example"},
	}

	suite.appConfig.RouterService = router.CreateRouterService(suite.logger, nil, &router.RouterConfig{
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    30 * time.Second,
	})

	domain.SetupCoreDomain(suite.appConfig)

	suite.server = httptest.NewServer(suite.appConfig.RouterService.GetEngine())
	suite.baseURL = suite.server.URL
}

func (suite *RegistrationAPITestSuite) TearDownSuite() {
	if suite.server != nil {
		suite.server.Close()
	}
	if suite.db != nil {
		sqlDB, _ := suite.db.DB()
		sqlDB.Close()
	}
}

func (suite *RegistrationAPITestSuite) SetupTest() {
	suite.db.Exec("DELETE FROM registrations")
}

func (suite *RegistrationAPITestSuite) validRegistration(email string) map[string]any {
	return map[string]any{
		"first_name":       "Giulia",
		"last_name":        "Bianchi",
		"city":             "Torino",
		"email":            email,
		"phone":            "+39 333 1234567",
		"participants":     2,
		"time_slot":        models.TimeSlots[0],
		"privacy_accepted": true,
	}
}

func (suite *RegistrationAPITestSuite) postRegistration(body map[string]any) (int, map[string]any) {
	jsonBody, _ := json.Marshal(body)

	resp, err := http.Post(suite.baseURL+"/v1/registrations", "application/json", bytes.NewBuffer(jsonBody))
	suite.Require().NoError(err)
	defer resp.Body.Close()

	var response map[string]any
	suite.Require().NoError(json.NewDecoder(resp.Body).Decode(&response))

	return resp.StatusCode, response
}

func (suite *RegistrationAPITestSuite) getStatus(code string) map[string]any {
	resp, err := http.Get(suite.baseURL + "/v1/referrals/status?code=" + code)
	suite.Require().NoError(err)
	defer resp.Body.Close()

	suite.Require().Equal(http.StatusOK, resp.StatusCode)

	var response map[string]any
	suite.Require().NoError(json.NewDecoder(resp.Body).Decode(&response))

	return response["data"].(map[string]any)
}

func (suite *RegistrationAPITestSuite) TestHealthCheck() {
	resp, err := http.Get(suite.baseURL + "/health")
	suite.Require().NoError(err)
	defer resp.Body.Close()

	suite.Equal(http.StatusOK, resp.StatusCode)

	var response map[string]any
	suite.Require().NoError(json.NewDecoder(resp.Body).Decode(&response))

	suite.Contains(response["message"], "health check completed")

	data := response["data"].(map[string]any)
	suite.Equal(float64(1), data["database"])
	suite.Equal(float64(1), data["broker"])
	suite.Contains(data, "uptime")
}

func (suite *RegistrationAPITestSuite) TestRegistrationOptions() {
	resp, err := http.Get(suite.baseURL + "/v1/registrations/options")
	suite.Require().NoError(err)
	defer resp.Body.Close()

	suite.Equal(http.StatusOK, resp.StatusCode)

	var response map[string]any
	suite.Require().NoError(json.NewDecoder(resp.Body).Decode(&response))

	data := response["data"].(map[string]any)
	suite.Len(data["time_slots"], len(models.TimeSlots))
	suite.Equal(float64(3), data["reward_threshold"])
	suite.Equal(float64(1), data["min_participants"])
	suite.Equal(float64(8), data["max_participants"])
}

func (suite *RegistrationAPITestSuite) TestCreateRegistration() {
	status, response := suite.postRegistration(suite.validRegistration("  Giulia.Bianchi@Example.com "))

	suite.Equal(http.StatusCreated, status)
	suite.Contains(response["message"], "created successfully")

	data := response["data"].(map[string]any)
	code := data["referral_code"].(string)
	suite.Len(code, 10)
	suite.NotEmpty(data["id"])
	suite.Equal("https://natale.example/?code="+code, data["share_link"])
	suite.True(strings.HasPrefix(data["whatsapp_link"].(string), "https://wa.me/?text="))
	suite.Equal("https://natale.example/thank-you?code="+code, data["status_url"])

	var stored models.Registration
	suite.Require().NoError(suite.db.First(&stored, "referral_code = ?", code).Error)
	suite.Equal("giulia.bianchi@example.com", stored.Email)
	suite.Nil(stored.ReferredBy)
	suite.Equal(0, stored.ReferralCount)
}

func (suite *RegistrationAPITestSuite) TestCreateRegistration_ConsentRequired() {
	body := suite.validRegistration("no.consent@example.com")
	body["privacy_accepted"] = false
	body["participants"] = 42

	status, response := suite.postRegistration(body)

	suite.Equal(http.StatusBadRequest, status)
	data := response["data"].(map[string]any)
	suite.Equal("CONSENT_REQUIRED", data["error_code"])

	var count int64
	suite.db.Model(&models.Registration{}).Count(&count)
	suite.Equal(int64(0), count)
}

func (suite *RegistrationAPITestSuite) TestCreateRegistration_InvalidFields() {
	body := suite.validRegistration("not-an-email")
	body["participants"] = 9
	body["time_slot"] = "03:00-04:00"

	status, response := suite.postRegistration(body)

	suite.Equal(http.StatusBadRequest, status)
	suite.Equal("Invalid request payload", response["message"])
	suite.NotEmpty(response["data"])
}

func (suite *RegistrationAPITestSuite) TestCreateRegistration_DuplicateEmail() {
	status, _ := suite.postRegistration(suite.validRegistration("dup@example.com"))
	suite.Require().Equal(http.StatusCreated, status)

	status, response := suite.postRegistration(suite.validRegistration("DUP@example.com"))

	suite.Equal(http.StatusConflict, status)
	suite.Equal("this email is already registered", response["message"])
	data := response["data"].(map[string]any)
	suite.Equal("DUPLICATE_EMAIL", data["error_code"])
}

func (suite *RegistrationAPITestSuite) TestReferralCreditFlow() {
	status, response := suite.postRegistration(suite.validRegistration("referrer@example.com"))
	suite.Require().Equal(http.StatusCreated, status)
	code := response["data"].(map[string]any)["referral_code"].(string)

	initial := suite.getStatus(code)
	suite.Equal(float64(0), initial["referral_count"])
	suite.Equal(false, initial["unlocked"])

	for i := 0; i < 3; i++ {
		friend := suite.validRegistration(fmt.Sprintf("friend%d@example.com", i))
		friend["referred_by"] = "  " + code + " "
		status, _ := suite.postRegistration(friend)
		suite.Require().Equal(http.StatusCreated, status)
	}

	final := suite.getStatus(code)
	suite.Equal(float64(3), final["referral_count"])
	suite.Equal(true, final["unlocked"])
	suite.Equal(float64(100), final["progress_percent"])
	suite.Equal(float64(0), final["remaining"])
}

func (suite *RegistrationAPITestSuite) TestUnknownReferralCode() {
	friend := suite.validRegistration("orphan@example.com")
	friend["referred_by"] = "DOESNOTEXIST"

	status, _ := suite.postRegistration(friend)
	suite.Equal(http.StatusCreated, status)

	data := suite.getStatus("DOESNOTEXIST")
	suite.Equal(float64(0), data["referral_count"])
	suite.Equal(float64(3), data["remaining"])
}

func (suite *RegistrationAPITestSuite) TestReferralStream_ReceivesCredit() {
	status, response := suite.postRegistration(suite.validRegistration("streamer@example.com"))
	suite.Require().Equal(http.StatusCreated, status)
	code := response["data"].(map[string]any)["referral_code"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, suite.baseURL+"/v1/referrals/stream?code="+code, nil)
	suite.Require().NoError(err)

	resp, err := http.DefaultClient.Do(req)
	suite.Require().NoError(err)
	defer resp.Body.Close()

	suite.Require().Equal(http.StatusOK, resp.StatusCode)
	suite.Contains(resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)

	first := readStatusEvent(suite.T(), reader)
	suite.Equal(float64(0), first["referral_count"])

	friend := suite.validRegistration("stream.friend@example.com")
	friend["referred_by"] = code
	status, _ = suite.postRegistration(friend)
	suite.Require().Equal(http.StatusCreated, status)

	update := readStatusEvent(suite.T(), reader)
	suite.Equal(float64(1), update["referral_count"])
	suite.Equal(float64(33), update["progress_percent"])
}

// readStatusEvent returns the data of the next "status" event.
func readStatusEvent(t *testing.T, reader *bufio.Reader) map[string]any {
	t.Helper()

	event := ""
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("stream ended before a status event: %v", err)
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:") && event == "status":
			var data map[string]any
			if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &data); err != nil {
				t.Fatalf("decode status event: %v", err)
			}
			return data
		}
	}
}

func TestRegistrationAPISuite(t *testing.T) {
	// Skip integration tests unless explicitly requested
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration tests. Set RUN_INTEGRATION_TESTS=true to run them")
	}

	suite.Run(t, new(RegistrationAPITestSuite))
}
