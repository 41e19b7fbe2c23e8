package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/erazemk/lombard/internal/auth"
	"github.com/erazemk/lombard/internal/db"
	"github.com/erazemk/lombard/internal/model"
	"github.com/erazemk/lombard/internal/store"
)

const testJWTSecret = "test-secret"

// captureMailer remembers the last code sent to each address.
type captureMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *captureMailer) SendOTP(_ context.Context, email, purpose, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.codes == nil {
		m.codes = map[string]string{}
	}
	m.codes[purpose+":"+email] = code
	return nil
}

func (m *captureMailer) code(email, purpose string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[purpose+":"+email]
}

type testEnv struct {
	server *httptest.Server
	db     *sql.DB
	mailer *captureMailer
	token  string
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	return setupTestServerWith(t, NewOTPLimiter(100, 100, time.Hour))
}

func setupTestServerWith(t *testing.T, limiter *OTPLimiter) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)
	mailer := &captureMailer{}
	router := NewRouter(database, testJWTSecret, Options{Mailer: mailer, Limiter: limiter})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	// Create admin user.
	ctx := context.Background()
	hash, _ := auth.HashPassword("password")
	if _, err := store.CreateUser(ctx, database, "Admin", "admin@lombard.test", hash, model.RoleAdmin); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	env := &testEnv{server: server, db: database, mailer: mailer}
	status, resp := env.call(t, "POST", "/auth/user/login", "", map[string]string{
		"email": "admin@lombard.test", "password": "password",
	})
	if status != http.StatusOK {
		t.Fatalf("login failed: %d %s", status, resp.Message)
	}
	var data LoginData
	json.Unmarshal(resp.Data, &data)
	if data.Token == "" {
		t.Fatal("empty token from login")
	}
	env.token = data.Token
	return env
}

// call sends a JSON request to an API path and decodes the envelope.
func (e *testEnv) call(t *testing.T, method, path, token string, body any) (int, model.Response[json.RawMessage]) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+Prefix+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env model.Response[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decoding %s %s: %v", method, path, err)
	}
	return resp.StatusCode, env
}

func phoneBody(imei string) map[string]any {
	return map[string]any{
		"customerName":    "Mg Mg",
		"customerPhone":   "09123456789",
		"customerNrc":     "12/OUKAMA(N)123456",
		"customerAddress": "Yangon",
		"category":        "Phone",
		"amount":          150000,
		"pawnDate":        "2025-01-15",
		"dueDate":         "2025-02-14",
		"description":     "",
		"details": map[string]any{
			"brand": "Samsung", "model": "A15", "imei": imei,
			"storage": "128GB", "condition": "Normal",
		},
	}
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestServer(t)

	status, resp := env.call(t, "POST", "/auth/user/login", "", map[string]string{
		"email": "admin@lombard.test", "password": "wrong",
	})
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", status)
	}
	if resp.Success != 0 || resp.Code != http.StatusUnauthorized {
		t.Errorf("expected failure envelope, got %+v", resp)
	}
	if resp.Meta == nil || resp.Meta.Endpoint != Prefix+"/auth/user/login" || resp.Meta.Method != "POST" {
		t.Errorf("unexpected meta %+v", resp.Meta)
	}

	status, _ = env.call(t, "POST", "/auth/user/login", "", map[string]string{"email": "admin@lombard.test"})
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for missing password, got %d", status)
	}
}

func TestPawnItemFlow(t *testing.T) {
	env := setupTestServer(t)

	status, resp := env.call(t, "POST", "/auth/pawn-item", env.token, phoneBody("356789"))
	if status != http.StatusCreated || resp.Success != 1 {
		t.Fatalf("expected 201, got %d %s", status, resp.Message)
	}
	var created model.PawnItem
	if err := json.Unmarshal(resp.Data, &created); err != nil {
		t.Fatalf("decoding created item: %v", err)
	}
	if created.ID == "" || created.Status != model.StatusActive {
		t.Errorf("unexpected created item %+v", created)
	}

	// Same IMEI while the first phone is held.
	status, resp = env.call(t, "POST", "/auth/pawn-item", env.token, phoneBody("356789"))
	if status != http.StatusConflict || resp.Success != 0 || resp.Code != 409 || resp.Message != "Duplicate IMEI" {
		t.Errorf("expected Duplicate IMEI conflict, got %d %+v", status, resp)
	}

	// Details are spread next to the envelope in list responses.
	status, resp = env.call(t, "GET", "/auth/pawn-item?category=Phone&sortBy=amount", env.token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var flat []map[string]any
	json.Unmarshal(resp.Data, &flat)
	if len(flat) != 1 || flat[0]["imei"] != "356789" || flat[0]["brand"] != "Samsung" {
		t.Errorf("unexpected list %v", flat)
	}

	status, resp = env.call(t, "GET", "/auth/pawn-item?category=Watches", env.token, nil)
	json.Unmarshal(resp.Data, &flat)
	if status != http.StatusOK || len(flat) != 0 {
		t.Errorf("expected empty Watches list, got %d %v", status, flat)
	}

	status, _ = env.call(t, "GET", "/auth/pawn-item?category=Boats", env.token, nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown category, got %d", status)
	}

	update := phoneBody("356789")
	update["amount"] = 200000
	status, resp = env.call(t, "PUT", "/auth/pawn-item/"+created.ID, env.token, update)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on update, got %d %s", status, resp.Message)
	}

	status, resp = env.call(t, "POST", "/auth/pawn-item/"+created.ID+"/redeem", env.token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on redeem, got %d %s", status, resp.Message)
	}
	var redeemed model.PawnItem
	json.Unmarshal(resp.Data, &redeemed)
	if redeemed.Status != model.StatusRedeemed || redeemed.CheckedOutBy != "Admin" {
		t.Errorf("unexpected redeemed item %+v", redeemed)
	}

	status, _ = env.call(t, "POST", "/auth/pawn-item/"+created.ID+"/redeem", env.token, nil)
	if status != http.StatusConflict {
		t.Errorf("expected 409 redeeming twice, got %d", status)
	}

	// A redeemed phone releases its IMEI.
	status, resp = env.call(t, "POST", "/auth/pawn-item", env.token, phoneBody("356789"))
	if status != http.StatusCreated {
		t.Errorf("expected IMEI reuse after redeem, got %d %s", status, resp.Message)
	}

	status, resp = env.call(t, "GET", "/reports", env.token, nil)
	var report []model.ReportItem
	json.Unmarshal(resp.Data, &report)
	if status != http.StatusOK || len(report) != 2 {
		t.Errorf("expected 2 report rows, got %d %d", status, len(report))
	}

	status, _ = env.call(t, "DELETE", "/auth/pawn-item/"+created.ID, env.token, nil)
	if status != http.StatusOK {
		t.Errorf("expected 200 on delete, got %d", status)
	}
	status, _ = env.call(t, "DELETE", "/auth/pawn-item/"+created.ID, env.token, nil)
	if status != http.StatusNotFound {
		t.Errorf("expected 404 deleting twice, got %d", status)
	}

	status, _ = env.call(t, "GET", "/auth/pawn-item/missing", env.token, nil)
	if status != http.StatusNotFound {
		t.Errorf("expected 404 for missing item, got %d", status)
	}
}

func TestPawnItemValidation(t *testing.T) {
	env := setupTestServer(t)

	body := phoneBody("")
	status, resp := env.call(t, "POST", "/auth/pawn-item", env.token, body)
	if status != http.StatusBadRequest || resp.Message != "IMEI is required" {
		t.Errorf("expected missing IMEI error, got %d %q", status, resp.Message)
	}

	body = phoneBody("1")
	body["details"].(map[string]any)["storage"] = "3GB"
	status, resp = env.call(t, "POST", "/auth/pawn-item", env.token, body)
	if status != http.StatusBadRequest || resp.Message != "invalid Storage" {
		t.Errorf("expected invalid storage error, got %d %q", status, resp.Message)
	}

	body = phoneBody("1")
	body["customerNrc"] = "12/ABC(N)1"
	status, _ = env.call(t, "POST", "/auth/pawn-item", env.token, body)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for bad NRC, got %d", status)
	}

	body = phoneBody("1")
	body["amount"] = 0
	status, _ = env.call(t, "POST", "/auth/pawn-item", env.token, body)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for zero amount, got %d", status)
	}
}

func TestSignUpFlow(t *testing.T) {
	env := setupTestServer(t)
	email := "staff@lombard.test"

	status, _ := env.call(t, "POST", "/auth/user/send-otp", "", map[string]string{"email": "admin@lombard.test"})
	if status != http.StatusConflict {
		t.Errorf("expected 409 for registered email, got %d", status)
	}

	status, _ = env.call(t, "POST", "/auth/user/send-otp", "", map[string]string{"email": email})
	if status != http.StatusOK {
		t.Fatalf("expected 200 from send-otp, got %d", status)
	}
	code := env.mailer.code(email, store.PurposeSignup)
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}

	signUp := map[string]string{"name": "Staff", "email": email, "password": "password1"}
	status, _ = env.call(t, "POST", "/auth/user/sign-up", "", signUp)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 before verification, got %d", status)
	}

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	status, _ = env.call(t, "POST", "/auth/user/verify-otp", "", map[string]string{"email": email, "otp": wrong})
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for wrong code, got %d", status)
	}

	status, _ = env.call(t, "POST", "/auth/user/verify-otp", "", map[string]string{"email": email, "otp": code})
	if status != http.StatusOK {
		t.Fatalf("expected 200 from verify-otp, got %d", status)
	}

	status, resp := env.call(t, "POST", "/auth/user/sign-up", "", signUp)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 from sign-up, got %d %s", status, resp.Message)
	}
	var data LoginData
	json.Unmarshal(resp.Data, &data)
	if data.Token == "" || data.User.Role != model.RoleStaff {
		t.Errorf("unexpected sign-up data %+v", data)
	}

	status, resp = env.call(t, "GET", "/auth/user/profile/getProfileData", data.Token, nil)
	var profile ProfileData
	json.Unmarshal(resp.Data, &profile)
	if status != http.StatusOK || profile.User.Email != email || profile.Profile.Name != "Staff" {
		t.Errorf("unexpected profile data %d %+v", status, profile)
	}
}

func TestForgotPasswordFlow(t *testing.T) {
	env := setupTestServer(t)
	email := "admin@lombard.test"

	status, _ := env.call(t, "POST", "/auth/user/forgot-password", "", map[string]string{"email": "nobody@lombard.test"})
	if status != http.StatusOK {
		t.Errorf("expected 200 for unknown account, got %d", status)
	}
	if env.mailer.code("nobody@lombard.test", store.PurposeReset) != "" {
		t.Error("no code should be sent for unknown account")
	}

	status, _ = env.call(t, "POST", "/auth/user/forgot-password", "", map[string]string{"email": email})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	code := env.mailer.code(email, store.PurposeReset)

	status, resp := env.call(t, "POST", "/auth/user/verify-otp", "", map[string]string{
		"email": email, "otp": code, "purpose": store.PurposeReset,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 from verify-otp, got %d %s", status, resp.Message)
	}
	var data map[string]string
	json.Unmarshal(resp.Data, &data)
	resetToken := data["resetToken"]
	if resetToken == "" {
		t.Fatal("expected reset token")
	}

	reset := map[string]string{"resetToken": resetToken, "password": "new-password"}
	status, _ = env.call(t, "POST", "/auth/user/reset-password", "", reset)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from reset-password, got %d", status)
	}
	status, _ = env.call(t, "POST", "/auth/user/reset-password", "", reset)
	if status != http.StatusBadRequest {
		t.Errorf("expected reset token to be single use, got %d", status)
	}

	status, _ = env.call(t, "POST", "/auth/user/login", "", map[string]string{"email": email, "password": "new-password"})
	if status != http.StatusOK {
		t.Errorf("expected login with new password, got %d", status)
	}
}

func TestOTPRateLimit(t *testing.T) {
	env := setupTestServerWith(t, NewOTPLimiter(1, 10, time.Hour))

	body := map[string]string{"email": "new@lombard.test"}
	status, _ := env.call(t, "POST", "/auth/user/send-otp", "", body)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	status, _ = env.call(t, "POST", "/auth/user/send-otp", "", body)
	if status != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", status)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	env := setupTestServer(t)

	status, _ := env.call(t, "POST", "/auth/user/logout", env.token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from logout, got %d", status)
	}

	status, resp := env.call(t, "GET", "/auth/pawn-item", env.token, nil)
	if status != http.StatusUnauthorized || resp.Message != "Token revoked" {
		t.Errorf("expected revoked token, got %d %q", status, resp.Message)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	env := setupTestServer(t)

	status, _ := env.call(t, "GET", "/auth/pawn-item", "", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", status)
	}
	status, _ = env.call(t, "GET", "/auth/pawn-item", "garbage", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 for garbage token, got %d", status)
	}
}

func TestRoleBasedAccess(t *testing.T) {
	env := setupTestServer(t)

	ctx := context.Background()
	hash, _ := auth.HashPassword("password")
	user, _ := store.CreateUser(ctx, env.db, "Staff", "staff@lombard.test", hash, model.RoleStaff)
	staffToken, _ := auth.GenerateToken(testJWTSecret, user.ID, user.Email, user.Name, model.RoleStaff)

	status, resp := env.call(t, "POST", "/auth/pawn-item", staffToken, phoneBody("42"))
	if status != http.StatusCreated {
		t.Fatalf("staff should create items, got %d %s", status, resp.Message)
	}
	var item model.PawnItem
	json.Unmarshal(resp.Data, &item)

	status, _ = env.call(t, "DELETE", "/auth/pawn-item/"+item.ID, staffToken, nil)
	if status != http.StatusForbidden {
		t.Errorf("expected 403 for staff deleting item, got %d", status)
	}
}

func TestProfileAndPicture(t *testing.T) {
	env := setupTestServer(t)

	status, resp := env.call(t, "PUT", "/profile", env.token, map[string]string{
		"name": "Daw Aye", "nrc": "12/oukama(n)123456", "phone": "09 123 456 789",
		"dob": "1990-05-01", "gender": model.GenderFemale,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 from profile update, got %d %s", status, resp.Message)
	}
	var p model.Profile
	json.Unmarshal(resp.Data, &p)
	if p.Name != "Daw Aye" || p.NRC != "12/OUKAMA(N)123456" || p.Phone != "09123456789" {
		t.Errorf("unexpected profile %+v", p)
	}

	status, _ = env.call(t, "PUT", "/profile", env.token, map[string]string{"name": "X", "phone": "123"})
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for bad phone, got %d", status)
	}

	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	img.Set(1, 1, color.RGBA{255, 0, 0, 255})
	var pic bytes.Buffer
	png.Encode(&pic, img)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("picture", "me.png")
	part.Write(pic.Bytes())
	mw.Close()

	req, _ := http.NewRequest("POST", env.server.URL+Prefix+"/profile/upload-picture", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+env.token)
	httpResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from upload, got %d", httpResp.StatusCode)
	}

	req, _ = http.NewRequest("GET", env.server.URL+Prefix+"/profile/picture", nil)
	req.Header.Set("Authorization", "Bearer "+env.token)
	httpResp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("picture: %v", err)
	}
	httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK || httpResp.Header.Get("Content-Type") != "image/jpeg" {
		t.Errorf("expected jpeg picture, got %d %s", httpResp.StatusCode, httpResp.Header.Get("Content-Type"))
	}

	status, resp = env.call(t, "GET", "/profile", env.token, nil)
	json.Unmarshal(resp.Data, &p)
	if status != http.StatusOK || !p.HasPicture {
		t.Errorf("expected profile with picture, got %d %+v", status, p)
	}
}

func TestStatsAndHealth(t *testing.T) {
	env := setupTestServer(t)
	env.call(t, "POST", "/auth/pawn-item", env.token, phoneBody("1"))

	status, resp := env.call(t, "GET", "/reports/stats", env.token, nil)
	var stats store.PawnStats
	json.Unmarshal(resp.Data, &stats)
	if status != http.StatusOK || stats.Total != 1 || stats.ByCategory[model.CategoryPhone] != 1 {
		t.Errorf("unexpected stats %d %+v", status, stats)
	}

	httpResp, err := http.Get(env.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from healthz, got %d", httpResp.StatusCode)
	}
}
