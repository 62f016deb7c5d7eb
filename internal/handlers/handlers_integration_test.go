package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"regexp"
	"strings"
	"testing"

	"catalog/internal/handlers"
	"catalog/internal/middleware"
	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/services"
	"catalog/pkg/googleoauth"
	"catalog/web"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testClientID = "test-client-id"

// stubProvider is a deterministic identity provider: any code except
// "bad-code" exchanges successfully for the configured subject.
type stubProvider struct {
	subject   string
	revokeErr error
	revokes   int
}

func (p *stubProvider) ClientID() string {
	return testClientID
}

func (p *stubProvider) Exchange(_ context.Context, code string) (*googleoauth.Token, error) {
	if code == "bad-code" {
		return nil, errors.New("invalid_grant")
	}
	return &googleoauth.Token{AccessToken: "access-" + code, SubjectID: p.subject}, nil
}

func (p *stubProvider) TokenInfo(_ context.Context, _ string) (*googleoauth.TokenInfo, error) {
	return &googleoauth.TokenInfo{IssuedTo: testClientID, UserID: p.subject, Email: "user@example.com"}, nil
}

func (p *stubProvider) UserInfo(_ context.Context, _ string) (*googleoauth.Profile, error) {
	return &googleoauth.Profile{
		Name:    "Test User",
		Picture: "https://example.com/avatar.png",
		Email:   "user@example.com",
	}, nil
}

func (p *stubProvider) Revoke(_ context.Context, _ string) error {
	p.revokes++
	return p.revokeErr
}

// testEnv bundles the app with direct repository access for seeding
// and asserting store state.
type testEnv struct {
	app          *fiber.App
	provider     *stubProvider
	userRepo     repositories.UserRepository
	categoryRepo repositories.CategoryRepository
	itemRepo     repositories.ItemRepository
}

// setupApp builds the full application over a private in-memory
// database, mirroring the wiring in main.
func setupApp(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&models.User{}, &models.Category{}, &models.Item{}))

	userRepo := repositories.NewGORMUserRepository(db)
	categoryRepo := repositories.NewGORMCategoryRepository(db)
	itemRepo := repositories.NewGORMItemRepository(db)

	provider := &stubProvider{subject: "subject-1"}

	catalogService := services.NewCatalogService(categoryRepo, itemRepo)
	authService := services.NewAuthService(provider, userRepo)

	store := fibersession.New(fibersession.Config{
		KeyLookup:      "cookie:catalog_session",
		CookieHTTPOnly: true,
	})

	engine, err := web.Engine()
	assert.NoError(t, err)

	app := fiber.New(fiber.Config{
		Views:       engine,
		ViewsLayout: web.Layout,
	})

	guard := middleware.LoginRequired(store)
	handlers.NewCatalogHandler(catalogService, store, testClientID).RegisterRoutes(app, guard)
	handlers.NewAuthHandler(authService, store).RegisterRoutes(app)

	return &testEnv{
		app:          app,
		provider:     provider,
		userRepo:     userRepo,
		categoryRepo: categoryRepo,
		itemRepo:     itemRepo,
	}
}

func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

var statePattern = regexp.MustCompile(`data-state="([^"]+)"`)

// get issues a GET carrying the given session cookies.
func (env *testEnv) get(t *testing.T, target string, cookies []*http.Cookie) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := env.app.Test(req, -1)
	assert.NoError(t, err)
	return resp
}

// postForm issues a form POST carrying the given session cookies.
func (env *testEnv) postForm(t *testing.T, target string, form url.Values, cookies []*http.Cookie) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := env.app.Test(req, -1)
	assert.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	resp.Body.Close()
	return string(body)
}

func decodeMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	var message string
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&message))
	resp.Body.Close()
	return message
}

// landing loads the landing page and returns the session cookies plus
// the anti-forgery token embedded in the sign-in widget.
func (env *testEnv) landing(t *testing.T) ([]*http.Cookie, string) {
	t.Helper()
	resp := env.get(t, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	cookies := resp.Cookies()
	assert.NotEmpty(t, cookies, "landing page should establish a session")

	body := readBody(t, resp)
	match := statePattern.FindStringSubmatch(body)
	assert.NotNil(t, match, "landing page should embed a state token")
	return cookies, match[1]
}

// login walks the full connect flow and returns authenticated session
// cookies.
func (env *testEnv) login(t *testing.T) []*http.Cookie {
	t.Helper()
	cookies, state := env.landing(t)

	req := httptest.NewRequest(http.MethodPost, "/gconnect?state="+url.QueryEscape(state), strings.NewReader("good-code"))
	req.Header.Set("Content-Type", "application/octet-stream")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := env.app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, services.MsgConnectSuccess, decodeMessage(t, resp))
	return cookies
}

func TestLandingPageListsCatalog(t *testing.T) {
	env := setupApp(t)

	category := &models.Category{Name: "Soccer", Description: "Ball sport", UserID: 1}
	assert.NoError(t, env.categoryRepo.Create(category))
	assert.NoError(t, env.itemRepo.Create(&models.Item{Name: "Ball", CategoryID: category.ID, UserID: 1}))

	resp := env.get(t, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "Soccer")
	assert.Contains(t, body, "Ball")
	// Anonymous visitors get the sign-in widget with the client id.
	assert.Contains(t, body, testClientID)
}

func TestMutatingRoutesRedirectAnonymous(t *testing.T) {
	env := setupApp(t)

	category := &models.Category{Name: "Soccer", UserID: 1}
	assert.NoError(t, env.categoryRepo.Create(category))
	item := &models.Item{Name: "Ball", CategoryID: category.ID, UserID: 1}
	assert.NoError(t, env.itemRepo.Create(item))

	routes := []string{
		"/newcategory",
		"/newitem",
		fmt.Sprintf("/category/%d/edit", category.ID),
		fmt.Sprintf("/category/%d/delete", category.ID),
		fmt.Sprintf("/item/%d/edit", item.ID),
		fmt.Sprintf("/item/%d/delete", item.ID),
	}
	for _, route := range routes {
		resp := env.get(t, route, nil)
		assert.Equal(t, http.StatusFound, resp.StatusCode, "GET %s", route)
		assert.Equal(t, "/", resp.Header.Get("Location"), "GET %s", route)
		resp.Body.Close()
	}

	// The store is untouched: an anonymous form POST never reaches the
	// handler either.
	resp := env.postForm(t, "/newcategory", url.Values{"name": {"Sneaky"}}, nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	resp.Body.Close()
	_, err := env.categoryRepo.GetByName("Sneaky")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestConnectRejectsForgedState(t *testing.T) {
	env := setupApp(t)
	cookies, _ := env.landing(t)

	req := httptest.NewRequest(http.MethodPost, "/gconnect?state=forged", strings.NewReader("good-code"))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := env.app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, services.MsgInvalidState, decodeMessage(t, resp))

	// The session stayed anonymous.
	resp = env.get(t, "/newcategory", cookies)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	resp.Body.Close()
}

func TestConnectRejectsBadCode(t *testing.T) {
	env := setupApp(t)
	cookies, state := env.landing(t)

	req := httptest.NewRequest(http.MethodPost, "/gconnect?state="+url.QueryEscape(state), strings.NewReader("bad-code"))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := env.app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, services.MsgExchangeFailed, decodeMessage(t, resp))
}

func TestLoginFlowPopulatesSessionAndUser(t *testing.T) {
	env := setupApp(t)
	cookies := env.login(t)

	// The first login inserted a local user for the (email, service)
	// pair.
	user, err := env.userRepo.GetByEmailAndService("user@example.com", services.ServiceName)
	assert.NoError(t, err)
	assert.NotZero(t, user.ID)

	// Pages now render the cached profile fields.
	resp := env.get(t, "/", cookies)
	body := readBody(t, resp)
	assert.Contains(t, body, "Test User")
	assert.Contains(t, body, "https://example.com/avatar.png")
}

func TestCategoryCreateAndDuplicate(t *testing.T) {
	env := setupApp(t)
	cookies := env.login(t)
	user, err := env.userRepo.GetByEmailAndService("user@example.com", services.ServiceName)
	assert.NoError(t, err)

	form := url.Values{"name": {"Soccer"}, "description": {"Ball sport"}}
	resp := env.postForm(t, "/newcategory", form, cookies)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	resp.Body.Close()

	category, err := env.categoryRepo.GetByName("Soccer")
	assert.NoError(t, err)
	assert.Equal(t, user.ID, category.UserID)
	assert.Equal(t, "Ball sport", category.Description)

	// Re-posting the same name re-renders the form with the error and
	// inserts nothing.
	resp = env.postForm(t, "/newcategory", form, cookies)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, services.MsgCategoryNameTaken)
	assert.Contains(t, body, "Ball sport") // entered values preserved

	categories, err := env.categoryRepo.GetAll()
	assert.NoError(t, err)
	assert.Len(t, categories, 1)
}

func TestCategoryNameLengthRejectedOnCreateAndEdit(t *testing.T) {
	env := setupApp(t)
	cookies := env.login(t)

	longName := strings.Repeat("x", 41)

	resp := env.postForm(t, "/newcategory", url.Values{"name": {longName}}, cookies)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), services.MsgCategoryNameTooLong)

	category := &models.Category{Name: "Soccer", UserID: 1}
	assert.NoError(t, env.categoryRepo.Create(category))

	resp = env.postForm(t, fmt.Sprintf("/category/%d/edit", category.ID), url.Values{"name": {longName}}, cookies)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), services.MsgCategoryNameTooLong)

	// Nothing persisted either way.
	unchanged, err := env.categoryRepo.GetByID(category.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Soccer", unchanged.Name)
	categories, err := env.categoryRepo.GetAll()
	assert.NoError(t, err)
	assert.Len(t, categories, 1)
}

func TestCategoryEditRedirectsToCategoryPage(t *testing.T) {
	env := setupApp(t)
	cookies := env.login(t)

	category := &models.Category{Name: "Soccer", UserID: 1}
	assert.NoError(t, env.categoryRepo.Create(category))

	form := url.Values{"name": {"Football"}, "description": {"Renamed"}}
	resp := env.postForm(t, fmt.Sprintf("/category/%d/edit", category.ID), form, cookies)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("/category/%d", category.ID), resp.Header.Get("Location"))
	resp.Body.Close()

	updated, err := env.categoryRepo.GetByID(category.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Football", updated.Name)
	assert.Equal(t, "Renamed", updated.Description)
}

func TestUnknownCategoryRedirects(t *testing.T) {
	env := setupApp(t)

	for _, target := range []string{"/category/999", "/category/999/JSON", "/category/abc"} {
		resp := env.get(t, target, nil)
		assert.Equal(t, http.StatusFound, resp.StatusCode, "GET %s", target)
		assert.Equal(t, "/", resp.Header.Get("Location"), "GET %s", target)
		resp.Body.Close()
	}
}

func TestCategoryJSONShape(t *testing.T) {
	env := setupApp(t)

	category := &models.Category{Name: "Soccer", Description: "Ball sport", UserID: 1}
	assert.NoError(t, env.categoryRepo.Create(category))

	resp := env.get(t, fmt.Sprintf("/category/%d/JSON", category.ID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload models.CategoryJSON
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()
	assert.Equal(t, category.ID, payload.ID)
	assert.Equal(t, "Soccer", payload.Name)
	assert.Equal(t, "Ball sport", payload.Description)
}

func TestItemCreateValidationAndScoping(t *testing.T) {
	env := setupApp(t)
	cookies := env.login(t)

	soccer := &models.Category{Name: "Soccer", UserID: 1}
	tennis := &models.Category{Name: "Tennis", UserID: 1}
	assert.NoError(t, env.categoryRepo.Create(soccer))
	assert.NoError(t, env.categoryRepo.Create(tennis))

	// Missing category selection.
	resp := env.postForm(t, "/newitem", url.Values{"name": {"Ball"}}, cookies)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), services.MsgCategoryRequired)

	// Unknown category id.
	resp = env.postForm(t, "/newitem", url.Values{"name": {"Ball"}, "category": {"999"}}, cookies)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), services.MsgCategoryMissing)

	// Valid create redirects to the owning category.
	form := url.Values{"name": {"Ball"}, "description": {"Round"}, "category": {fmt.Sprint(soccer.ID)}}
	resp = env.postForm(t, "/newitem", form, cookies)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("/category/%d", soccer.ID), resp.Header.Get("Location"))
	resp.Body.Close()

	// Duplicate within the category is rejected.
	resp = env.postForm(t, "/newitem", form, cookies)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), services.MsgItemNameTaken)

	// Same name in a different category is legal.
	form.Set("category", fmt.Sprint(tennis.ID))
	resp = env.postForm(t, "/newitem", form, cookies)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	resp.Body.Close()

	soccerItems, err := env.itemRepo.GetByCategory(soccer.ID)
	assert.NoError(t, err)
	assert.Len(t, soccerItems, 1)
	tennisItems, err := env.itemRepo.GetByCategory(tennis.ID)
	assert.NoError(t, err)
	assert.Len(t, tennisItems, 1)
}

func TestItemJSONNestsCategory(t *testing.T) {
	env := setupApp(t)

	category := &models.Category{Name: "Soccer", Description: "Ball sport", UserID: 1}
	assert.NoError(t, env.categoryRepo.Create(category))
	item := &models.Item{Name: "Ball", Description: "Round", CategoryID: category.ID, UserID: 1}
	assert.NoError(t, env.itemRepo.Create(item))

	resp := env.get(t, fmt.Sprintf("/item/%d/JSON", item.ID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload models.ItemJSON
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()
	assert.Equal(t, item.ID, payload.ID)
	assert.Equal(t, "Ball", payload.Name)
	assert.Equal(t, category.ID, payload.Category.ID)
	assert.Equal(t, "Soccer", payload.Category.Name)
}

func TestDeleteCategoryCascades(t *testing.T) {
	env := setupApp(t)
	cookies := env.login(t)

	category := &models.Category{Name: "Soccer", UserID: 1}
	assert.NoError(t, env.categoryRepo.Create(category))
	ball := &models.Item{Name: "Ball", CategoryID: category.ID, UserID: 1}
	jersey := &models.Item{Name: "Jersey", CategoryID: category.ID, UserID: 1}
	assert.NoError(t, env.itemRepo.Create(ball))
	assert.NoError(t, env.itemRepo.Create(jersey))

	resp := env.postForm(t, fmt.Sprintf("/category/%d/delete", category.ID), nil, cookies)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	resp.Body.Close()

	_, err := env.categoryRepo.GetByID(category.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = env.itemRepo.GetByID(ball.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = env.itemRepo.GetByID(jersey.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestDeleteItemRedirectsToCategory(t *testing.T) {
	env := setupApp(t)
	cookies := env.login(t)

	category := &models.Category{Name: "Soccer", UserID: 1}
	assert.NoError(t, env.categoryRepo.Create(category))
	item := &models.Item{Name: "Ball", CategoryID: category.ID, UserID: 1}
	assert.NoError(t, env.itemRepo.Create(item))

	resp := env.postForm(t, fmt.Sprintf("/item/%d/delete", item.ID), nil, cookies)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("/category/%d", category.ID), resp.Header.Get("Location"))
	resp.Body.Close()

	_, err := env.itemRepo.GetByID(item.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestDisconnectFlow(t *testing.T) {
	env := setupApp(t)
	cookies := env.login(t)

	resp := env.get(t, "/gdisconnect", cookies)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, services.MsgDisconnected, decodeMessage(t, resp))
	assert.Equal(t, 1, env.provider.revokes)

	// A second disconnect is a clean 401, not a second revoke.
	resp = env.get(t, "/gdisconnect", cookies)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, services.MsgNotConnected, decodeMessage(t, resp))
	assert.Equal(t, 1, env.provider.revokes)

	// And mutating routes are gated again.
	resp = env.get(t, "/newcategory", cookies)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	resp.Body.Close()
}

func TestDisconnectRevokeFailureKeepsSession(t *testing.T) {
	env := setupApp(t)
	cookies := env.login(t)
	env.provider.revokeErr = errors.New("revoke endpoint returned status 400")

	resp := env.get(t, "/gdisconnect", cookies)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, services.MsgRevokeFailed, decodeMessage(t, resp))

	// The session survives a failed revoke.
	resp = env.get(t, "/newcategory", cookies)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
