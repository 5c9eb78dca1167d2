package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neurafeed/neurafeed/app/ai"
	"github.com/neurafeed/neurafeed/app/database"
	"github.com/neurafeed/neurafeed/app/feed"
	"github.com/neurafeed/neurafeed/app/interest"
	"github.com/neurafeed/neurafeed/app/notify"
)

const testFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
	<title>Example Feed</title>
	<link>https://example.com</link>
	<description>An example feed</description>
	<item>
		<title>Hello</title>
		<link>https://example.com/hello</link>
		<description>Hello item</description>
	</item>
</channel>
</rss>`

type apiEnv struct {
	router      *gin.Engine
	userRepo    database.UserRepository
	sourceRepo  database.SourceRepository
	articleRepo database.ArticleRepository

	aiCalls atomic.Int32
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	env := &apiEnv{
		userRepo:    database.NewUserRepository(db),
		sourceRepo:  database.NewSourceRepository(db),
		articleRepo: database.NewArticleRepository(db),
	}

	aiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.aiCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"content":"{\"summary\":\"Generated summary.\",\"keywords\":[\"golang\",\"testing\"]}"}}]}`)
	}))
	t.Cleanup(aiServer.Close)

	botServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(botServer.Close)

	client := &http.Client{Timeout: 5 * time.Second}
	engine := ai.NewEngine(
		ai.NewClient(client, aiServer.URL, "test-key", "test-model"),
		ai.NewRateGate(0, 100),
		10, 4000,
	)
	notifier := notify.NewNotifierWithBase(client, "bot-token", botServer.URL)
	tracker := interest.NewTracker(env.userRepo)

	handler := NewHandler(
		env.userRepo, env.sourceRepo, env.articleRepo,
		feed.NewFetcher(client, "test-agent"),
		feed.NewParser(),
		engine, tracker, notifier,
		NewAuth("test-secret"),
		HandlerOptions{FetchTimeout: 5 * time.Second, Version: "test"},
	)
	env.router = NewServer(handler)
	return env
}

func (env *apiEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return body
}

func (env *apiEnv) signup(t *testing.T, email string) string {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/users/signup", "", gin.H{
		"email": email, "password": "password123", "name": "Test User",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Signup failed with status %d: %s", w.Code, w.Body.String())
	}
	return decodeBody(t, w)["token"].(string)
}

func (env *apiEnv) seedArticle(t *testing.T, token string, article *database.Article) *database.Article {
	t.Helper()

	// Resolve the owner from the token the way handlers do
	userID, err := NewAuth("test-secret").VerifyToken(token)
	if err != nil {
		t.Fatalf("Failed to resolve user from token: %v", err)
	}

	source := &database.Source{UserID: userID, FeedURL: "https://example.com/" + article.Title, Title: "Seed"}
	if err := env.sourceRepo.CreateSource(source); err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}

	article.UserID = userID
	article.SourceID = source.ID
	if article.Keywords == nil {
		article.Keywords = []string{}
	}
	if article.PublishedAt.IsZero() {
		article.PublishedAt = time.Now().UTC()
	}
	if err := env.articleRepo.CreateArticle(article); err != nil {
		t.Fatalf("Failed to create article: %v", err)
	}
	return article
}

func TestSignupAndLogin(t *testing.T) {
	env := newAPIEnv(t)

	token := env.signup(t, "reader@example.com")
	if token == "" {
		t.Fatal("Expected a token from signup")
	}

	w := env.do(t, http.MethodPost, "/api/users/login", "", gin.H{
		"email": "reader@example.com", "password": "password123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Login failed with status %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/api/users/login", "", gin.H{
		"email": "reader@example.com", "password": "wrong-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Wrong password must be rejected, got %d", w.Code)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	env := newAPIEnv(t)
	env.signup(t, "reader@example.com")

	w := env.do(t, http.MethodPost, "/api/users/signup", "", gin.H{
		"email": "reader@example.com", "password": "password123", "name": "Other",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("Duplicate email must return 409, got %d", w.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newAPIEnv(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/users/me"},
		{http.MethodGet, "/api/feeds"},
		{http.MethodGet, "/api/articles"},
	} {
		w := env.do(t, route.method, route.path, "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token: expected 401, got %d", route.method, route.path, w.Code)
		}
	}

	w := env.do(t, http.MethodGet, "/api/users/me", "not-a-valid-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Garbage token: expected 401, got %d", w.Code)
	}
}

func TestProfileAndSettings(t *testing.T) {
	env := newAPIEnv(t)
	token := env.signup(t, "reader@example.com")

	w := env.do(t, http.MethodGet, "/api/users/me", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Profile failed with status %d", w.Code)
	}
	body := decodeBody(t, w)
	user := body["user"].(map[string]any)
	if user["notification_preference"] != database.NotifyDisabled {
		t.Errorf("New accounts must default to disabled notifications, got %v", user["notification_preference"])
	}

	w = env.do(t, http.MethodPatch, "/api/users/settings", token, gin.H{
		"notification_preference": "immediate",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Settings update failed with status %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPatch, "/api/users/settings", token, gin.H{
		"notification_preference": "hourly",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Unknown preference must be rejected, got %d", w.Code)
	}
}

func TestCreateFeed(t *testing.T) {
	feedServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testFeedXML))
	}))
	t.Cleanup(feedServer.Close)

	env := newAPIEnv(t)
	token := env.signup(t, "reader@example.com")

	w := env.do(t, http.MethodPost, "/api/feeds", token, gin.H{"url": feedServer.URL + "/feed.xml"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Feed creation failed with status %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["title"] != "Example Feed" {
		t.Errorf("Expected feed title from the document, got %v", body["title"])
	}

	// Same URL again for the same user
	w = env.do(t, http.MethodPost, "/api/feeds", token, gin.H{"url": feedServer.URL + "/feed.xml"})
	if w.Code != http.StatusConflict {
		t.Errorf("Duplicate subscription must return 409, got %d", w.Code)
	}

	// Another user may subscribe to the same URL
	otherToken := env.signup(t, "other@example.com")
	w = env.do(t, http.MethodPost, "/api/feeds", otherToken, gin.H{"url": feedServer.URL + "/feed.xml"})
	if w.Code != http.StatusCreated {
		t.Errorf("Second owner must be able to subscribe, got %d", w.Code)
	}
}

func TestCreateFeedRejectsInvalid(t *testing.T) {
	notAFeed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>not a feed</body></html>"))
	}))
	t.Cleanup(notAFeed.Close)

	env := newAPIEnv(t)
	token := env.signup(t, "reader@example.com")

	w := env.do(t, http.MethodPost, "/api/feeds", token, gin.H{"url": notAFeed.URL})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Non-feed URL must return 400, got %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/feeds", token, gin.H{"url": "not a url"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Malformed URL must return 400, got %d", w.Code)
	}
}

func TestDeleteFeedOwnerScoped(t *testing.T) {
	feedServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testFeedXML))
	}))
	t.Cleanup(feedServer.Close)

	env := newAPIEnv(t)
	owner := env.signup(t, "owner@example.com")
	stranger := env.signup(t, "stranger@example.com")

	w := env.do(t, http.MethodPost, "/api/feeds", owner, gin.H{"url": feedServer.URL})
	sourceID := decodeBody(t, w)["id"].(string)

	if w := env.do(t, http.MethodDelete, "/api/feeds/"+sourceID, stranger, nil); w.Code != http.StatusNotFound {
		t.Errorf("Foreign delete must return 404, got %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/api/feeds/"+sourceID, owner, nil); w.Code != http.StatusNoContent {
		t.Errorf("Owner delete must return 204, got %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/api/feeds/"+sourceID, owner, nil); w.Code != http.StatusNotFound {
		t.Errorf("Second delete must return 404, got %d", w.Code)
	}
}

func TestUpdateFeedCategory(t *testing.T) {
	feedServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testFeedXML))
	}))
	t.Cleanup(feedServer.Close)

	env := newAPIEnv(t)
	owner := env.signup(t, "owner@example.com")
	stranger := env.signup(t, "stranger@example.com")

	w := env.do(t, http.MethodPost, "/api/feeds", owner, gin.H{"url": feedServer.URL})
	sourceID := decodeBody(t, w)["id"].(string)

	w = env.do(t, http.MethodPatch, "/api/feeds/"+sourceID, owner, gin.H{"category": "Tech"})
	if w.Code != http.StatusOK {
		t.Fatalf("Category update failed with status %d: %s", w.Code, w.Body.String())
	}
	if decodeBody(t, w)["category"] != "Tech" {
		t.Errorf("Expected updated category, got %s", w.Body.String())
	}

	if w := env.do(t, http.MethodPatch, "/api/feeds/"+sourceID, stranger, gin.H{"category": "Hijack"}); w.Code != http.StatusNotFound {
		t.Errorf("Foreign category update must return 404, got %d", w.Code)
	}
}

func TestListArticlesFilterAndPagination(t *testing.T) {
	env := newAPIEnv(t)
	token := env.signup(t, "reader@example.com")

	for i := 0; i < 3; i++ {
		env.seedArticle(t, token, &database.Article{
			Title: fmt.Sprintf("a%d", i),
			Link:  fmt.Sprintf("https://example.com/a%d", i),
		})
	}
	read := env.seedArticle(t, token, &database.Article{
		Title: "read-one", Link: "https://example.com/read",
	})
	if err := env.articleRepo.MarkRead(read.ID, read.UserID); err != nil {
		t.Fatalf("MarkRead() error: %v", err)
	}

	w := env.do(t, http.MethodGet, "/api/articles?is_read=false", token, nil)
	body := decodeBody(t, w)
	if int(body["total"].(float64)) != 3 {
		t.Errorf("Expected 3 unread articles, got %v", body["total"])
	}

	w = env.do(t, http.MethodGet, "/api/articles?page=1&limit=2", token, nil)
	body = decodeBody(t, w)
	if len(body["articles"].([]any)) != 2 {
		t.Errorf("Expected page of 2, got %d", len(body["articles"].([]any)))
	}
	if int(body["total"].(float64)) != 4 {
		t.Errorf("Expected total 4, got %v", body["total"])
	}

	if w := env.do(t, http.MethodGet, "/api/articles?is_read=maybe", token, nil); w.Code != http.StatusBadRequest {
		t.Errorf("Invalid is_read must return 400, got %d", w.Code)
	}
}

func TestGetArticleOwnerScoped(t *testing.T) {
	env := newAPIEnv(t)
	owner := env.signup(t, "owner@example.com")
	stranger := env.signup(t, "stranger@example.com")

	article := env.seedArticle(t, owner, &database.Article{
		Title: "mine", Link: "https://example.com/mine", Content: "body",
	})

	if w := env.do(t, http.MethodGet, "/api/articles/"+article.ID, owner, nil); w.Code != http.StatusOK {
		t.Errorf("Owner read must succeed, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/articles/"+article.ID, stranger, nil); w.Code != http.StatusNotFound {
		t.Errorf("Foreign read must return 404, got %d", w.Code)
	}
}

func TestMarkReadRecordsInterestOnce(t *testing.T) {
	env := newAPIEnv(t)
	token := env.signup(t, "reader@example.com")

	article := env.seedArticle(t, token, &database.Article{
		Title:    "enriched",
		Link:     "https://example.com/enriched",
		Keywords: []string{"golang", "compilers"},
	})

	for i := 0; i < 3; i++ {
		if w := env.do(t, http.MethodPatch, "/api/articles/"+article.ID+"/read", token, nil); w.Code != http.StatusOK {
			t.Fatalf("Mark read failed with status %d", w.Code)
		}
	}

	profile, err := env.userRepo.GetKeywordProfile(article.UserID)
	if err != nil {
		t.Fatalf("GetKeywordProfile() error: %v", err)
	}
	if profile["golang"] != 1 || profile["compilers"] != 1 {
		t.Errorf("Repeated mark-read must count interest once, got %v", profile)
	}
}

func TestToggleSaved(t *testing.T) {
	env := newAPIEnv(t)
	token := env.signup(t, "reader@example.com")
	article := env.seedArticle(t, token, &database.Article{
		Title: "keep", Link: "https://example.com/keep",
	})

	w := env.do(t, http.MethodPatch, "/api/articles/"+article.ID+"/save", token, gin.H{"saved": true})
	if w.Code != http.StatusOK {
		t.Fatalf("Save failed with status %d: %s", w.Code, w.Body.String())
	}
	if decodeBody(t, w)["is_saved"] != true {
		t.Error("Expected is_saved true after save")
	}

	w = env.do(t, http.MethodPatch, "/api/articles/"+article.ID+"/save", token, gin.H{"saved": false})
	if decodeBody(t, w)["is_saved"] != false {
		t.Error("Expected is_saved false after unsave")
	}
}

func TestSummarizeIsIdempotent(t *testing.T) {
	env := newAPIEnv(t)
	token := env.signup(t, "reader@example.com")
	article := env.seedArticle(t, token, &database.Article{
		Title:   "long",
		Link:    "https://example.com/long",
		Content: "This article has plenty of content for the summarizer to work with.",
	})

	w := env.do(t, http.MethodPost, "/api/articles/"+article.ID+"/summarize", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Summarize failed with status %d: %s", w.Code, w.Body.String())
	}
	if decodeBody(t, w)["summary"] != "Generated summary." {
		t.Errorf("Unexpected summary in response: %s", w.Body.String())
	}

	// Second call returns the stored summary without touching the service
	w = env.do(t, http.MethodPost, "/api/articles/"+article.ID+"/summarize", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Repeat summarize failed with status %d", w.Code)
	}
	if got := env.aiCalls.Load(); got != 1 {
		t.Errorf("Expected exactly 1 service call across repeats, got %d", got)
	}

	stored, err := env.articleRepo.GetArticle(article.ID, article.UserID)
	if err != nil {
		t.Fatalf("GetArticle() error: %v", err)
	}
	if !stored.HasSummary() || len(stored.Keywords) != 2 {
		t.Errorf("Expected persisted summary and keywords, got %+v", stored)
	}
}

func TestSummarizeRefusalReturns503(t *testing.T) {
	env := newAPIEnv(t)
	token := env.signup(t, "reader@example.com")

	// Content below the engine's minimum length is refused without a call
	article := env.seedArticle(t, token, &database.Article{
		Title: "tiny", Link: "https://example.com/tiny", Content: "short",
	})

	w := env.do(t, http.MethodPost, "/api/articles/"+article.ID+"/summarize", token, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Refused enrichment must return 503, got %d", w.Code)
	}
	if env.aiCalls.Load() != 0 {
		t.Errorf("Refusal must not reach the service, got %d calls", env.aiCalls.Load())
	}
}

func TestTelegramLinkFlow(t *testing.T) {
	env := newAPIEnv(t)
	token := env.signup(t, "reader@example.com")

	w := env.do(t, http.MethodPost, "/api/users/telegram/token", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Token issue failed with status %d: %s", w.Code, w.Body.String())
	}
	linkToken := decodeBody(t, w)["token"].(string)
	if len(linkToken) != 32 {
		t.Errorf("Expected 32-char hex token, got %q", linkToken)
	}

	// Repeated request reuses the unexpired token
	w = env.do(t, http.MethodPost, "/api/users/telegram/token", token, nil)
	if decodeBody(t, w)["token"].(string) != linkToken {
		t.Error("Unexpired token must be reused")
	}

	// Bot delivers /connect with the token
	w = env.do(t, http.MethodPost, "/api/telegram/webhook", "", gin.H{
		"message": gin.H{"text": "/connect " + linkToken, "chat": gin.H{"id": 4242}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Webhook failed with status %d", w.Code)
	}

	profile := env.do(t, http.MethodGet, "/api/users/me", token, nil)
	user := decodeBody(t, profile)["user"].(map[string]any)
	if user["telegram_connected"] != true {
		t.Error("Expected account to be linked after /connect")
	}

	// The token is single use
	w = env.do(t, http.MethodPost, "/api/telegram/webhook", "", gin.H{
		"message": gin.H{"text": "/connect " + linkToken, "chat": gin.H{"id": 9999}},
	})
	if w.Code != http.StatusOK {
		t.Error("Webhook must always answer 200 to Telegram")
	}

	// Once connected, issuing another token is refused
	w = env.do(t, http.MethodPost, "/api/users/telegram/token", token, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("Connected account must not get new link tokens, got %d", w.Code)
	}
}

func TestWebhookInvalidToken(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodPost, "/api/telegram/webhook", "", gin.H{
		"message": gin.H{"text": "/connect nonsense", "chat": gin.H{"id": 1}},
	})
	if w.Code != http.StatusOK {
		t.Errorf("Webhook must answer 200 even for invalid tokens, got %d", w.Code)
	}
}

func TestRecommendedFallsBackToRecent(t *testing.T) {
	env := newAPIEnv(t)
	token := env.signup(t, "reader@example.com")

	env.seedArticle(t, token, &database.Article{
		Title: "plain", Link: "https://example.com/plain",
	})

	w := env.do(t, http.MethodGet, "/api/articles/recommended", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Recommended failed with status %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if len(body["articles"].([]any)) != 1 {
		t.Errorf("Empty profile must fall back to recent articles, got %v", body["articles"])
	}
}

func TestRecommendedUsesProfile(t *testing.T) {
	env := newAPIEnv(t)
	token := env.signup(t, "reader@example.com")

	match := env.seedArticle(t, token, &database.Article{
		Title: "match", Link: "https://example.com/match", Keywords: []string{"golang"},
	})
	env.seedArticle(t, token, &database.Article{
		Title: "other", Link: "https://example.com/other", Keywords: []string{"cooking"},
	})

	if err := env.userRepo.IncrementKeywords(match.UserID, []string{"golang"}); err != nil {
		t.Fatalf("IncrementKeywords() error: %v", err)
	}

	w := env.do(t, http.MethodGet, "/api/articles/recommended", token, nil)
	body := decodeBody(t, w)
	articles := body["articles"].([]any)
	if len(articles) != 1 {
		t.Fatalf("Expected 1 profile match, got %d", len(articles))
	}
	if articles[0].(map[string]any)["title"] != "match" {
		t.Errorf("Expected the keyword match, got %v", articles[0])
	}
}

func TestHealth(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Health failed with status %d", w.Code)
	}
	if decodeBody(t, w)["status"] != "ok" {
		t.Errorf("Expected ok status, got %s", w.Body.String())
	}
}
