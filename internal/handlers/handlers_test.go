package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mroshb/couple_journal/internal/config"
	"github.com/mroshb/couple_journal/internal/dbtest"
	"github.com/mroshb/couple_journal/internal/middleware"
	"github.com/mroshb/couple_journal/internal/models"
	"github.com/mroshb/couple_journal/internal/realtime"
	"github.com/mroshb/couple_journal/internal/repositories"
	"github.com/mroshb/couple_journal/internal/security"
	"github.com/mroshb/couple_journal/internal/services"
	"github.com/mroshb/couple_journal/pkg/errors"
	"github.com/mroshb/couple_journal/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "handler_test_secret_at_least_32_chars"
	testIssuer = "journal-test"
)

type apiEnv struct {
	router  *gin.Engine
	manager *HandlerManager
	store   *repositories.Store
}

func newAPI(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.OpenTestDB(t)
	store := repositories.NewStore(db)
	bus := realtime.NewLocalBus()
	t.Cleanup(func() { bus.Close() })
	clock := utils.NewManualClock(time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC))

	cfg := &config.Config{JWTSecret: testSecret, JWTIssuer: testIssuer, AppEnv: "test"}
	couples := services.NewCoupleService(store, bus, clock)
	m := NewHandlerManager(
		cfg,
		services.NewUserService(store, bus),
		couples,
		services.NewInvitationService(store, couples, bus, clock, models.DefaultInvitationTTL),
		services.NewSharingService(store, bus, clock),
		services.NewMemoryService(store, bus, clock),
		realtime.NewWatcher(db, bus),
		clock,
		middleware.NewRateLimiter(1000, 1000, time.Minute),
	)
	return &apiEnv{router: m.Router(), manager: m, store: store}
}

func token(t *testing.T, name string) string {
	t.Helper()
	id := "user-" + strings.ToLower(name)
	tok, err := security.GenerateJWT(id, strings.ToLower(name)+"@example.com", name, testIssuer, testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *apiEnv) do(t *testing.T, method, path, tok string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), "body: %s", w.Body.String())
}

func TestPairingFlow(t *testing.T) {
	e := newAPI(t)
	alice, bob := token(t, "Alice"), token(t, "Bob")

	// Both users must have signed in once before they can be invited.
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/v1/me", bob, nil).Code)

	w := e.do(t, http.MethodPost, "/api/v1/invitations", alice, gin.H{
		"receiverEmail": "BOB@example.com",
		"message":       "Let's keep a journal",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var inv models.CoupleInvitation
	decode(t, w, &inv)
	assert.Equal(t, "user-bob", inv.ReceiverID)

	w = e.do(t, http.MethodGet, "/api/v1/invitations/received", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var received struct {
		Invitations []models.InvitationView `json:"invitations"`
	}
	decode(t, w, &received)
	require.Len(t, received.Invitations, 1)
	assert.True(t, received.Invitations[0].CanRespond)

	w = e.do(t, http.MethodPost, "/api/v1/invitations/"+inv.ID+"/accept", bob, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var couple models.Couple
	decode(t, w, &couple)
	assert.Equal(t, "user-alice", couple.User1ID)
	assert.Equal(t, "user-bob", couple.User2ID)

	w = e.do(t, http.MethodGet, "/api/v1/couple", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var current coupleResponse
	decode(t, w, &current)
	require.NotNil(t, current.Couple)
	require.NotNil(t, current.Partner)
	assert.Equal(t, "Bob", current.Partner.Name)

	var me models.User
	decode(t, e.do(t, http.MethodGet, "/api/v1/me", bob, nil), &me)
	assert.Equal(t, models.UserCoupleStatusPaired, me.CoupleStatus)
	require.NotNil(t, me.PartnerID)
	assert.Equal(t, "user-alice", *me.PartnerID)

	w = e.do(t, http.MethodPost, "/api/v1/couples/"+couple.ID+"/disconnect", bob, nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	decode(t, e.do(t, http.MethodGet, "/api/v1/couple", alice, nil), &current)
	assert.Nil(t, current.Couple)

	var history struct {
		Couples []models.Couple `json:"couples"`
	}
	decode(t, e.do(t, http.MethodGet, "/api/v1/couple/history", alice, nil), &history)
	require.Len(t, history.Couples, 1)
	assert.Equal(t, models.CoupleStatusDisconnected, history.Couples[0].Status)
}

func TestSharingFlow(t *testing.T) {
	e := newAPI(t)
	alice, bob := token(t, "Alice"), token(t, "Bob")
	e.do(t, http.MethodGet, "/api/v1/me", bob, nil)

	var inv models.CoupleInvitation
	decode(t, e.do(t, http.MethodPost, "/api/v1/invitations", alice, gin.H{"receiverEmail": "bob@example.com", "message": "hi"}), &inv)
	var couple models.Couple
	decode(t, e.do(t, http.MethodPost, "/api/v1/invitations/"+inv.ID+"/accept", bob, nil), &couple)

	w := e.do(t, http.MethodPost, "/api/v1/memories", alice, gin.H{
		"title":   "<b>First trip</b>",
		"content": "Sunset at the pier",
		"tags":    []string{"travel"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var memory models.Memory
	decode(t, w, &memory)
	assert.Equal(t, "First trip", memory.Title)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/v1/memories/"+memory.ID, alice, nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodGet, "/api/v1/memories/"+memory.ID, bob, nil).Code)

	w = e.do(t, http.MethodPost, "/api/v1/couples/"+couple.ID+"/shares", alice, gin.H{"memoryId": memory.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(t, http.MethodPost, "/api/v1/couples/"+couple.ID+"/shares", alice, gin.H{"memoryId": memory.ID})
	assert.Equal(t, http.StatusConflict, w.Code)

	var withMe struct {
		Shares []models.SharedMemoryView `json:"shares"`
	}
	decode(t, e.do(t, http.MethodGet, "/api/v1/shares/with-me", bob, nil), &withMe)
	require.Len(t, withMe.Shares, 1)
	assert.Equal(t, "First trip", withMe.Shares[0].MemoryData.Title)
	assert.False(t, withMe.Shares[0].Orphaned)

	w = e.do(t, http.MethodDelete, "/api/v1/couples/"+couple.ID+"/shares/"+memory.ID, alice, nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	var byMe struct {
		Shares []models.SharedMemoryView `json:"shares"`
	}
	decode(t, e.do(t, http.MethodGet, "/api/v1/shares/by-me", alice, nil), &byMe)
	assert.Empty(t, byMe.Shares)
}

func TestErrorResponses(t *testing.T) {
	e := newAPI(t)
	alice := token(t, "Alice")

	tests := []struct {
		name       string
		method     string
		path       string
		tok        string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{
			name: "No token", method: http.MethodGet, path: "/api/v1/couple",
			wantStatus: http.StatusUnauthorized, wantCode: errors.ErrCodeNotAuthorized,
		},
		{
			name: "Self invite", method: http.MethodPost, path: "/api/v1/invitations", tok: alice,
			body:       gin.H{"receiverEmail": "alice@example.com", "message": "me?"},
			wantStatus: http.StatusConflict, wantCode: errors.ErrCodeSelfInvite,
		},
		{
			name: "Unknown recipient", method: http.MethodPost, path: "/api/v1/invitations", tok: alice,
			body:       gin.H{"receiverEmail": "nobody@example.com", "message": "hello"},
			wantStatus: http.StatusConflict, wantCode: errors.ErrCodeUnknownRecipient,
		},
		{
			name: "Missing invitation", method: http.MethodPost, path: "/api/v1/invitations/nope/accept", tok: alice,
			wantStatus: http.StatusNotFound, wantCode: errors.ErrCodeInvitationNotFound,
		},
		{
			name: "Settings without couple", method: http.MethodPatch, path: "/api/v1/couples/nope/settings", tok: alice,
			body:       gin.H{"autoShareNewMemories": true},
			wantStatus: http.StatusConflict, wantCode: errors.ErrCodeNoActiveCouple,
		},
		{
			name: "Memory without title", method: http.MethodPost, path: "/api/v1/memories", tok: alice,
			body:       gin.H{"content": "untitled"},
			wantStatus: http.StatusBadRequest, wantCode: errors.ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, tt.method, tt.path, tt.tok, tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			var body map[string]string
			decode(t, w, &body)
			assert.Equal(t, tt.wantCode, body["code"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestRateLimitedRoutes(t *testing.T) {
	e := newAPI(t)
	e.manager.RateLimiter = middleware.NewRateLimiter(1, 1000, time.Minute)
	e.router = e.manager.Router()
	alice := token(t, "Alice")

	first := e.do(t, http.MethodPost, "/api/v1/invitations/x/reject", alice, nil)
	assert.NotEqual(t, http.StatusTooManyRequests, first.Code)

	second := e.do(t, http.MethodPost, "/api/v1/invitations/x/reject", alice, nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// Reads are not limited.
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/v1/couple", alice, nil).Code)
}

func TestStream(t *testing.T) {
	e := newAPI(t)
	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)

	alice, bob := token(t, "Alice"), token(t, "Bob")
	e.do(t, http.MethodGet, "/api/v1/me", bob, nil)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?token=" + bob
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	next := func(match func(frame) bool) frame {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		for {
			var f frame
			require.NoError(t, conn.ReadJSON(&f))
			if match(f) {
				return f
			}
		}
	}

	f := next(func(f frame) bool { return f.Type == "couple" && f.Couple.Settled })
	assert.False(t, f.Couple.Paired())

	var inv models.CoupleInvitation
	decode(t, e.do(t, http.MethodPost, "/api/v1/invitations", alice, gin.H{"receiverEmail": "bob@example.com", "message": "hi"}), &inv)

	f = next(func(f frame) bool {
		return f.Type == "invitations" && len(f.Invitations.Received) == 1
	})
	assert.Equal(t, inv.ID, f.Invitations.Received[0].ID)

	_, err = e.manager.Invitations.AcceptInvitation(context.Background(), "user-bob", inv.ID)
	require.NoError(t, err)

	f = next(func(f frame) bool { return f.Type == "couple" && f.Couple.Paired() })
	assert.Equal(t, 2, f.Couple.Slot)
	assert.Equal(t, "user-alice", f.Couple.Partner.ID)
}
