package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"mainq/internal/middleware"
	"mainq/internal/models"
	"mainq/internal/session"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGame = `<!DOCTYPE html><html><body><h1>Kuis Pecahan</h1><script>start()</script></body></html>`

func (e *testEnv) createGame(t *testing.T, token, title string) models.Item {
	t.Helper()
	var item models.Item
	resp := e.do(t, http.MethodPost, "/api/games", token, fiber.Map{
		"title":       title,
		"description": "Latihan pecahan untuk kelas 4",
		"class":       "Kelas 4",
		"subject":     "Matematika",
		"content":     sampleGame,
	}, &item)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, item.ID)
	return item
}

func TestItemLifecycle(t *testing.T) {
	env := newTestEnv(t)
	owner := env.signup(t, "sari@sekolah.id", "Bu Sari")
	other := env.signup(t, "budi@sekolah.id", "Pak Budi")

	game := env.createGame(t, owner.Token, "Kuis Pecahan")
	assert.Equal(t, models.KindGame, game.Kind)
	assert.Equal(t, owner.Session.UserID, game.OwnerID)
	assert.Equal(t, "Bu Sari", game.AuthorName)

	t.Run("list filters by subject and class", func(t *testing.T) {
		var page struct {
			Items     []models.Item `json:"items"`
			Total     int           `json:"total"`
			FilterKey string        `json:"filter_key"`
		}
		resp := env.do(t, http.MethodGet, "/api/games?subject=Matematika&class=Kelas%204", "", nil, &page)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 1, page.Total)
		assert.NotEmpty(t, page.FilterKey)

		resp = env.do(t, http.MethodGet, "/api/games?subject=IPA", "", nil, &page)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 0, page.Total)
	})

	t.Run("detail counts views", func(t *testing.T) {
		var got models.Item
		resp := env.do(t, http.MethodGet, "/api/games/"+game.ID, "", nil, &got)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 1, got.Views)

		resp = env.do(t, http.MethodGet, "/api/games/"+game.ID, "", nil, &got)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 2, got.Views)
	})

	t.Run("wrong collection is not found", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/labs/"+game.ID, "", nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("non-owner cannot edit", func(t *testing.T) {
		var out models.ErrorResponse
		resp := env.do(t, http.MethodPut, "/api/games/"+game.ID, other.Token, fiber.Map{
			"title": "Diubah", "class": "Kelas 4", "subject": "Matematika", "content": sampleGame,
		}, &out)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, models.CodeForbidden, out.Code)

		var got models.Item
		env.do(t, http.MethodGet, "/api/games/"+game.ID, "", nil, &got)
		assert.Equal(t, "Kuis Pecahan", got.Title)

		resp = env.do(t, http.MethodDelete, "/api/games/"+game.ID, other.Token, nil, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("owner edits", func(t *testing.T) {
		var got models.Item
		resp := env.do(t, http.MethodPut, "/api/games/"+game.ID, owner.Token, fiber.Map{
			"title": "Kuis Pecahan Seru", "class": "Kelas 4", "subject": "Matematika", "content": sampleGame,
		}, &got)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Kuis Pecahan Seru", got.Title)
	})

	t.Run("validation", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/games", owner.Token, fiber.Map{
			"title": "Tanpa Kelas", "subject": "Matematika", "content": sampleGame,
		}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = env.do(t, http.MethodPost, "/api/games", "", fiber.Map{
			"title": "Anonim", "class": "Kelas 4", "subject": "Matematika", "content": sampleGame,
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("owner deletes", func(t *testing.T) {
		resp := env.do(t, http.MethodDelete, "/api/games/"+game.ID, owner.Token, nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = env.do(t, http.MethodGet, "/api/games/"+game.ID, "", nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestCommentsNotifyOwner(t *testing.T) {
	env := newTestEnv(t)
	owner := env.signup(t, "sari@sekolah.id", "Bu Sari")
	reader := env.signup(t, "budi@sekolah.id", "Pak Budi")
	game := env.createGame(t, owner.Token, "Kuis Pecahan")

	var comment models.Comment
	resp := env.do(t, http.MethodPost, "/api/games/"+game.ID+"/comments", reader.Token,
		fiber.Map{"body": "Murid saya suka sekali!"}, &comment)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Pak Budi", comment.AuthorName)

	// The owner's own comment does not notify anyone.
	resp = env.do(t, http.MethodPost, "/api/games/"+game.ID+"/comments", owner.Token,
		fiber.Map{"body": "Terima kasih, Pak."}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var comments []models.Comment
	resp = env.do(t, http.MethodGet, "/api/games/"+game.ID+"/comments", "", nil, &comments)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, comments, 2)

	var unread struct {
		Unread int64 `json:"unread"`
	}
	env.do(t, http.MethodGet, "/api/notifications/unread-count", owner.Token, nil, &unread)
	assert.Equal(t, int64(1), unread.Unread)
	env.do(t, http.MethodGet, "/api/notifications/unread-count", reader.Token, nil, &unread)
	assert.Equal(t, int64(0), unread.Unread)

	var list []models.Notification
	resp = env.do(t, http.MethodGet, "/api/notifications", owner.Token, nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 1)
	assert.Equal(t, "Pak Budi", list[0].SenderName)
	assert.Equal(t, "Kuis Pecahan", list[0].ContentTitle)
	assert.Contains(t, list[0].Link, game.ID)
	assert.False(t, list[0].Read)

	var marked struct {
		Updated int64 `json:"updated"`
	}
	resp = env.do(t, http.MethodPost, "/api/notifications/read-all", owner.Token, nil, &marked)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), marked.Updated)

	env.do(t, http.MethodGet, "/api/notifications/unread-count", owner.Token, nil, &unread)
	assert.Equal(t, int64(0), unread.Unread)

	resp = env.do(t, http.MethodPost, "/api/games/tidak-ada/comments", reader.Token,
		fiber.Map{"body": "Halo"}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminGate(t *testing.T) {
	env := newTestEnv(t)
	owner := env.signup(t, "sari@sekolah.id", "Bu Sari")
	member := env.signup(t, "budi@sekolah.id", "Pak Budi")
	admin := env.signup(t, "admin@sekolah.id", "Admin")
	require.NoError(t, env.srv.userRepo.SetAdmin(context.Background(), admin.Session.UserID, true))

	game := env.createGame(t, owner.Token, "Kuis Pecahan")

	readBody := func(resp *http.Response) string {
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(raw)
	}

	anon := env.do(t, http.MethodGet, "/api/admin/items", "", nil, nil)
	nonAdmin := env.do(t, http.MethodGet, "/api/admin/items", member.Token, nil, nil)
	assert.Equal(t, http.StatusForbidden, anon.StatusCode)
	assert.Equal(t, http.StatusForbidden, nonAdmin.StatusCode)
	assert.Equal(t, readBody(anon), readBody(nonAdmin), "anonymous and non-admin callers are indistinguishable")

	var listing struct {
		Collection string `json:"collection"`
		Result     struct {
			Items []models.Item `json:"items"`
		} `json:"result"`
	}
	resp := env.do(t, http.MethodGet, "/api/admin/items?collection=game", admin.Token, nil, &listing)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "game", listing.Collection)
	assert.Len(t, listing.Result.Items, 1)

	resp = env.do(t, http.MethodGet, "/api/admin/items?collection=video", admin.Token, nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Admins moderate by deletion only.
	resp = env.do(t, http.MethodPut, "/api/games/"+game.ID, admin.Token, fiber.Map{
		"title": "Diubah Admin", "class": "Kelas 4", "subject": "Matematika", "content": sampleGame,
	}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/admin/items/game/"+game.ID, member.Token, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/admin/items/game/"+game.ID, admin.Token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/games/"+game.ID, "", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Revoking the flag takes effect without a new token.
	require.NoError(t, env.srv.userRepo.SetAdmin(context.Background(), admin.Session.UserID, false))
	resp = env.do(t, http.MethodGet, "/api/admin/items", admin.Token, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPlayAndEmbed(t *testing.T) {
	env := newTestEnv(t)
	owner := env.signup(t, "sari@sekolah.id", "Bu Sari")
	game := env.createGame(t, owner.Token, "Kuis Pecahan")

	resp := env.do(t, http.MethodGet, "/play/game/"+game.ID, "", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, middleware.SandboxPolicy, resp.Header.Get("Content-Security-Policy"))
	assert.NotContains(t, resp.Header.Get("Content-Security-Policy"), "allow-top-navigation")
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, sampleGame, string(raw))

	resp = env.do(t, http.MethodGet, "/embed/games/"+game.ID, "", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	page := string(raw)
	assert.Contains(t, page, `sandbox="`+iframeSandbox+`"`)
	assert.Contains(t, page, `src="/play/game/`+game.ID+`"`)
	assert.NotContains(t, page, "allow-top-navigation")

	resp = env.do(t, http.MethodGet, "/play/video/"+game.ID, "", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPopular(t *testing.T) {
	env := newTestEnv(t)
	owner := env.signup(t, "sari@sekolah.id", "Bu Sari")
	env.createGame(t, owner.Token, "Kuis Pecahan")

	var out struct {
		Kind   string `json:"kind"`
		Window string `json:"window"`
		Result struct {
			Total int `json:"total"`
		} `json:"result"`
	}
	resp := env.do(t, http.MethodGet, "/api/popular?kind=games&window=weekly", "", nil, &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "game", out.Kind)
	assert.Equal(t, "weekly", out.Window)
	assert.Equal(t, 1, out.Result.Total)

	resp = env.do(t, http.MethodGet, "/api/popular?window=yearly", "", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/popular?kind=video", "", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProfileEndpoints(t *testing.T) {
	env := newTestEnv(t)
	owner := env.signup(t, "sari@sekolah.id", "Bu Sari")
	env.createGame(t, owner.Token, "Kuis Pecahan")

	var me models.Profile
	resp := env.do(t, http.MethodPut, "/api/me", owner.Token, fiber.Map{
		"display_name": "Ibu Sari", "bio": "Guru SD di Bandung",
	}, &me)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ibu Sari", me.DisplayName)

	var public struct {
		Profile models.Profile `json:"profile"`
		Uploads struct {
			Games struct {
				Items []models.Item `json:"items"`
			} `json:"games"`
		} `json:"uploads"`
	}
	resp = env.do(t, http.MethodGet, "/api/users/"+owner.Session.UserID, "", nil, &public)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Guru SD di Bandung", public.Profile.Bio)
	require.Len(t, public.Uploads.Games.Items, 1)

	resp = env.do(t, http.MethodGet, "/api/users/tidak-ada", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHello(t *testing.T) {
	env := newTestEnv(t)

	var anon struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(env.srv.hello(nil), &anon))
	assert.Equal(t, "hello", anon.Type)
	assert.Equal(t, false, anon.Payload["authenticated"])
	assert.NotContains(t, anon.Payload, "unread")

	user := env.signup(t, "sari@sekolah.id", "Bu Sari")
	var signedIn struct {
		Payload map[string]any `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(env.srv.hello(&session.Session{UserID: user.Session.UserID}), &signedIn))
	assert.Equal(t, true, signedIn.Payload["authenticated"])
	assert.EqualValues(t, 0, signedIn.Payload["unread"])
}
