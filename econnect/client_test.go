package econnect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakePanel struct {
	mu       sync.Mutex
	code     string
	commands []url.Values
	unlocks  int
	reject   bool
}

func (p *fakePanel) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(pathLogin, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("username") != "user" || q.Get("password") != "pass" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		require.Equal(t, "home", q.Get("domain"))
		_ = json.NewEncoder(w).Encode(map[string]any{"SessionId": "s3ss10n"})
	})
	authed := func(fn http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			if r.PostForm.Get("sessionId") != "s3ss10n" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			fn(w, r)
		}
	}
	mux.HandleFunc(pathLock, authed(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "1", r.PostForm.Get("userId"))
		if r.PostForm.Get("password") != p.code {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("[]"))
	}))
	mux.HandleFunc(pathUnlock, authed(func(w http.ResponseWriter, _ *http.Request) {
		p.mu.Lock()
		p.unlocks++
		p.mu.Unlock()
		_, _ = w.Write([]byte("[]"))
	}))
	mux.HandleFunc(pathSendCommand, authed(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.commands = append(p.commands, r.PostForm)
		p.mu.Unlock()
		_ = json.NewEncoder(w).Encode([]map[string]any{{
			"CommandId":  1,
			"Successful": !p.reject,
		}})
	}))
	mux.HandleFunc(pathStrings, authed(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]description{
			{Class: classSector, Index: 0, Description: "Living room"},
			{Class: classSector, Index: 1, Description: ""},
			{Class: classInput, Index: 0, Description: "Front door"},
		})
	}))
	mux.HandleFunc(pathAreas, authed(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]element{
			{ID: 3, Index: 1, Element: 2, InUse: true, Active: true},
			{ID: 1, Index: 0, Element: 1, InUse: true},
			{ID: 9, Index: 8, Element: 9, InUse: false},
		})
	}))
	mux.HandleFunc(pathInputs, authed(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]element{
			{ID: 1, Index: 0, Element: 1, InUse: true, Alarm: true},
			{ID: 2, Index: 1, Element: 2, InUse: true, Excluded: true},
		})
	}))
	mux.HandleFunc(pathStatusAdv, authed(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"HasAnomaly": true,
			"PanelLeds": {"AlarmLed": 0, "InputsLed": 2},
			"PanelAnomalies": {"GsmAnomaly": 1, "SystemTest": 0},
			"Label": "ignored"
		}`))
	}))
	return mux
}

func newTestClient(t *testing.T) (*Client, *fakePanel) {
	t.Helper()
	panel := &fakePanel{code: "1234"}
	srv := httptest.NewServer(panel.handler(t))
	t.Cleanup(srv.Close)

	cli := New(srv.URL+"/", "home", WithHTTPClient(srv.Client()))
	require.NoError(t, cli.Auth(context.Background(), "user", "pass"))
	return cli, panel
}

func TestAuth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		cli, _ := newTestClient(t)
		require.Equal(t, "s3ss10n", cli.session)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		panel := &fakePanel{}
		srv := httptest.NewServer(panel.handler(t))
		t.Cleanup(srv.Close)

		cli := New(srv.URL, "home")
		err := cli.Auth(context.Background(), "user", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("not authenticated", func(t *testing.T) {
		cli := New("http://127.0.0.1:0", "home")
		_, err := cli.Sectors(context.Background())
		require.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("arm all sectors", func(t *testing.T) {
		cli, panel := newTestClient(t)
		require.NoError(t, cli.Lock(ctx, "1234"))
		require.NoError(t, cli.Arm(ctx, nil))
		require.NoError(t, cli.Unlock(ctx))
		require.Len(t, panel.commands, 1)
		require.Equal(t, "1", panel.commands[0].Get("CommandType"))
		require.Equal(t, "1", panel.commands[0].Get("ElementsClass"))
		require.Equal(t, "1", panel.commands[0].Get("ElementsIndexes"))
		require.Equal(t, 1, panel.unlocks)
		require.False(t, cli.locked)
	})

	t.Run("disarm some sectors", func(t *testing.T) {
		cli, panel := newTestClient(t)
		require.NoError(t, cli.Lock(ctx, "1234"))
		require.NoError(t, cli.Disarm(ctx, []int{1, 3}))
		require.Len(t, panel.commands, 2)
		for i, idx := range []string{"1", "3"} {
			require.Equal(t, "2", panel.commands[i].Get("CommandType"))
			require.Equal(t, "9", panel.commands[i].Get("ElementsClass"))
			require.Equal(t, idx, panel.commands[i].Get("ElementsIndexes"))
		}
	})

	t.Run("invalid code", func(t *testing.T) {
		cli, _ := newTestClient(t)
		require.ErrorIs(t, cli.Lock(ctx, "0000"), ErrInvalidCode)
		require.False(t, cli.locked)
	})

	t.Run("command rejected", func(t *testing.T) {
		cli, panel := newTestClient(t)
		panel.reject = true
		require.NoError(t, cli.Lock(ctx, "1234"))
		err := cli.Arm(ctx, []int{2})
		require.ErrorIs(t, err, ErrCommandFailed)
		require.EqualError(t, err, "could not arm [2]: command was not accepted by the panel: 2")
	})

	t.Run("command without lock", func(t *testing.T) {
		cli, panel := newTestClient(t)
		require.ErrorIs(t, cli.Arm(ctx, nil), ErrLockNotHeld)
		require.ErrorIs(t, cli.Unlock(ctx), ErrLockNotHeld)
		require.Empty(t, panel.commands)
	})
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	cli, _ := newTestClient(t)

	t.Run("sectors", func(t *testing.T) {
		sectors, err := cli.Sectors(ctx)
		require.NoError(t, err)
		require.Equal(t, []Sector{
			{ID: 1, Index: 0, Element: 1, Name: "Living room"},
			{ID: 3, Index: 1, Element: 2, Status: true, Name: "Sector 2"},
		}, sectors)
	})

	t.Run("inputs", func(t *testing.T) {
		inputs, err := cli.Inputs(ctx)
		require.NoError(t, err)
		require.Equal(t, []Input{
			{ID: 1, Index: 0, Element: 1, Status: true, Name: "Front door"},
			{ID: 2, Index: 1, Element: 2, Excluded: true, Name: "Input 2"},
		}, inputs)
	})

	t.Run("alerts", func(t *testing.T) {
		alerts, err := cli.Alerts(ctx)
		require.NoError(t, err)
		require.Equal(t, []Alert{
			{Index: 0, Name: "HasAnomaly", Active: true},
			{Index: 1, Name: "PanelAnomalies.GsmAnomaly", Active: true},
			{Index: 2, Name: "PanelAnomalies.SystemTest", Active: false},
			{Index: 3, Name: "PanelLeds.AlarmLed", Active: false},
			{Index: 4, Name: "PanelLeds.InputsLed", Active: true},
		}, alerts)
	})
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc(pathLogin, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"SessionId": "s3ss10n"})
	})
	mux.HandleFunc(pathStatusAdv, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"HasAnomaly":`))
		w.(http.Flusher).Flush()
		<-release
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	cli := New(srv.URL, "home", WithHTTPClient(srv.Client()), WithTimeout(50*time.Millisecond))
	require.NoError(t, cli.Auth(context.Background(), "user", "pass"))

	start := time.Now()
	_, err := cli.Alerts(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 5*time.Second)
}
