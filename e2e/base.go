package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// BaseSuite carries the environment configuration and the HTTP/websocket
// helpers shared by every scenario.
type BaseSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerURL == "" {
		s.T().Skip("E2E_SERVER_URL not set, skipping end-to-end suite")
	}
}

// Header prints a colorized step banner in the logs.
func (s *BaseSuite) Header(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// JSON performs one API call against the running server and decodes the
// response into out (when non-nil). The bearer token is optional.
func (s *BaseSuite) JSON(method, path, token string, body any, out any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.Config.ServerURL+path, &buf)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		fmt.Fprintln(&logBuilder, "\nRESPONSE:")
		fmt.Fprintln(&logBuilder, string(raw))
	}
	s.T().Log(logBuilder.String())

	if out != nil && len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, out))
	}
	return resp
}

// Dial opens an authenticated websocket and consumes the identity echo.
func (s *BaseSuite) Dial(ctx context.Context, token string) (*websocket.Conn, string) {
	wsURL := "ws" + strings.TrimPrefix(s.Config.ServerURL, "http") + "/ws?token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	s.Require().NoError(err)

	var me struct {
		Event string `json:"event"`
		Data  struct {
			Identity struct {
				ID string `json:"id"`
			} `json:"identity"`
		} `json:"data"`
	}
	s.Require().NoError(wsjson.Read(ctx, conn, &me))
	s.Require().Equal("me", me.Event)
	return conn, me.Data.Identity.ID
}
