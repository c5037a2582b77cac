package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
)

// BaseHTTPSuite connects scenario suites to a running server. Each actor in
// a scenario gets its own apiClient so the suite can play both sides of a
// conversation.
type BaseHTTPSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseHTTPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.ServerAddr == "" {
		s.T().Skip("SERVER_ADDR not set, skipping end-to-end suite")
	}
}

// Header prints a colorized section header in the test logs
func (s *BaseHTTPSuite) Header(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Client returns an authenticated-capable API client for one actor.
func (s *BaseHTTPSuite) Client() *apiClient {
	return &apiClient{
		suite: s,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

type apiClient struct {
	suite *BaseHTTPSuite
	http  *http.Client
	Token string
}

// Call performs one JSON round-trip and decodes the answer into out when the
// status matches. Bodies are logged when E2E_DEBUG_JSON is enabled.
func (c *apiClient) Call(method, path string, body any, wantStatus int, out any) {
	t := c.suite.T()
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		c.suite.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, c.suite.Config.ServerAddr+path, &buf)
	c.suite.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	c.suite.Require().NoError(err, "Failed to reach server at "+c.suite.Config.ServerAddr)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	c.suite.Require().NoError(err)

	t.Logf("HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if c.suite.Config.DebugJSON {
		t.Logf("RESPONSE:\n%s", string(raw))
	}

	c.suite.Require().Equal(wantStatus, resp.StatusCode, "unexpected status, body: %s", string(raw))
	if out != nil {
		c.suite.Require().NoError(json.Unmarshal(raw, out))
	}
}
