package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/writify/writify/internal/gateway"
	"github.com/writify/writify/internal/output"
)

const gatewayClientTimeout = 10 * time.Second

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Inspect the AI gateway of a running server",
	Long: `Inspect the AI gateway of a running server.

The gateway's quota, queue and offline state live in the server process, so
these commands talk to the server's HTTP API.`,
}

var gatewayStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show quota usage, queue depth and offline state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGatewayRequest(cmd, http.MethodGet, "/api/gateway")
	},
}

var gatewayResetCmd = &cobra.Command{
	Use:   "reset-fallback",
	Short: "Leave offline mode and resume calling the AI provider",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGatewayRequest(cmd, http.MethodPost, "/api/gateway/reset-fallback")
	},
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
	gatewayCmd.AddCommand(gatewayStatusCmd, gatewayResetCmd)

	gatewayCmd.PersistentFlags().String("server", "", "Server base URL (default from server.host and server.port)")
	gatewayCmd.PersistentFlags().String("output-format", "table", "Output format: table, json, markdown")
}

func runGatewayRequest(cmd *cobra.Command, method, path string) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	base, _ := cmd.Flags().GetString("server")
	if strings.TrimSpace(base) == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		base = serverBaseURL(cfg.Server.Host, cfg.Server.Port)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), gatewayClientTimeout)
	defer cancel()

	stats, err := fetchGatewayStats(ctx, http.DefaultClient, method, strings.TrimRight(base, "/")+path)
	if err != nil {
		return err
	}
	rendered, err := output.GatewayStatus(format, stats)
	if err != nil {
		return err
	}
	return writeOutput("", rendered)
}

func serverBaseURL(host string, port int) string {
	host = strings.TrimSpace(host)
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

type gatewayResponse struct {
	Gateway gateway.Stats `json:"gateway"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func fetchGatewayStats(ctx context.Context, client *http.Client, method, url string) (gateway.Stats, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return gateway.Stats{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return gateway.Stats{}, fmt.Errorf("contacting server (is 'serve' running?): %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gateway.Stats{}, err
	}
	var decoded gatewayResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return gateway.Stats{}, fmt.Errorf("unexpected response (HTTP %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if decoded.Error != nil {
			return gateway.Stats{}, fmt.Errorf("server returned %s: %s", decoded.Error.Code, decoded.Error.Message)
		}
		return gateway.Stats{}, fmt.Errorf("server returned HTTP %d", resp.StatusCode)
	}
	return decoded.Gateway, nil
}
