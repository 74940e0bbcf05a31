package main

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Client is an HTTP client for the Barrel API.
type Client struct {
	addr         string
	accessToken  string
	renewalToken string
	http         *http.Client
}

// newClient creates a Client from the current config.
func newClient() *Client {
	addr := cfg.Address
	if v := os.Getenv("BARREL_ADDR"); v != "" {
		addr = v
	}
	caCert := cfg.TLSCACert
	if v := os.Getenv("BARREL_CACERT"); v != "" {
		caCert = v
	}

	tlsCfg := &tls.Config{}
	if caCert != "" {
		data, err := os.ReadFile(caCert)
		if err == nil {
			pool := x509.NewCertPool()
			pool.AppendCertsFromPEM(data)
			tlsCfg.RootCAs = pool
		}
	}

	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: &http.Transport{TLSClientConfig: tlsCfg},
	}

	return &Client{
		addr:         addr,
		accessToken:  cfg.AccessToken,
		renewalToken: cfg.RenewalToken,
		http:         httpClient,
	}
}

func (c *Client) do(method, path string, body any, bearer string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.addr+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	return c.http.Do(req)
}

// login authenticates with Basic credentials. The access token arrives in
// the Authorization response header, the renewal token as the body.
func (c *Client) login(path, username, password string) (access, renewal string, err error) {
	req, err := http.NewRequest("POST", c.addr+path, nil)
	if err != nil {
		return "", "", err
	}
	req.SetBasicAuth(username, password)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)
	}
	access = strings.TrimPrefix(resp.Header.Get("Authorization"), "Bearer ")
	renewal = strings.TrimSpace(string(body))
	if access == "" || renewal == "" {
		return "", "", fmt.Errorf("login response missing tokens")
	}
	return access, renewal, nil
}

// renew exchanges the stored renewal token for a fresh access token.
func (c *Client) renew() (string, error) {
	if c.renewalToken == "" {
		return "", fmt.Errorf("no renewal token stored, login first")
	}
	resp, err := c.do("GET", "/selfservice/renew", nil, c.renewalToken)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)
	}
	access := strings.TrimPrefix(resp.Header.Get("Authorization"), "Bearer ")
	if access == "" {
		return "", fmt.Errorf("renew response missing access token")
	}
	return access, nil
}

func (c *Client) get(path string) (map[string]any, error) {
	resp, err := c.do("GET", path, nil, c.accessToken)
	if err != nil {
		return nil, err
	}
	return parseResponse(resp)
}

func (c *Client) post(path string, body any) (map[string]any, error) {
	resp, err := c.do("POST", path, body, c.accessToken)
	if err != nil {
		return nil, err
	}
	return parseResponse(resp)
}

func (c *Client) delete(path string) error {
	resp, err := c.do("DELETE", path, nil, c.accessToken)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

func parseResponse(resp *http.Response) (map[string]any, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return map[string]any{}, nil
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, data)
	}
	if resp.StatusCode >= 400 {
		if errs, ok := result["errors"].([]any); ok && len(errs) > 0 {
			return nil, fmt.Errorf("%v", errs[0])
		}
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return result, nil
}
