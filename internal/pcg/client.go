// Package pcg talks to the external claims/eMDR registration service.
// Every call is a single request/response with a timeout and no retries;
// callers decide how to surface failures.
package pcg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// ProviderRecord is one provider as the registration service reports it.
type ProviderRecord struct {
	PCGProviderID string `json:"providerId"`
	NPI           string `json:"npi"`
	Name          string `json:"name"`
	AddressLine1  string `json:"addressLine1"`
	AddressLine2  string `json:"addressLine2"`
	City          string `json:"city"`
	State         string `json:"state"`
	Zip           string `json:"zip"`
}

type providerListResponse struct {
	Providers  []ProviderRecord `json:"providers"`
	Page       int              `json:"page"`
	TotalPages int              `json:"totalPages"`
}

// RegistrationStatus is the per-provider eMDR registration snapshot.
type RegistrationStatus struct {
	RegStatus      string `json:"regStatus"`
	Stage          string `json:"stage"`
	TransactionID  string `json:"transactionId"`
	EmdrRegistered bool   `json:"emdrRegistered"`
	ElectronicOnly bool   `json:"electronicOnly"`
}

type UpdateProviderRequest struct {
	NPI          string `json:"npi"`
	Name         string `json:"name"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	City         string `json:"city"`
	State        string `json:"state"`
	Zip          string `json:"zip"`
}

// ListProviders fetches one page of the provider registry.
func (c *Client) ListProviders(page, pageSize int) ([]ProviderRecord, int, error) {
	var resp providerListResponse
	url := fmt.Sprintf("%s/providers?page=%d&pageSize=%d", c.baseURL, page, pageSize)
	if err := c.do(http.MethodGet, url, nil, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Providers, resp.TotalPages, nil
}

// UpdateProvider pushes local demographic changes out to the service.
func (c *Client) UpdateProvider(pcgProviderID string, req *UpdateProviderRequest) (json.RawMessage, error) {
	var raw json.RawMessage
	url := fmt.Sprintf("%s/providers/%s", c.baseURL, pcgProviderID)
	if err := c.do(http.MethodPut, url, req, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) RegisterEmdr(pcgProviderID string) (*RegistrationStatus, error) {
	return c.registration(pcgProviderID, "register")
}

func (c *Client) DeregisterEmdr(pcgProviderID string) (*RegistrationStatus, error) {
	return c.registration(pcgProviderID, "deregister")
}

func (c *Client) SetElectronicOnly(pcgProviderID string) (*RegistrationStatus, error) {
	return c.registration(pcgProviderID, "electronic-only")
}

func (c *Client) registration(pcgProviderID, action string) (*RegistrationStatus, error) {
	var status RegistrationStatus
	url := fmt.Sprintf("%s/providers/%s/emdr/%s", c.baseURL, pcgProviderID, action)
	if err := c.do(http.MethodPost, url, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetRegistrationStatus fetches the current registration snapshot for one
// provider.
func (c *Client) GetRegistrationStatus(pcgProviderID string) (*RegistrationStatus, error) {
	var status RegistrationStatus
	url := fmt.Sprintf("%s/providers/%s/registration", c.baseURL, pcgProviderID)
	if err := c.do(http.MethodGet, url, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) do(method, url string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(b)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call PCG: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("PCG error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode PCG response: %w", err)
	}
	return nil
}
