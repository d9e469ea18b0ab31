package probe

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openkraft/keeper/internal/domain"
)

// HTTPProber checks a provider's health URL. Any 2xx response means alive.
type HTTPProber struct {
	client *http.Client
}

// New returns a prober. Deadlines come from the caller's context.
func New(client *http.Client) *HTTPProber {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPProber{client: client}
}

func (p *HTTPProber) Probe(ctx context.Context, prov domain.Provider) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, prov.HealthURL(), nil)
	if err != nil {
		return fmt.Errorf("probing %s: %w", prov.Name, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probing %s: %w", prov.Name, err)
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probing %s: %s", prov.Name, resp.Status)
	}
	return nil
}
