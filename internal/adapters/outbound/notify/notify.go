package notify

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/openkraft/keeper/internal/adapters/outbound/metrics"
)

// HTTPNotifier posts messages to {base}/api/notify on behalf of one agent.
type HTTPNotifier struct {
	endpoint  string
	agentName string
	client    *http.Client
}

func New(apiBase, agentName string, client *http.Client) *HTTPNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPNotifier{
		endpoint:  strings.TrimRight(apiBase, "/") + "/api/notify",
		agentName: agentName,
		client:    client,
	}
}

type notification struct {
	Channel   string `json:"channel"`
	AgentName string `json:"agent_name"`
	Message   string `json:"message"`
}

func (n *HTTPNotifier) Notify(ctx context.Context, channel, message string) error {
	return metrics.PostJSON(ctx, n.client, n.endpoint, notification{
		Channel:   channel,
		AgentName: n.agentName,
		Message:   message,
	})
}
