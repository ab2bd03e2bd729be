package daemon

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// Reporter delivers captured attempts to the central ingest endpoint over
// plain HTTP. It is fire-and-forget: the listener that captured the tuple
// has already closed the attacker's connection by the time this runs.
type Reporter struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewReporter(endpoint, token string) *Reporter {
	return &Reporter{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type attemptReport struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	IPAddress string `json:"ip_address"`
	Protocol  string `json:"protocol"`
}

// Report posts one attempt. Failures are logged and the attempt is lost;
// nothing here may slow down or kill the listener.
func (r *Reporter) Report(ctx context.Context, username, password, ip, protocol string) {
	body, err := json.Marshal(attemptReport{
		Username:  username,
		Password:  password,
		IPAddress: ip,
		Protocol:  protocol,
	})
	if err != nil {
		log.WithError(err).Warn("report dropped")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		log.WithError(err).Warn("report dropped")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.token)

	resp, err := r.client.Do(req)
	if err != nil {
		log.WithError(err).Warn("report dropped")
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"ip":     ip,
		}).Warn("report rejected")
	}
}
