package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// ErrInvalidToken marks device tokens the provider rejected permanently.
// Retrying such a notification cannot succeed.
var ErrInvalidToken = errors.New("push: device token rejected")

type Notification struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// FCMGateway sends notifications through the FCM HTTP endpoint.
type FCMGateway struct {
	endpoint  string
	serverKey string
	http      *http.Client
	cb        *gobreaker.CircuitBreaker
}

func NewFCMGateway(endpoint, serverKey string, log *zap.Logger) *FCMGateway {
	if log == nil {
		log = zap.NewNop()
	}
	st := gobreaker.Settings{
		Name:        "fcm",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A rejected token says nothing about the provider's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrInvalidToken)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info("circuit breaker state",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &FCMGateway{
		endpoint:  endpoint,
		serverKey: serverKey,
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cb: gobreaker.NewCircuitBreaker(st),
	}
}

type fcmRequest struct {
	To           string            `json:"to"`
	Priority     string            `json:"priority"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		Error string `json:"error"`
	} `json:"results"`
}

func (g *FCMGateway) Send(ctx context.Context, n Notification) error {
	if n.Token == "" {
		return ErrInvalidToken
	}
	body, err := json.Marshal(fcmRequest{
		To:           n.Token,
		Priority:     "high",
		Notification: fcmNotification{Title: n.Title, Body: n.Body},
		Data:         n.Data,
	})
	if err != nil {
		return err
	}

	_, err = g.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "key="+g.serverKey)

		resp, err := g.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil, fmt.Errorf("fcm status %d", resp.StatusCode)
		}

		var out fcmResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode fcm response: %w", err)
		}
		if out.Failure > 0 && len(out.Results) > 0 {
			switch reason := out.Results[0].Error; reason {
			case "NotRegistered", "InvalidRegistration", "MismatchSenderId":
				return nil, fmt.Errorf("%w: %s", ErrInvalidToken, reason)
			default:
				return nil, fmt.Errorf("fcm error: %s", reason)
			}
		}
		return nil, nil
	})
	return err
}
