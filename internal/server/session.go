package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Session is everything the uploader learns about one server before it
// starts uploading. It is created once by Connect and passed explicitly to
// every component.
type Session struct {
	Client *Client
	Server ServerConfig
	Bus    BusConfig
}

// ConnectOptions tune Connect.
type ConnectOptions struct {
	HTTPClient *http.Client
	// Banner receives the human-readable server identity. Nil disables it.
	Banner io.Writer
	// Highlight decorates values in the banner. Nil leaves them plain.
	Highlight func(string) string
}

// Connect authenticates against serverURL, fetches the server identity and
// the message-bus configuration, and prints the identity banner.
func Connect(ctx context.Context, serverURL, token string, opts ConnectOptions) (*Session, error) {
	client, err := NewClient(serverURL, token, opts.HTTPClient)
	if err != nil {
		return nil, &ConnectionError{Op: "connect", URL: serverURL, Err: err}
	}

	info, err := client.Info(ctx)
	if err != nil {
		return nil, err
	}
	bus, err := client.BusConfig(ctx)
	if err != nil {
		return nil, err
	}

	s := &Session{Client: client, Server: info, Bus: bus}
	if opts.Banner != nil {
		s.WriteBanner(opts.Banner, opts.Highlight)
	}
	return s, nil
}

// Topic is the wildcard bus topic carrying this server's notifications.
func (s *Session) Topic() string {
	return fmt.Sprintf("stserver/%s/#", s.Server.ServerName)
}

// WriteBanner prints the server identity and the broker address.
func (s *Session) WriteBanner(w io.Writer, highlight func(string) string) {
	if highlight == nil {
		highlight = func(v string) string { return v }
	}
	fmt.Fprintf(w, "Server: %s  ver. %s\n", highlight(s.Server.ServerName), highlight(string(s.Server.ServerVer)))
	fmt.Fprintf(w, "Server up: %s  Video dir: %s\n", highlight(string(s.Server.ServerStartTime)), highlight(s.Server.VideoDir))
	fmt.Fprintf(w, "MQTT broker: %s\n", highlight(s.Bus.Broker))
}
