package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Text is a display value that the server may send as a JSON string,
// number or boolean.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case nil:
		*t = ""
	case string:
		*t = Text(val)
	case float64, bool:
		*t = Text(strings.TrimSpace(string(data)))
	default:
		return fmt.Errorf("expected scalar, got %T", v)
	}
	return nil
}

// ServerConfig is the server identity returned by GET /api/info.
type ServerConfig struct {
	ServerName      string `json:"serverName"`
	ServerVer       Text   `json:"serverVer"`
	ServerStartTime Text   `json:"serverStartTime"`
	VideoDir        string `json:"videoDir"`
}

// mqttConfig is the body of GET /api/mqttConfig.
type mqttConfig struct {
	Broker       string `json:"broker"`
	WSPort       Text   `json:"wsPort"`
	BrokerWSAddr string `json:"mqtt_broker_ws,omitempty"`
}

// BusConfig is the effective message-bus connection the uploader will use.
type BusConfig struct {
	// Broker is the resolved broker URL, e.g. "wss://host/ws".
	Broker string
	// Advertised is the broker address the server reported.
	Advertised string
	// Protocol is "ws" or "wss", following the server URL scheme.
	Protocol string
	WSPort   string
}

// Info fetches the server identity.
func (c *Client) Info(ctx context.Context) (ServerConfig, error) {
	info, err := getJSON[ServerConfig](ctx, c, "/api/info")
	if err != nil {
		return ServerConfig{}, newConnectionError("info", c.endpoint("/api/info", nil), err)
	}
	return info, nil
}

// BusConfig fetches the message-bus parameters and resolves the broker
// address the uploader should connect to.
func (c *Client) BusConfig(ctx context.Context) (BusConfig, error) {
	adv, err := getJSON[mqttConfig](ctx, c, "/api/mqttConfig")
	if err != nil {
		return BusConfig{}, newConnectionError("mqttConfig", c.endpoint("/api/mqttConfig", nil), err)
	}
	return resolveBroker(c.baseURL, adv), nil
}

// resolveBroker picks the broker URL for a server reached at serverURL:
//
//  1. server and advertised broker both on localhost: the advertised ws port
//     on localhost;
//  2. server on localhost, broker elsewhere: the advertised broker;
//  3. an explicit mqtt_broker_ws override;
//  4. server on its scheme's default port: the reverse-proxied /ws path;
//  5. otherwise the advertised ws port on the server's host.
//
// The websocket scheme always follows the server's scheme.
func resolveBroker(serverURL *url.URL, adv mqttConfig) BusConfig {
	proto := "ws"
	if serverURL.Scheme == "https" {
		proto = "wss"
	}
	cfg := BusConfig{
		Advertised: adv.Broker,
		Protocol:   proto,
		WSPort:     string(adv.WSPort),
	}

	host := serverURL.Hostname()
	switch {
	case host == "localhost":
		cfg.Broker = adv.Broker
		if b, err := url.Parse(adv.Broker); err == nil && b.Hostname() == "localhost" {
			cfg.Broker = proto + "://" + net.JoinHostPort(host, cfg.WSPort)
		}
	case adv.BrokerWSAddr != "":
		cfg.Broker = adv.BrokerWSAddr
	case isDefaultPort(serverURL):
		u := url.URL{Scheme: proto, Host: bracketHost(host), Path: "/ws"}
		cfg.Broker = u.String()
	default:
		cfg.Broker = proto + "://" + net.JoinHostPort(host, cfg.WSPort)
	}
	return cfg
}

func isDefaultPort(u *url.URL) bool {
	switch u.Port() {
	case "":
		return true
	case "80":
		return u.Scheme == "http"
	case "443":
		return u.Scheme == "https"
	}
	return false
}

func bracketHost(host string) string {
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}
