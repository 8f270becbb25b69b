package main

import (
	"github.com/joho/godotenv"

	"github.com/sweeney/shot-monitor/internal/status"
)

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

// readNetworkInfo parses the pi-helper env file. The file is re-read on
// every heartbeat, so it picks up changes pi-helper makes while we run.
// Returns nil when the file is missing or carries no status.
func readNetworkInfo(path string) *status.NetworkInfo {
	if path == "" {
		return nil
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil
	}
	s := env[envNetworkStatus]
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       env[envNetworkType],
		IP:         env[envNetworkIP],
		Status:     s,
		Gateway:    env[envNetworkGateway],
		WifiStatus: env[envNetworkWifiStatus],
		SSID:       env[envNetworkWifiSSID],
	}
}
