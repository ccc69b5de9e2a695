package service

import (
	"net"
	"strings"

	"github.com/mssola/useragent"

	"github.com/atinyakov/linkcore/internal/models"
)

// Device classes reported by Classify.
const (
	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceBot     = "Bot"
)

const (
	locationLocal  = "Local"
	directReferrer = "Direct"
)

// Classify describes a visitor from the request headers. country is the
// location already known for ip, if any.
func Classify(userAgent, ip, referrer, country string) models.Classification {
	c := models.Classification{
		Browser:   models.UnknownValue,
		Device:    models.UnknownValue,
		Location:  models.UnknownValue,
		Referrer:  strings.TrimSpace(referrer),
		IP:        ip,
		UserAgent: userAgent,
	}
	if c.Referrer == "" {
		c.Referrer = directReferrer
	}

	if userAgent != "" {
		ua := useragent.New(userAgent)
		if name, _ := ua.Browser(); name != "" {
			c.Browser = name
		}
		switch {
		case ua.Bot():
			c.Device = DeviceBot
		case strings.Contains(ua.Platform(), "iPad"):
			c.Device = DeviceTablet
		case ua.Mobile():
			c.Device = DeviceMobile
		default:
			c.Device = DeviceDesktop
		}
	}

	switch {
	case isLocal(ip):
		c.Location = locationLocal
	case strings.TrimSpace(country) != "":
		c.Location = strings.TrimSpace(country)
	}
	return c
}

// isLocal reports whether ip is missing or a loopback address.
func isLocal(ip string) bool {
	if ip == "" {
		return true
	}
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}
