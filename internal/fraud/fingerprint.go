package fraud

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"refnet/internal/domain"

	"github.com/google/uuid"
)

// DeviceInfo is the parsed shape of a user-agent string.
type DeviceInfo struct {
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	DeviceType string `json:"device_type"`
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s/%s/%s", d.Browser, d.OS, d.DeviceType)
}

// DeriveFingerprint hashes the canonical JSON serialization of the device
// signals. Deterministic: identical input always yields the identical hash.
// The hash is a correlation key, not a unique-device guarantee; collisions
// across users with identical browser stacks are expected and are exactly
// what powers multi-account-device detection.
func DeriveFingerprint(userAgent string, extra map[string]string) string {
	payload := struct {
		UserAgent string            `json:"user_agent"`
		Signals   map[string]string `json:"signals,omitempty"`
	}{
		UserAgent: userAgent,
		Signals:   extra,
	}
	// encoding/json sorts map keys, which keeps the serialization canonical.
	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ParseUserAgent derives browser, OS, and device type by pattern matching.
// First matching pattern wins, checked in a fixed precedence order:
// Edge and Opera carry "Chrome" in their UA, Chrome carries "Safari",
// Android carries "Linux", and iOS devices report "like Mac OS X".
func ParseUserAgent(userAgent string) DeviceInfo {
	ua := strings.ToLower(userAgent)
	info := DeviceInfo{Browser: "unknown", OS: "unknown", DeviceType: "desktop"}

	switch {
	case strings.Contains(ua, "edg"):
		info.Browser = "Edge"
	case strings.Contains(ua, "opr") || strings.Contains(ua, "opera"):
		info.Browser = "Opera"
	case strings.Contains(ua, "chrome"):
		info.Browser = "Chrome"
	case strings.Contains(ua, "firefox"):
		info.Browser = "Firefox"
	case strings.Contains(ua, "safari"):
		info.Browser = "Safari"
	}

	switch {
	case strings.Contains(ua, "android"):
		info.OS = "Android"
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad") || strings.Contains(ua, "ipod"):
		info.OS = "iOS"
	case strings.Contains(ua, "windows"):
		info.OS = "Windows"
	case strings.Contains(ua, "mac os"):
		info.OS = "macOS"
	case strings.Contains(ua, "linux"):
		info.OS = "Linux"
	}

	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		info.DeviceType = "tablet"
	case strings.Contains(ua, "mobi") || strings.Contains(ua, "iphone") || strings.Contains(ua, "android"):
		info.DeviceType = "mobile"
	}

	return info
}

// RecordDevice upserts the device-fingerprint observation for this login
// and returns the derived hash.
func (s *Service) RecordDevice(ctx context.Context, userID uuid.UUID, userAgent, ipAddress string) (string, error) {
	hash := DeriveFingerprint(userAgent, nil)
	info := ParseUserAgent(userAgent)
	now := time.Now()

	fp := &domain.DeviceFingerprint{
		ID:              uuid.New(),
		UserID:          userID,
		FingerprintHash: hash,
		Browser:         info.Browser,
		OS:              info.OS,
		DeviceType:      info.DeviceType,
		UserAgent:       userAgent,
		FirstSeenAt:     now,
		LastSeenAt:      now,
	}
	if err := s.devices.Upsert(ctx, fp); err != nil {
		return "", err
	}
	return hash, nil
}

// RecordIP upserts the IP observation for this login.
func (s *Service) RecordIP(ctx context.Context, userID uuid.UUID, ipAddress string) error {
	now := time.Now()
	ip := &domain.IPAddress{
		ID:          uuid.New(),
		UserID:      userID,
		IPAddress:   ipAddress,
		FirstSeenAt: now,
		LastSeenAt:  now,
	}
	return s.ips.Upsert(ctx, ip)
}
