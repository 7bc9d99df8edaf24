package session

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"go.uber.org/zap/zapcore"
)

// ErrNoCapabilities is returned when a create payload carries neither
// desiredCapabilities nor W3C capabilities.alwaysMatch.
var ErrNoCapabilities = errors.New("payload has no capabilities")

// DesiredCapabilities is the subset of requested capabilities the proxy
// records. Missing fields are empty strings.
type DesiredCapabilities struct {
	BrowserName string `json:"browserName"`
	Platform    string `json:"platform"`
	SodaUser    string `json:"soda:user"`
}

// rawCapabilities accepts every key spelling clients have used.
type rawCapabilities struct {
	BrowserName  string `json:"browserName"`
	Platform     string `json:"platform"`
	PlatformName string `json:"platformName"`
	SodaUser     string `json:"soda:user"`
	SodaUserAlt  string `json:"sodaUser"`
	SodaUserOld  string `json:"soda_user"`
}

// UnmarshalJSON normalizes alternate user and platform keys into one record.
func (d *DesiredCapabilities) UnmarshalJSON(data []byte) error {
	var raw rawCapabilities
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return err
	}

	*d = DesiredCapabilities{
		BrowserName: raw.BrowserName,
		Platform:    firstNonEmpty(raw.Platform, raw.PlatformName),
		SodaUser:    firstNonEmpty(raw.SodaUser, raw.SodaUserAlt, raw.SodaUserOld),
	}
	return nil
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (d DesiredCapabilities) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("browser", d.BrowserName)
	enc.AddString("platform", d.Platform)
	enc.AddString("soda_user", d.SodaUser)
	return nil
}

type createPayload struct {
	DesiredCapabilities *DesiredCapabilities `json:"desiredCapabilities"`
	Capabilities        *struct {
		AlwaysMatch *DesiredCapabilities `json:"alwaysMatch"`
	} `json:"capabilities"`
}

// ParseCapabilities decodes a new-session body. On any error the returned
// capabilities are empty.
func ParseCapabilities(body []byte) (DesiredCapabilities, error) {
	var payload createPayload
	if err := sonic.Unmarshal(body, &payload); err != nil {
		return DesiredCapabilities{}, fmt.Errorf("decode capabilities: %w", err)
	}

	switch {
	case payload.DesiredCapabilities != nil:
		return *payload.DesiredCapabilities, nil
	case payload.Capabilities != nil && payload.Capabilities.AlwaysMatch != nil:
		return *payload.Capabilities.AlwaysMatch, nil
	default:
		return DesiredCapabilities{}, ErrNoCapabilities
	}
}

type commandPayload struct {
	URL string `json:"url"`
}

// ParseCommandURL decodes the url field of a navigation command body.
func ParseCommandURL(body []byte) (string, error) {
	var payload commandPayload
	if err := sonic.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode command: %w", err)
	}
	return payload.URL, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
