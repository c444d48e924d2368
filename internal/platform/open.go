package platform

import (
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
)

// Operating system constants
const (
	OSDarwin  = "darwin"
	OSWindows = "windows"
	OSLinux   = "linux"
	OSFreeBSD = "freebsd"
)

// Command constants
const (
	OpenCommand     = "open"
	XDGOpenCommand  = "xdg-open"
	RundllCommand   = "rundll32"
	RundllURLTarget = "url.dll,FileProtocolHandler"
)

// ErrUnsupportedURL is returned for links that must not reach the system opener
var ErrUnsupportedURL = errors.New("unsupported url")

// ValidateURL accepts absolute http and https links only
func ValidateURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("%w: empty", ErrUnsupportedURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrUnsupportedURL)
	}
	return u, nil
}

// OpenURL opens rawURL in the default browser without waiting for it to exit
func OpenURL(rawURL string) error {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return err
	}

	name, args, err := openerCommand(runtime.GOOS, u.String())
	if err != nil {
		return err
	}

	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}
	// reap the opener in the background
	go func() { _ = cmd.Wait() }()
	return nil
}

// openerCommand returns the command that opens target on goos
func openerCommand(goos, target string) (string, []string, error) {
	switch goos {
	case OSDarwin:
		return OpenCommand, []string{target}, nil
	case OSWindows:
		return RundllCommand, []string{RundllURLTarget, target}, nil
	case OSLinux, OSFreeBSD:
		return XDGOpenCommand, []string{target}, nil
	default:
		return "", nil, fmt.Errorf("unsupported operating system: %s", goos)
	}
}
