package service

import (
	"MediaVault/config"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

// ErrSourceRejected marks a remote source that will never succeed on retry.
var ErrSourceRejected = errors.New("import source rejected")

// HTTPStatusError is returned for non-200 HTTP responses.
type HTTPStatusError struct {
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("bad status: %s", e.Status)
}

func hostAllowed(host string, allowlist []string) bool {
	if len(allowlist) == 0 {
		return true
	}
	host = strings.ToLower(strings.TrimSpace(host))
	for _, entry := range allowlist {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if strings.HasPrefix(entry, ".") {
			if strings.HasSuffix(host, entry) {
				return true
			}
			continue
		}
		if host == entry {
			return true
		}
	}
	return false
}

func isLocalHostname(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "localhost" || host == "localhost.localdomain" {
		return true
	}
	return strings.HasSuffix(host, ".local")
}

func isBlockedIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	if ip.IsLoopback() || ip.IsMulticast() || ip.IsLinkLocalMulticast() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
		return true
	}
	return ip.IsPrivate()
}

func rejectSource(msg string) error {
	return fmt.Errorf("%w: %s", ErrSourceRejected, msg)
}

func validateSourceURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, rejectSource("invalid url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, rejectSource("unsupported scheme")
	}
	host := u.Hostname()
	if host == "" {
		return nil, rejectSource("missing host")
	}
	if !hostAllowed(host, config.AppConfig.ImportAllowedHosts) {
		return nil, rejectSource("host not allowed")
	}
	if config.AppConfig.ImportAllowPrivate {
		return u, nil
	}
	if isLocalHostname(host) {
		return nil, rejectSource("host not allowed")
	}
	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return nil, rejectSource("ip not allowed")
		}
		return u, nil
	}
	if _, err := resolvePublic(context.Background(), host); err != nil {
		return nil, err
	}
	return u, nil
}

// lookupIPAddr resolves host names for imports.
var lookupIPAddr = net.DefaultResolver.LookupIPAddr

// resolvePublic resolves host and fails if any address is not publicly routable.
func resolvePublic(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return nil, rejectSource("ip not allowed")
		}
		return []net.IP{ip}, nil
	}
	addrs, err := lookupIPAddr(ctx, host)
	if err != nil || len(addrs) == 0 {
		return nil, fmt.Errorf("host not resolvable: %s", host)
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		if isBlockedIP(addr.IP) {
			return nil, rejectSource("ip not allowed")
		}
		ips = append(ips, addr.IP)
	}
	return ips, nil
}

// dialPublic resolves the target again at connect time and dials only addresses it
// checked, so a name that re-resolves to a private address is refused.
func dialPublic(dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if config.AppConfig.ImportAllowPrivate {
			return dialer.DialContext(ctx, network, addr)
		}
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		ips, err := resolvePublic(ctx, host)
		if err != nil {
			return nil, err
		}
		var lastErr error
		for _, ip := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		return nil, lastErr
	}
}

func importTransport() *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialPublic(&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	})
	return transport
}

// ValidateImportSourceURL validates a remote import URL before task creation.
func ValidateImportSourceURL(rawURL string) error {
	_, err := validateSourceURL(rawURL)
	return err
}

// FetchedFile is a remote file spooled to a temp file.
type FetchedFile struct {
	Path        string
	Name        string
	ContentType string
	Size        int64
}

// Remove deletes the spooled temp file.
func (f *FetchedFile) Remove() {
	if f != nil && f.Path != "" {
		_ = os.Remove(f.Path)
	}
}

// FetchRemote downloads a URL into a temp file, refusing anything larger than maxBytes.
func FetchRemote(ctx context.Context, rawURL string, maxBytes int64) (*FetchedFile, error) {
	parsed, err := validateSourceURL(rawURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{
		Transport: importTransport(),
		Timeout:   config.AppConfig.ImportHTTPTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return rejectSource("too many redirects")
			}
			_, err := validateSourceURL(req.URL.String())
			return err
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPStatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}
	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return nil, rejectSource("content too large")
	}

	tmp, err := os.CreateTemp("", "media-import-*")
	if err != nil {
		return nil, err
	}
	fetched := &FetchedFile{
		Path:        tmp.Name(),
		Name:        remoteFileName(parsed, resp),
		ContentType: normalizeMIME(resp.Header.Get("Content-Type")),
	}
	var body io.Reader = resp.Body
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes+1)
	}
	n, copyErr := io.Copy(tmp, body)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		fetched.Remove()
		return nil, errors.Join(copyErr, closeErr)
	}
	if maxBytes > 0 && n > maxBytes {
		fetched.Remove()
		return nil, rejectSource("content too large")
	}
	fetched.Size = n
	return fetched, nil
}

func remoteFileName(u *url.URL, resp *http.Response) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			return params["filename"]
		}
	}
	if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
		return base
	}
	return "import"
}
